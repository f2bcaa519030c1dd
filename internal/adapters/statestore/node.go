package statestore

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/anvil/internal/core/ports"
)

// NodeID is the unique identifier for the state store opener node.
const NodeID graft.ID = "adapter.state_opener"

func init() {
	graft.Register(graft.Node[ports.StateOpener]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.StateOpener, error) {
			return NewOpener(), nil
		},
	})
}
