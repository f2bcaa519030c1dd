package ports

import (
	"context"

	"go.trai.ch/anvil/internal/core/domain"
)

// StateStore is the durable store behind the action cache and the file tracker.
// Both maps are read once when a session starts and written once when it ends.
//
//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type StateStore interface {
	// LoadActions returns the identity hash -> content hash map.
	LoadActions(ctx context.Context) (map[uint64]uint64, error)
	// SaveActions replaces the stored action entries.
	SaveActions(ctx context.Context, actions map[uint64]uint64) error
	// LoadFiles returns the last committed fingerprint of every tracked path.
	LoadFiles(ctx context.Context) (map[string]domain.FileRecord, error)
	// SaveFiles replaces the stored file fingerprints.
	SaveFiles(ctx context.Context, files map[string]domain.FileRecord) error
	// Close releases the store.
	Close() error
}

// StateOpener opens a StateStore for a backend and location.
type StateOpener interface {
	Open(backend, path string) (StateStore, error)
}
