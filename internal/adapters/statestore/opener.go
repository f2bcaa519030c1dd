package statestore

import (
	"go.trai.ch/anvil/internal/core/domain"
	"go.trai.ch/anvil/internal/core/ports"
	"go.trai.ch/zerr"
)

// Opener opens the state store of a configured backend.
type Opener struct{}

// NewOpener creates an Opener.
func NewOpener() *Opener {
	return &Opener{}
}

// Open returns the store for backend at path. The empty backend selects the
// JSON file store.
func (o *Opener) Open(backend, path string) (ports.StateStore, error) {
	if path == "" {
		path = domain.DefaultStatePath
	}
	switch backend {
	case "", domain.BackendFile:
		s, err := NewFileStore(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case domain.BackendSQLite:
		s, err := NewSQLiteStore(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, zerr.With(zerr.Wrap(domain.ErrUnknownBackend, "failed to open state store"), "backend", backend)
	}
}
