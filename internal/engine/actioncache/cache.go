// Package actioncache holds the identity hash to content hash map of every
// action that completed successfully.
package actioncache

import (
	"context"
	"sync"
	"sync/atomic"

	"go.trai.ch/anvil/internal/core/ports"
	"go.trai.ch/zerr"
)

// Slot is the mutable content hash of one action identity.
// Zero means the identity is known but never completed.
type Slot struct {
	v atomic.Uint64
}

// Load returns the stored content hash.
func (s *Slot) Load() uint64 {
	return s.v.Load()
}

// Store records the content hash of a successful run.
func (s *Slot) Store(content uint64) {
	s.v.Store(content)
}

// Cache is the session's action cache. It is created per session and passed to
// every action that needs it.
type Cache struct {
	store ports.StateStore

	mu      sync.RWMutex
	entries map[uint64]*Slot
}

// New creates an empty Cache persisted through store. A nil store keeps the
// cache in memory only.
func New(store ports.StateStore) *Cache {
	return &Cache{
		store:   store,
		entries: make(map[uint64]*Slot),
	}
}

// Load reads every stored entry.
func (c *Cache) Load(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	actions, err := c.store.LoadActions(ctx)
	if err != nil {
		return zerr.Wrap(err, "failed to load action cache")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for identity, content := range actions {
		if content == 0 {
			continue
		}
		s := &Slot{}
		s.Store(content)
		c.entries[identity] = s
	}
	return nil
}

// Save writes every completed entry. Slots that never completed are skipped.
func (c *Cache) Save(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	if err := c.store.SaveActions(ctx, c.snapshot()); err != nil {
		return zerr.Wrap(err, "failed to save action cache")
	}
	return nil
}

func (c *Cache) snapshot() map[uint64]uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[uint64]uint64, len(c.entries))
	for identity, s := range c.entries {
		if v := s.Load(); v != 0 {
			out[identity] = v
		}
	}
	return out
}

// InsertIfAbsent returns the slot of identity, creating an empty one when the
// identity is unknown. inserted reports whether the slot was created.
func (c *Cache) InsertIfAbsent(identity uint64) (slot *Slot, inserted bool) {
	c.mu.RLock()
	s, ok := c.entries[identity]
	c.mu.RUnlock()
	if ok {
		return s, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok = c.entries[identity]; ok {
		return s, false
	}
	s = &Slot{}
	c.entries[identity] = s
	return s, true
}

// Lookup returns the content hash recorded for identity.
func (c *Cache) Lookup(identity uint64) (uint64, bool) {
	c.mu.RLock()
	s, ok := c.entries[identity]
	c.mu.RUnlock()
	if !ok {
		return 0, false
	}
	v := s.Load()
	return v, v != 0
}

// Len returns the number of completed entries.
func (c *Cache) Len() int {
	return len(c.snapshot())
}
