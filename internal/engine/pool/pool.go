// Package pool limits how many actions competing for a scarce resource run at once.
package pool

import (
	"context"
	"sort"
	"sync/atomic"

	"go.trai.ch/anvil/internal/core/domain"
	"go.trai.ch/zerr"
	"golang.org/x/sync/semaphore"
)

// ResourcePool is a counting gate independent of the dispatcher's job count.
// A nil pool never blocks.
type ResourcePool struct {
	name     string
	capacity int64
	sem      *semaphore.Weighted
	inUse    atomic.Int64
}

// New creates a pool that admits capacity holders at once. Capacities below
// one are raised to one.
func New(name string, capacity int) *ResourcePool {
	c := int64(max(capacity, 1))
	return &ResourcePool{
		name:     name,
		capacity: c,
		sem:      semaphore.NewWeighted(c),
	}
}

// Name returns the configured pool name.
func (p *ResourcePool) Name() string {
	if p == nil {
		return ""
	}
	return p.name
}

// Capacity returns the number of concurrent holders allowed.
func (p *ResourcePool) Capacity() int {
	if p == nil {
		return 0
	}
	return int(p.capacity)
}

// InUse returns the number of slots currently held.
func (p *ResourcePool) InUse() int {
	if p == nil {
		return 0
	}
	return int(p.inUse.Load())
}

// Acquire blocks until a slot is free or ctx is done. The returned release
// function frees the slot and is safe to call more than once.
func (p *ResourcePool) Acquire(ctx context.Context) (release func(), err error) {
	if p == nil {
		return func() {}, nil
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return func() {}, zerr.With(zerr.Wrap(err, "failed to acquire resource pool slot"), "pool", p.name)
	}
	p.inUse.Add(1)

	var once atomic.Bool
	return func() {
		if once.CompareAndSwap(false, true) {
			p.inUse.Add(-1)
			p.sem.Release(1)
		}
	}, nil
}

// Registry holds the named pools of a session.
type Registry struct {
	pools map[string]*ResourcePool
}

// NewRegistry creates a pool for every name -> capacity entry.
func NewRegistry(capacities map[string]int) *Registry {
	r := &Registry{pools: make(map[string]*ResourcePool, len(capacities))}
	for name, capacity := range capacities {
		r.pools[name] = New(name, capacity)
	}
	return r
}

// Get returns the pool called name. The empty name selects no pool and
// returns nil.
func (r *Registry) Get(name string) (*ResourcePool, error) {
	if name == "" {
		return nil, nil
	}
	if r != nil {
		if p, ok := r.pools[name]; ok {
			return p, nil
		}
	}
	return nil, zerr.With(zerr.Wrap(domain.ErrUnknownPool, "failed to resolve pool"), "pool", name)
}

// Names returns the configured pool names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.pools))
	for name := range r.pools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
