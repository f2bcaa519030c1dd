// Package action implements build actions: external program invocations and
// in-process callbacks with a shared outdated policy.
package action

import (
	"context"
	"sync/atomic"

	"go.trai.ch/anvil/internal/core/domain"
	"go.trai.ch/anvil/internal/core/ports"
	"go.trai.ch/anvil/internal/engine/actioncache"
	"go.trai.ch/anvil/internal/engine/pool"
	"go.trai.ch/anvil/internal/engine/tracker"
)

// Session owns the state shared by the actions of one build: the file
// tracker, the action cache and the process boundary.
type Session struct {
	tracker *tracker.Tracker
	cache   *actioncache.Cache
	runner  ports.ProcessRunner
	logger  ports.Logger
	pools   *pool.Registry

	verifyContent bool
	nextID        atomic.Uint64
}

// Option configures a Session.
type Option func(*Session)

// WithPools sets the named resource pools actions may reference.
func WithPools(r *pool.Registry) Option {
	return func(s *Session) {
		s.pools = r
	}
}

// WithVerifyContent enables the content hash comparison for actions whose
// files all report unchanged.
func WithVerifyContent(enabled bool) Option {
	return func(s *Session) {
		s.verifyContent = enabled
	}
}

// NewSession creates a Session.
func NewSession(
	tr *tracker.Tracker,
	cache *actioncache.Cache,
	runner ports.ProcessRunner,
	logger ports.Logger,
	opts ...Option,
) *Session {
	s := &Session{
		tracker: tr,
		cache:   cache,
		runner:  runner,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tracker returns the session's file tracker.
func (s *Session) Tracker() *tracker.Tracker {
	return s.tracker
}

// Cache returns the session's action cache.
func (s *Session) Cache() *actioncache.Cache {
	return s.cache
}

func (s *Session) allocateID() domain.ActionID {
	return domain.ActionID(s.nextID.Add(1))
}

// Announcer receives the name of every action that is about to run.
type Announcer interface {
	Announce(name string)
}

type announcerKey struct{}

// WithAnnouncer returns a context whose actions report progress to a.
func WithAnnouncer(ctx context.Context, a Announcer) context.Context {
	return context.WithValue(ctx, announcerKey{}, a)
}

func announce(ctx context.Context, name string) {
	if a, ok := ctx.Value(announcerKey{}).(Announcer); ok && a != nil {
		a.Announce(name)
	}
}
