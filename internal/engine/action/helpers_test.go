package action_test

import (
	"context"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.trai.ch/anvil/internal/adapters/fs"
	"go.trai.ch/anvil/internal/core/domain"
	"go.trai.ch/anvil/internal/core/ports"
	"go.trai.ch/anvil/internal/core/ports/mocks"
	"go.trai.ch/anvil/internal/engine/action"
	"go.trai.ch/anvil/internal/engine/actioncache"
	"go.trai.ch/anvil/internal/engine/tracker"
	"go.uber.org/mock/gomock"
)

// memStore keeps engine state between sessions of one test.
type memStore struct {
	mu      sync.Mutex
	actions map[uint64]uint64
	files   map[string]domain.FileRecord
}

func newMemStore() *memStore {
	return &memStore{actions: map[uint64]uint64{}, files: map[string]domain.FileRecord{}}
}

func (s *memStore) LoadActions(context.Context) (map[uint64]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.actions), nil
}

func (s *memStore) SaveActions(_ context.Context, actions map[uint64]uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = maps.Clone(actions)
	return nil
}

func (s *memStore) LoadFiles(context.Context) (map[string]domain.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.files), nil
}

func (s *memStore) SaveFiles(_ context.Context, files map[string]domain.FileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = maps.Clone(files)
	return nil
}

func (s *memStore) Close() error { return nil }

// scriptRunner records invocations and delegates them to fn.
type scriptRunner struct {
	mu    sync.Mutex
	calls []ports.Invocation
	fn    func(inv ports.Invocation) error
}

func (r *scriptRunner) Run(_ context.Context, inv ports.Invocation) error {
	r.mu.Lock()
	r.calls = append(r.calls, inv)
	r.mu.Unlock()
	if r.fn == nil {
		return nil
	}
	return r.fn(inv)
}

func (r *scriptRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func newSession(t *testing.T, store *memStore, runner ports.ProcessRunner, opts ...action.Option) *action.Session {
	t.Helper()
	ctrl := gomock.NewController(t)
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Debug(gomock.Any()).AnyTimes()

	tr := tracker.New(fs.NewHasher(fs.NewWalker()), store)
	require.NoError(t, tr.Load(t.Context()))
	cache := actioncache.New(store)
	require.NoError(t, cache.Load(t.Context()))
	return action.NewSession(tr, cache, runner, log, opts...)
}

func finish(t *testing.T, s *action.Session) {
	t.Helper()
	require.NoError(t, s.Cache().Save(t.Context()))
	require.NoError(t, s.Tracker().Save(t.Context()))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

// tool creates a stand-in executable. The runner never really executes it.
func tool(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, "bin", name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n# "+name+"\n"), 0o700)) //nolint:gosec // test executable
	return path
}

// copyRunner treats args as "<in> -o <out>" and writes the input prefixed
// with the program name to the output.
func copyRunner() *scriptRunner {
	return &scriptRunner{fn: func(inv ports.Invocation) error {
		data, err := os.ReadFile(inv.Args[0])
		if err != nil {
			return err
		}
		return os.WriteFile(inv.Args[2], append([]byte(filepath.Base(inv.Program)+":"), data...), 0o600)
	}}
}
