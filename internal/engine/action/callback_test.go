package action_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/anvil/internal/core/domain"
	"go.trai.ch/anvil/internal/engine/action"
)

type recordingAnnouncer struct {
	mu    sync.Mutex
	names []string
}

func (r *recordingAnnouncer) Announce(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
}

func TestCallback_RunsWhenFilesChange(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "version.txt")
	out := filepath.Join(dir, "version.h")
	writeFile(t, in, "1.0")

	calls := 0
	opts := action.CallbackOptions{
		Name:    "stamp version",
		Inputs:  []string{in},
		Outputs: []string{out},
		Fn: func(context.Context) error {
			calls++
			data, err := os.ReadFile(in)
			if err != nil {
				return err
			}
			return os.WriteFile(out, append([]byte("#define V "), data...), 0o600)
		},
	}
	store := newMemStore()

	s := newSession(t, store, nil)
	cb, err := s.NewCallback(opts)
	require.NoError(t, err)
	ran, err := cb.Execute(t.Context())
	require.NoError(t, err)
	assert.True(t, ran)
	finish(t, s)

	s = newSession(t, store, nil)
	cb, err = s.NewCallback(opts)
	require.NoError(t, err)
	ran, err = cb.Execute(t.Context())
	require.NoError(t, err)
	assert.False(t, ran)
	finish(t, s)

	writeFile(t, in, "2.0.1")
	s = newSession(t, store, nil)
	cb, err = s.NewCallback(opts)
	require.NoError(t, err)
	reason, err := cb.Explain()
	require.NoError(t, err)
	assert.Equal(t, action.ReasonFileChanged, reason.Kind)
	ran, err = cb.Execute(t.Context())
	require.NoError(t, err)
	assert.True(t, ran)

	assert.Equal(t, 2, calls)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "#define V 2.0.1", string(data))
}

func TestCallback_Always(t *testing.T) {
	out := filepath.Join(t.TempDir(), "stamp")
	writeFile(t, out, "x")

	s := newSession(t, newMemStore(), nil)
	cb, err := s.NewCallback(action.CallbackOptions{
		Outputs: []string{out},
		Always:  true,
		Fn:      func(context.Context) error { return nil },
	})
	require.NoError(t, err)
	require.NoError(t, cb.Prepare())

	reason, err := cb.Explain()
	require.NoError(t, err)
	// The output was never recorded, so the file check wins.
	assert.Equal(t, action.ReasonFileChanged, reason.Kind)

	ran, err := cb.Execute(t.Context())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, domain.StateExecuted, cb.State())
}

func TestCallback_Failure(t *testing.T) {
	boom := errors.New("disk full")
	s := newSession(t, newMemStore(), nil)
	cb, err := s.NewCallback(action.CallbackOptions{
		Name:   "write manifest",
		Always: true,
		Fn:     func(context.Context) error { return boom },
	})
	require.NoError(t, err)

	ran, err := cb.Execute(t.Context())
	assert.True(t, ran)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrActionFailed)
	assert.ErrorIs(t, err, boom)

	execErr, ok := domain.AsExecutionError(err)
	require.True(t, ok)
	assert.Equal(t, domain.StageCallback, execErr.Stage)
	assert.Equal(t, `"write manifest"`, execErr.Action)
}

func TestCallback_DependsOnCommand(t *testing.T) {
	p := newCompileLink(t)
	s := newSession(t, newMemStore(), copyRunner())

	compile, _ := p.actions(t, s)
	cb, err := s.NewCallback(action.CallbackOptions{
		Inputs: []string{p.obj},
		Fn:     func(context.Context) error { return nil },
	})
	require.NoError(t, err)

	require.NoError(t, compile.Prepare())
	require.NoError(t, cb.Prepare())
	assert.Equal(t, []domain.ActionID{compile.ID()}, cb.Dependencies())
	assert.ErrorIs(t, cb.Prepare(), domain.ErrAlreadyPrepared)
}

func TestAnnouncer(t *testing.T) {
	ann := &recordingAnnouncer{}
	ctx := action.WithAnnouncer(t.Context(), ann)
	program := tool(t, t.TempDir(), "gen")

	s := newSession(t, newMemStore(), &scriptRunner{})
	loud, err := s.NewCommand(action.CommandOptions{Name: "loud", Program: program, Always: true})
	require.NoError(t, err)
	quiet, err := s.NewCommand(action.CommandOptions{Name: "quiet", Program: program, Always: true, Silent: true})
	require.NoError(t, err)
	cb, err := s.NewCallback(action.CallbackOptions{Name: "hook", Always: true, Fn: func(context.Context) error { return nil }})
	require.NoError(t, err)

	for _, a := range []interface {
		Execute(context.Context) (bool, error)
	}{loud, quiet, cb} {
		_, err := a.Execute(ctx)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{`"loud"`, `"hook"`}, ann.names)
	assert.True(t, quiet.Silent())
}

func TestCallback_IsOutdatedPreparesOnDemand(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "stamp")

	s := newSession(t, newMemStore(), nil)
	cb, err := s.NewCallback(action.CallbackOptions{
		Outputs: []string{out},
		Fn:      func(context.Context) error { return os.WriteFile(out, []byte("x"), 0o600) },
	})
	require.NoError(t, err)

	assert.True(t, cb.IsOutdated())
	assert.Equal(t, domain.StatePrepared, cb.State())
	assert.ErrorIs(t, cb.Prepare(), domain.ErrAlreadyPrepared)
}

func TestCallback_RepeatedExecuteKeepsRunRecorded(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "stamp")

	calls := 0
	s := newSession(t, newMemStore(), nil)
	cb, err := s.NewCallback(action.CallbackOptions{
		Outputs: []string{out},
		Fn: func(context.Context) error {
			calls++
			return os.WriteFile(out, []byte("x"), 0o600)
		},
	})
	require.NoError(t, err)

	ran, err := cb.Execute(t.Context())
	require.NoError(t, err)
	require.True(t, ran)

	ran, err = cb.Execute(t.Context())
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Equal(t, 1, calls)
	assert.True(t, s.Tracker().IsChangedFor(out, cb.ID()+1), "output was rewritten this session")
}
