package domain_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/anvil/internal/core/domain"
)

func TestExecutionError_Message(t *testing.T) {
	err := &domain.ExecutionError{
		Stage:  domain.StageRun,
		Action: `"link app"`,
		Stdout: "  partial output\n",
		Stderr: "undefined reference to main\n",
		Cause:  errors.New("exit status 1"),
	}

	msg := err.Error()
	assert.True(t, strings.HasPrefix(msg, `When building: "link app"`))
	assert.Contains(t, msg, "partial output")
	assert.Contains(t, msg, "undefined reference to main")
	assert.Contains(t, msg, "exit status 1")
	assert.NotContains(t, msg, "full command")
}

func TestExecutionError_ExpandedCommand(t *testing.T) {
	err := &domain.ExecutionError{
		Action:  "cc",
		Cause:   errors.New("exit status 2"),
		Command: `"/usr/bin/cc" "-c" "a.c"`,
	}

	assert.True(t, strings.HasSuffix(err.Error(), "full command:\n\"/usr/bin/cc\" \"-c\" \"a.c\""))
}

func TestExecutionError_Matching(t *testing.T) {
	cause := errors.New("boom")
	var err error = &domain.ExecutionError{Action: "x", Cause: cause}

	assert.ErrorIs(t, err, domain.ErrActionFailed)
	assert.ErrorIs(t, err, cause)

	got, ok := domain.AsExecutionError(err)
	require.True(t, ok)
	assert.Equal(t, "x", got.Action)

	_, ok = domain.AsExecutionError(cause)
	assert.False(t, ok)
}

func TestActionState_String(t *testing.T) {
	assert.Equal(t, "unprepared", domain.StateUnprepared.String())
	assert.Equal(t, "prepared", domain.StatePrepared.String())
	assert.Equal(t, "executed", domain.StateExecuted.String())
	assert.Equal(t, "unknown", domain.ActionState(42).String())
}

func TestFileRecord_SameStamp(t *testing.T) {
	a := domain.FileRecord{Size: 10, ModTime: 5, Hash: 1}
	assert.True(t, a.SameStamp(domain.FileRecord{Size: 10, ModTime: 5, Hash: 2}))
	assert.False(t, a.SameStamp(domain.FileRecord{Size: 11, ModTime: 5}))
	assert.False(t, a.SameStamp(domain.FileRecord{Missing: true}))
}

func TestNormalizePath(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(wd, "obj.o"), domain.NormalizePath("./sub/../obj.o"))
	assert.Empty(t, domain.NormalizePath(""))

	paths := domain.NormalizePaths([]string{"a.c", "", "/abs/b.c"})
	require.Len(t, paths, 2)
	assert.Equal(t, "/abs/b.c", paths[1].String())
}

func TestActionStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status     domain.ActionStatus
		isTerminal bool
	}{
		{domain.StatusPending, false},
		{domain.StatusRunning, false},
		{domain.StatusCompleted, true},
		{domain.StatusUpToDate, true},
		{domain.StatusFailed, true},
		{domain.StatusAbandoned, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.isTerminal, tt.status.IsTerminal())
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, domain.LogLevelDebug, domain.ParseLogLevel("debug"))
	assert.Equal(t, domain.LogLevelWarn, domain.ParseLogLevel("warning"))
	assert.Equal(t, domain.LogLevelError, domain.ParseLogLevel("error"))
	assert.Equal(t, domain.LogLevelInfo, domain.ParseLogLevel("loud"))
	assert.Equal(t, "WARN", domain.LogLevelWarn.String())
}
