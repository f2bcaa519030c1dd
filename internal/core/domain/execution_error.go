package domain

import (
	"errors"
	"strings"
)

// Stage names the step of an action's execution that failed.
type Stage string

const (
	// StagePool is the wait for a resource pool slot.
	StagePool Stage = "pool"
	// StageResponseFile is the creation of the response file.
	StageResponseFile Stage = "response file"
	// StageRun is the program invocation itself.
	StageRun Stage = "run"
	// StageCallback is the invocation of an in-process callback.
	StageCallback Stage = "callback"
)

// ExecutionError describes a failed action with enough context to reproduce the
// invocation by hand. It is built where the failure happens and returned, never panicked.
type ExecutionError struct {
	Stage  Stage
	Action string
	Stdout string
	Stderr string
	Cause  error
	// Command is the fully expanded command line. It is only set when a response
	// file hid the real arguments from the invocation.
	Command string
}

// Error renders the diagnostic: action name, captured output, cause and, when
// present, the expanded command line.
func (e *ExecutionError) Error() string {
	var b strings.Builder
	b.WriteString("When building: ")
	b.WriteString(e.Action)
	if out := strings.TrimSpace(e.Stdout); out != "" {
		b.WriteString("\n")
		b.WriteString(out)
	}
	if out := strings.TrimSpace(e.Stderr); out != "" {
		b.WriteString("\n")
		b.WriteString(out)
	}
	if e.Cause != nil {
		b.WriteString("\n")
		b.WriteString(e.Cause.Error())
	}
	s := strings.TrimSpace(b.String())
	if e.Command != "" {
		s += "\nfull command:\n" + e.Command
	}
	return s
}

// Unwrap returns the underlying cause.
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is reports ErrActionFailed as matching every ExecutionError.
func (e *ExecutionError) Is(target error) bool {
	return target == ErrActionFailed
}

// AsExecutionError extracts an ExecutionError from an error chain.
func AsExecutionError(err error) (*ExecutionError, bool) {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr, true
	}
	return nil, false
}
