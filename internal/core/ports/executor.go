// Package ports defines the core interfaces for the application.
package ports

import (
	"context"
	"io"
)

// Invocation describes one external program run.
type Invocation struct {
	// Program is the path of the executable.
	Program string
	// Args are the arguments passed after the program name.
	Args []string
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Env holds overrides applied on top of the process environment.
	Env map[string]string
	// Stdout and Stderr receive the captured output streams.
	Stdout io.Writer
	Stderr io.Writer
}

// ProcessRunner defines the process invocation boundary.
//
//go:generate go run go.uber.org/mock/mockgen -source=executor.go -destination=mocks/mock_executor.go -package=mocks
type ProcessRunner interface {
	// Run executes the invocation and blocks until the process exits.
	// A non-zero exit status or a launch failure is returned as an error.
	Run(ctx context.Context, inv Invocation) error
}
