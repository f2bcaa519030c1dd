// Package detector inspects the environment to decide how progress is rendered.
package detector

import (
	"io"
	"os"

	"golang.org/x/term"
)

// ColorEnabled reports whether progress written to w should be colored.
// w must be a terminal, NO_COLOR must be unset and CI must not be set to
// true or 1.
func ColorEnabled(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	if _, set := os.LookupEnv("NO_COLOR"); set {
		return false
	}
	if IsCI() {
		return false
	}
	return term.IsTerminal(int(f.Fd())) //nolint:gosec // file descriptors fit in int
}

// IsCI reports whether the CI environment variable marks a CI run.
func IsCI() bool {
	ci := os.Getenv("CI")
	return ci == "true" || ci == "1"
}
