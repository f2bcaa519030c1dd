package action

import (
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"

	"go.trai.ch/anvil/internal/core/domain"
	"go.trai.ch/zerr"
)

// base holds what every action kind shares: identity, declared files and the
// lifecycle state machine.
type base struct {
	session *Session
	id      domain.ActionID
	name    string

	inputs        []string
	outputs       []string
	intermediates []string

	always bool
	silent bool

	mu    sync.Mutex
	state domain.ActionState
	deps  []domain.ActionID
}

func newBase(s *Session, name string, inputs, outputs, intermediates []string, always, silent bool) base {
	return base{
		session:       s,
		id:            s.allocateID(),
		name:          name,
		inputs:        normalize(inputs),
		outputs:       normalize(outputs),
		intermediates: normalize(intermediates),
		always:        always,
		silent:        silent,
	}
}

func normalize(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		if n := domain.NormalizePath(p); !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	return out
}

// claimOutputs registers the action as generator of its outputs and
// intermediates.
func (b *base) claimOutputs() error {
	for _, p := range slices.Concat(b.outputs, b.intermediates) {
		if err := b.session.tracker.RecordGenerator(p, b.id); err != nil {
			return zerr.With(err, "action", b.Name())
		}
	}
	return nil
}

// ID returns the session-unique action ID.
func (b *base) ID() domain.ActionID {
	return b.id
}

// Name returns the display name. Unnamed actions are named after their outputs.
func (b *base) Name() string {
	if b.name != "" {
		return strconv.Quote(b.name)
	}
	if len(b.outputs) == 0 {
		return "action #" + b.id.String()
	}
	quoted := make([]string, len(b.outputs))
	for i, o := range b.outputs {
		quoted[i] = strconv.Quote(o)
	}
	return "Generating: " + strings.Join(quoted, ", ")
}

// Silent reports whether the action runs without a progress line.
func (b *base) Silent() bool {
	return b.silent
}

// Inputs returns the normalized input paths.
func (b *base) Inputs() []string {
	return slices.Clone(b.inputs)
}

// Outputs returns the normalized output paths.
func (b *base) Outputs() []string {
	return slices.Clone(b.outputs)
}

// State returns the lifecycle state.
func (b *base) State() domain.ActionState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Dependencies returns the actions producing files this action reads.
func (b *base) Dependencies() []domain.ActionID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.deps)
}

// linkFiles infers dependencies from the generators of reads and registers
// the action as a user of every file it touches. Caller holds b.mu.
func (b *base) linkFiles(reads []string) {
	tr := b.session.tracker
	for _, p := range reads {
		if gen, ok := tr.Generator(p); ok && gen != b.id && !slices.Contains(b.deps, gen) {
			b.deps = append(b.deps, gen)
		}
	}
	for _, p := range slices.Concat(reads, b.outputs, b.intermediates) {
		tr.Use(p, b.id)
	}
	for _, o := range b.outputs {
		tr.AddExplicitDependency(o, b.inputs...)
	}
}

// errAlreadyPrepared builds the error for a second Prepare call.
func (b *base) errAlreadyPrepared() error {
	return zerr.With(zerr.Wrap(domain.ErrAlreadyPrepared, "cannot prepare action"), "action", b.Name())
}

// beginExecution moves the action to Executed. A second call fails.
func (b *base) beginExecution() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == domain.StateExecuted {
		return zerr.With(zerr.Wrap(domain.ErrExecutedTwice, "cannot execute action"), "action", b.Name())
	}
	b.state = domain.StateExecuted
	return nil
}

// changedFile returns the first file reported changed. Every file is checked
// so the tracker observes all of them.
func (b *base) changedFile(files []string) (string, bool) {
	first, found := "", false
	for _, p := range files {
		if b.session.tracker.IsChangedFor(p, b.id) && !found {
			first, found = p, true
		}
	}
	return first, found
}

// refreshWritten re-fingerprints everything the action wrote.
func (b *base) refreshWritten() {
	for _, p := range slices.Concat(b.intermediates, b.outputs) {
		b.session.tracker.Refresh(p)
	}
}

// Clean removes outputs and intermediates, ignoring failures. Non-empty
// directories are left in place.
func (b *base) Clean() {
	for _, p := range slices.Concat(b.outputs, b.intermediates) {
		_ = os.Remove(p)
	}
}
