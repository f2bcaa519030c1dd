package action

import (
	"context"
	"slices"

	"go.trai.ch/anvil/internal/core/domain"
)

// CallbackOptions describes an in-process action.
type CallbackOptions struct {
	Name    string
	Inputs  []string
	Outputs []string
	Always  bool
	Silent  bool
	Fn      func(ctx context.Context) error
}

// CallbackAction runs a function instead of a process. It has no cache entry:
// it is outdated whenever one of its inputs or outputs changed.
type CallbackAction struct {
	base
	fn func(ctx context.Context) error
}

// NewCallback creates a CallbackAction and claims its outputs in the tracker.
func (s *Session) NewCallback(opts CallbackOptions) (*CallbackAction, error) {
	a := &CallbackAction{
		base: newBase(s, opts.Name, opts.Inputs, opts.Outputs, nil, opts.Always, opts.Silent),
		fn:   opts.Fn,
	}
	if err := a.claimOutputs(); err != nil {
		return nil, err
	}
	return a, nil
}

// Prepare infers dependencies on the generators of the inputs.
func (a *CallbackAction) Prepare() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != domain.StateUnprepared {
		return a.errAlreadyPrepared()
	}
	a.prepareLocked()
	return nil
}

func (a *CallbackAction) ensurePrepared() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == domain.StateUnprepared {
		a.prepareLocked()
	}
}

func (a *CallbackAction) prepareLocked() {
	a.linkFiles(a.inputs)
	a.state = domain.StatePrepared
}

// Explain prepares the action if needed and reports why it is outdated.
func (a *CallbackAction) Explain() (Reason, error) {
	a.ensurePrepared()
	return a.evaluate(), nil
}

// IsOutdated prepares the action if needed and reports whether it is marked
// always or any of its inputs or outputs changed.
func (a *CallbackAction) IsOutdated() bool {
	a.ensurePrepared()
	return a.evaluate().Outdated()
}

func (a *CallbackAction) evaluate() Reason {
	if path, changed := a.changedFile(slices.Concat(a.inputs, a.outputs)); changed {
		return Reason{Kind: ReasonFileChanged, Path: path}
	}
	if a.always {
		return Reason{Kind: ReasonAlways}
	}
	return Reason{}
}

// Execute invokes the callback when the action is outdated.
func (a *CallbackAction) Execute(ctx context.Context) (bool, error) {
	a.ensurePrepared()

	tr := a.session.tracker
	if !a.evaluate().Outdated() {
		if a.State() != domain.StateExecuted {
			tr.Settle(a.id, true, false)
		}
		return false, nil
	}
	if err := a.beginExecution(); err != nil {
		return false, err
	}
	if !a.silent {
		announce(ctx, a.Name())
	}

	if err := a.fn(ctx); err != nil {
		tr.Settle(a.id, false, true)
		return true, &domain.ExecutionError{
			Stage:  domain.StageCallback,
			Action: a.Name(),
			Cause:  err,
		}
	}

	a.refreshWritten()
	tr.Settle(a.id, true, true)
	return true, nil
}
