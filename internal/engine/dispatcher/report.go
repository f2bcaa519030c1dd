package dispatcher

import (
	"sync"

	"go.trai.ch/anvil/internal/core/domain"
)

// Outcome is the result of one action in a dispatch.
type Outcome struct {
	Name   string
	Status domain.ActionStatus
	Err    error
}

// Ran reports whether the action was executed, successfully or not.
func (o Outcome) Ran() bool {
	return o.Status == domain.StatusCompleted || o.Status == domain.StatusFailed
}

// Skipped reports whether the action was judged up to date.
func (o Outcome) Skipped() bool {
	return o.Status == domain.StatusUpToDate
}

// Report collects the outcome of every dispatched action in submission order.
type Report struct {
	mu       sync.RWMutex
	order    []domain.ActionID
	outcomes map[domain.ActionID]Outcome
}

func newReport(g *graph) *Report {
	r := &Report{
		order:    g.order,
		outcomes: make(map[domain.ActionID]Outcome, len(g.order)),
	}
	for _, id := range g.order {
		r.outcomes[id] = Outcome{Name: g.actions[id].Name(), Status: domain.StatusPending}
	}
	return r
}

func (r *Report) set(id domain.ActionID, status domain.ActionStatus, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.outcomes[id]
	o.Status, o.Err = status, err
	r.outcomes[id] = o
}

// abandonRest marks every action that never reached a terminal status.
func (r *Report) abandonRest() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, o := range r.outcomes {
		if !o.Status.IsTerminal() {
			o.Status = domain.StatusAbandoned
			r.outcomes[id] = o
		}
	}
}

// Outcome returns the outcome of the action with the given ID.
func (r *Report) Outcome(id domain.ActionID) (Outcome, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.outcomes[id]
	return o, ok
}

// Outcomes returns every outcome in submission order.
func (r *Report) Outcomes() []Outcome {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Outcome, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.outcomes[id])
	}
	return out
}

// Count returns how many actions ended with status.
func (r *Report) Count(status domain.ActionStatus) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, o := range r.outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}
