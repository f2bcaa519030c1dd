// Package dispatcher runs actions in dependency order on a bounded number of
// workers and serializes their progress lines.
package dispatcher

import (
	"context"
	"errors"
	"io"
	"os"
	"runtime"

	"github.com/edwingeng/deque"
	"github.com/tevino/abool/v2"
	"go.trai.ch/anvil/internal/core/domain"
	"go.trai.ch/anvil/internal/core/ports"
	"go.trai.ch/anvil/internal/engine/action"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// Action is what the dispatcher schedules. *action.Command and
// *action.CallbackAction implement it.
type Action interface {
	ID() domain.ActionID
	Name() string
	State() domain.ActionState
	Dependencies() []domain.ActionID
	Prepare() error
	Execute(ctx context.Context) (bool, error)
}

var (
	_ Action = (*action.Command)(nil)
	_ Action = (*action.CallbackAction)(nil)
)

// capturedOutput is implemented by actions that keep the output of their run.
type capturedOutput interface {
	Stdout() string
	Stderr() string
}

// Dispatcher executes ready actions in parallel.
type Dispatcher struct {
	telemetry ports.Telemetry
	logger    ports.Logger

	jobs      int
	keepGoing bool
	out       io.Writer
	colored   bool
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithJobs sets the number of actions executed concurrently.
func WithJobs(n int) Option {
	return func(d *Dispatcher) {
		d.jobs = max(n, 1)
	}
}

// WithKeepGoing keeps independent actions running after a failure.
func WithKeepGoing(enabled bool) Option {
	return func(d *Dispatcher) {
		d.keepGoing = enabled
	}
}

// WithOutput sets where progress lines are written.
func WithOutput(w io.Writer, colored bool) Option {
	return func(d *Dispatcher) {
		d.out, d.colored = w, colored
	}
}

// New creates a Dispatcher with one job per CPU writing progress to stderr.
func New(telemetry ports.Telemetry, logger ports.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		telemetry: telemetry,
		logger:    logger,
		jobs:      runtime.NumCPU(),
		out:       os.Stderr,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Prepare prepares every unprepared action in parallel.
func (d *Dispatcher) Prepare(ctx context.Context, actions []Action) error {
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(d.jobs)
	for _, a := range actions {
		if a.State() != domain.StateUnprepared {
			continue
		}
		g.Go(a.Prepare)
	}
	return g.Wait()
}

// Run prepares the actions, checks their dependency graph and executes them.
// An action starts only after every action it depends on completed or was
// judged up to date. After a failure without keep-going, or when ctx is
// cancelled, running actions finish and the rest are abandoned.
func (d *Dispatcher) Run(ctx context.Context, actions []Action) (*Report, error) {
	if err := d.Prepare(ctx, actions); err != nil {
		return nil, err
	}

	g := newGraph(actions)
	if err := g.validate(); err != nil {
		return nil, err
	}

	report := newReport(g)
	sink := newProgress(d.out, len(g.order), d.colored)

	state := d.newRunState(action.WithAnnouncer(ctx, sink), g, report)
	err := state.runExecutionLoop()
	sink.close()

	report.abandonRest()
	if n := report.Count(domain.StatusAbandoned); n > 0 {
		aborted := zerr.With(zerr.Wrap(domain.ErrDispatchAborted, "dispatch stopped early"), "abandoned", n)
		err = errors.Join(err, aborted)
	}
	return report, err
}

type result struct {
	id  domain.ActionID
	ran bool
	err error
}

type runState struct {
	d      *Dispatcher
	g      *graph
	report *Report
	ctx    context.Context

	inDegree map[domain.ActionID]int
	ready    deque.Deque
	active   int
	results  chan result
	stop     *abool.AtomicBool
	errs     error
}

func (d *Dispatcher) newRunState(ctx context.Context, g *graph, report *Report) *runState {
	state := &runState{
		d:        d,
		g:        g,
		report:   report,
		ctx:      ctx,
		inDegree: g.inDegrees(),
		ready:    deque.NewDeque(),
		results:  make(chan result, d.jobs),
		stop:     abool.NewBool(false),
	}
	for _, id := range g.order {
		if state.inDegree[id] == 0 {
			state.ready.PushBack(id)
		}
	}
	return state
}

func (s *runState) isDone() bool {
	if s.stop.IsSet() {
		return s.active == 0
	}
	return s.active == 0 && s.ready.Empty()
}

func (s *runState) runExecutionLoop() error {
	for !s.isDone() {
		s.schedule()

		if s.isDone() {
			break
		}

		// Once stopped only the running actions are awaited.
		done := s.ctx.Done()
		if s.stop.IsSet() {
			done = nil
		}

		select {
		case res := <-s.results:
			s.handleResult(res)
		case <-done:
			s.stop.Set()
		}
	}

	if err := s.ctx.Err(); err != nil {
		s.errs = errors.Join(s.errs, err)
	}
	return s.errs
}

func (s *runState) schedule() {
	for !s.ready.Empty() && s.active < s.d.jobs && !s.stop.IsSet() {
		if s.ctx.Err() != nil {
			s.stop.Set()
			return
		}
		id, _ := s.ready.PopFront().(domain.ActionID)

		s.active++
		s.report.set(id, domain.StatusRunning, nil)
		go s.execute(s.g.actions[id])
	}
}

func (s *runState) execute(a Action) {
	// The vertex is completed before the result is sent so the recording is
	// finished when the loop observes the result.
	res := func() result {
		ctx, vertex := s.d.telemetry.Record(s.ctx, a.Name())

		ran, err := a.Execute(ctx)
		if c, ok := a.(capturedOutput); ok && ran {
			_, _ = io.WriteString(vertex.Stdout(), c.Stdout())
			_, _ = io.WriteString(vertex.Stderr(), c.Stderr())
		}

		switch {
		case err != nil:
			vertex.Log(domain.LogLevelError, err.Error())
			vertex.Complete(err)
		case !ran:
			vertex.Cached()
		default:
			vertex.Complete(nil)
		}
		return result{id: a.ID(), ran: ran, err: err}
	}()

	s.results <- res
}

func (s *runState) handleResult(res result) {
	s.active--
	name := s.g.actions[res.id].Name()

	if res.err != nil {
		s.errs = errors.Join(s.errs, zerr.With(zerr.Wrap(res.err, "action execution failed"), "action", name))
		s.report.set(res.id, domain.StatusFailed, res.err)
		if !s.d.keepGoing || errors.Is(res.err, domain.ErrExecutedTwice) {
			s.stop.Set()
		}
		return
	}

	if res.ran {
		s.report.set(res.id, domain.StatusCompleted, nil)
	} else {
		s.report.set(res.id, domain.StatusUpToDate, nil)
		s.d.logger.Debug("up to date: " + name)
	}

	for _, dep := range s.g.dependents[res.id] {
		s.inDegree[dep]--
		if s.inDegree[dep] == 0 {
			s.ready.PushBack(dep)
		}
	}
}
