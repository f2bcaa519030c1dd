// Package app implements the application layer for anvil.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.trai.ch/anvil/internal/core/domain"
	"go.trai.ch/anvil/internal/core/ports"
	"go.trai.ch/anvil/internal/engine/action"
	"go.trai.ch/anvil/internal/engine/actioncache"
	"go.trai.ch/anvil/internal/engine/dispatcher"
	"go.trai.ch/anvil/internal/engine/pool"
	"go.trai.ch/anvil/internal/engine/tracker"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// App represents the main application logic.
type App struct {
	configLoader ports.ConfigLoader
	runner       ports.ProcessRunner
	hasher       ports.FileHasher
	opener       ports.StateOpener
	telemetry    ports.Telemetry
	logger       ports.Logger

	out     io.Writer
	colored bool
}

// New creates a new App instance.
func New(
	loader ports.ConfigLoader,
	runner ports.ProcessRunner,
	hasher ports.FileHasher,
	opener ports.StateOpener,
	telemetry ports.Telemetry,
	log ports.Logger,
) *App {
	return &App{
		configLoader: loader,
		runner:       runner,
		hasher:       hasher,
		opener:       opener,
		telemetry:    telemetry,
		logger:       log,
		out:          os.Stderr,
	}
}

// WithOutput sets where progress lines are written and whether their prefix
// is colored.
func (a *App) WithOutput(w io.Writer, colored bool) *App {
	a.out, a.colored = w, colored
	return a
}

// RunOptions overrides the settings file for one invocation.
type RunOptions struct {
	// SettingsPath defaults to anvil.yaml next to the plan.
	SettingsPath string
	// Jobs overrides the configured parallelism when positive.
	Jobs int
	// KeepGoing and VerifyContent are enabled when set here or in the settings.
	KeepGoing     bool
	VerifyContent bool
	// Backend overrides the configured state backend.
	Backend string
}

// Explanation is the outdated verdict of one planned action.
type Explanation struct {
	Name   string
	Reason action.Reason
}

// session is the state of one build: the durable store and the in-memory
// engine state loaded from it.
type session struct {
	settings domain.Settings
	store    ports.StateStore
	engine   *action.Session
	commands []*action.Command
}

// Run executes every outdated action of the plan and persists the engine
// state afterwards. Persistence failures are logged, not returned.
func (a *App) Run(ctx context.Context, planPath string, opts RunOptions) (*dispatcher.Report, error) {
	s, err := a.openSession(ctx, planPath, opts)
	if err != nil {
		return nil, err
	}
	defer a.closeSession(s)

	d := a.newDispatcher(s.settings)
	report, runErr := d.Run(ctx, toActions(s.commands))

	a.persist(context.WithoutCancel(ctx), s)
	if err := a.telemetry.Close(); err != nil {
		a.logger.Error(zerr.Wrap(err, "failed to close telemetry"))
	}

	if report != nil {
		a.logger.Info(summary(report))
	}
	if runErr != nil {
		return report, zerr.Wrap(runErr, "build execution failed")
	}
	return report, nil
}

// Explain reports why each planned action is outdated without running
// anything. Nothing is persisted.
func (a *App) Explain(ctx context.Context, planPath string, opts RunOptions) ([]Explanation, error) {
	s, err := a.openSession(ctx, planPath, opts)
	if err != nil {
		return nil, err
	}
	defer a.closeSession(s)

	if err := a.newDispatcher(s.settings).Prepare(ctx, toActions(s.commands)); err != nil {
		return nil, err
	}

	explanations := make([]Explanation, 0, len(s.commands))
	for _, c := range s.commands {
		reason, err := c.Explain()
		if err != nil {
			return nil, err
		}
		explanations = append(explanations, Explanation{Name: c.Name(), Reason: reason})
	}
	return explanations, nil
}

// Clean removes the outputs and intermediates of every planned action.
func (a *App) Clean(ctx context.Context, planPath string, opts RunOptions) error {
	settings, specs, err := a.load(planPath, opts)
	if err != nil {
		return err
	}

	engine := a.newEngine(settings, tracker.New(a.hasher, nil), actioncache.New(nil))
	commands, err := buildCommands(engine, specs)
	if err != nil {
		return err
	}
	for _, c := range commands {
		if err := ctx.Err(); err != nil {
			return err
		}
		a.logger.Debug("cleaning " + c.Name())
		c.Clean()
	}
	a.logger.Info(fmt.Sprintf("cleaned %d actions", len(commands)))
	return nil
}

func (a *App) load(planPath string, opts RunOptions) (domain.Settings, []domain.ActionSpec, error) {
	settingsPath := opts.SettingsPath
	if settingsPath == "" {
		settingsPath = filepath.Join(filepath.Dir(planPath), domain.SettingsFileName)
	}

	settings, err := a.configLoader.LoadSettings(settingsPath)
	if err != nil {
		return domain.Settings{}, nil, zerr.Wrap(err, "failed to load settings")
	}
	applyOptions(&settings, opts)

	if l, ok := a.logger.(interface{ SetLevel(domain.LogLevel) }); ok {
		l.SetLevel(domain.ParseLogLevel(settings.LogLevel))
	}

	specs, err := a.configLoader.LoadPlan(planPath)
	if err != nil {
		return domain.Settings{}, nil, zerr.Wrap(err, "failed to load plan")
	}
	return settings, specs, nil
}

func applyOptions(settings *domain.Settings, opts RunOptions) {
	if opts.Jobs > 0 {
		settings.Jobs = opts.Jobs
	}
	if opts.Backend != "" {
		settings.StateBackend = opts.Backend
	}
	settings.KeepGoing = settings.KeepGoing || opts.KeepGoing
	settings.VerifyContent = settings.VerifyContent || opts.VerifyContent
}

func (a *App) openSession(ctx context.Context, planPath string, opts RunOptions) (*session, error) {
	settings, specs, err := a.load(planPath, opts)
	if err != nil {
		return nil, err
	}

	store, err := a.opener.Open(settings.StateBackend, settings.StatePath)
	if err != nil {
		return nil, err
	}

	tr := tracker.New(a.hasher, store)
	cache := actioncache.New(store)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return tr.Load(gctx) })
	g.Go(func() error { return cache.Load(gctx) })
	if err := g.Wait(); err != nil {
		_ = store.Close()
		return nil, zerr.Wrap(err, "failed to load engine state")
	}

	engine := a.newEngine(settings, tr, cache)
	commands, err := buildCommands(engine, specs)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &session{
		settings: settings,
		store:    store,
		engine:   engine,
		commands: commands,
	}, nil
}

func (a *App) newEngine(settings domain.Settings, tr *tracker.Tracker, cache *actioncache.Cache) *action.Session {
	return action.NewSession(tr, cache, a.runner, a.logger,
		action.WithPools(pool.NewRegistry(settings.Pools)),
		action.WithVerifyContent(settings.VerifyContent),
	)
}

func (a *App) newDispatcher(settings domain.Settings) *dispatcher.Dispatcher {
	return dispatcher.New(a.telemetry, a.logger,
		dispatcher.WithJobs(settings.Jobs),
		dispatcher.WithKeepGoing(settings.KeepGoing),
		dispatcher.WithOutput(a.out, a.colored),
	)
}

// persist writes the action cache and the file records.
func (a *App) persist(ctx context.Context, s *session) {
	if err := s.engine.Cache().Save(ctx); err != nil {
		a.logger.Error(err)
	}
	if err := s.engine.Tracker().Save(ctx); err != nil {
		a.logger.Error(err)
	}
}

func (a *App) closeSession(s *session) {
	if err := s.store.Close(); err != nil {
		a.logger.Error(zerr.Wrap(err, "failed to close state store"))
	}
}

func toActions(commands []*action.Command) []dispatcher.Action {
	actions := make([]dispatcher.Action, len(commands))
	for i, c := range commands {
		actions[i] = c
	}
	return actions
}

func summary(r *dispatcher.Report) string {
	return fmt.Sprintf("%d actions: %d ran, %d up to date, %d failed, %d abandoned",
		len(r.Outcomes()),
		r.Count(domain.StatusCompleted),
		r.Count(domain.StatusUpToDate),
		r.Count(domain.StatusFailed),
		r.Count(domain.StatusAbandoned),
	)
}
