package action

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"go.trai.ch/anvil/internal/core/domain"
	"go.trai.ch/anvil/internal/core/ports"
	"go.trai.ch/anvil/internal/engine/actioncache"
	"go.trai.ch/anvil/internal/engine/pool"
	"go.trai.ch/zerr"
)

// ProgramSource is an action whose output is a runnable program.
type ProgramSource interface {
	// ProgramFile returns the path of the produced program, or "" if none.
	ProgramFile() string
}

// CommandOptions describes an external program invocation.
type CommandOptions struct {
	// Name is the display name. When empty the action is named after its outputs.
	Name string
	// Program is the executable. Bare names are looked up on PATH.
	Program string
	// Base, when set, supplies the program instead of Program.
	Base ProgramSource
	// Produces is the output other commands may run through Base.
	Produces      string
	Args          []string
	Inputs        []string
	Outputs       []string
	Intermediates []string
	Dir           string
	Env           map[string]string
	// StdoutFile and StderrFile receive a copy of the streams and are outputs.
	StdoutFile string
	StderrFile string
	// Pool names the resource pool gating the invocation.
	Pool          string
	Always        bool
	Silent        bool
	RemoveOutputs bool
	// NoResponseFile keeps long argument lists on the command line.
	NoResponseFile bool
}

// Command runs an external program.
type Command struct {
	base

	program    string
	source     ProgramSource
	produces   string
	args       []string
	dir        string
	env        map[string]string
	stdoutFile string
	stderrFile string
	pool       *pool.ResourcePool

	removeOutputs   bool
	useResponseFile bool

	identity uint64
	slot     *actioncache.Slot

	stdout string
	stderr string
}

var _ ProgramSource = (*Command)(nil)

// NewCommand creates a Command and claims its outputs in the tracker.
func (s *Session) NewCommand(opts CommandOptions) (*Command, error) {
	outputs := slices.Clone(opts.Outputs)
	for _, f := range []string{opts.StdoutFile, opts.StderrFile, opts.Produces} {
		if f != "" {
			outputs = append(outputs, f)
		}
	}

	p, err := s.pools.Get(opts.Pool)
	if err != nil {
		return nil, err
	}

	c := &Command{
		base:            newBase(s, opts.Name, opts.Inputs, outputs, opts.Intermediates, opts.Always, opts.Silent),
		program:         opts.Program,
		source:          opts.Base,
		args:            slices.Clone(opts.Args),
		dir:             opts.Dir,
		env:             opts.Env,
		pool:            p,
		removeOutputs:   opts.RemoveOutputs,
		useResponseFile: !opts.NoResponseFile,
	}
	if opts.Produces != "" {
		c.produces = domain.NormalizePath(opts.Produces)
	}
	if opts.StdoutFile != "" {
		c.stdoutFile = domain.NormalizePath(opts.StdoutFile)
	}
	if opts.StderrFile != "" {
		c.stderrFile = domain.NormalizePath(opts.StderrFile)
	}

	if err := c.claimOutputs(); err != nil {
		return nil, err
	}
	return c, nil
}

// ProgramFile returns the program this command produces.
func (c *Command) ProgramFile() string {
	return c.produces
}

// Program returns the resolved program path. It is empty before Prepare.
func (c *Command) Program() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == domain.StateUnprepared {
		return ""
	}
	return c.program
}

// Args returns the argument list.
func (c *Command) Args() []string {
	return slices.Clone(c.args)
}

// Identity returns the identity hash. It is zero before Prepare.
func (c *Command) Identity() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// Stdout returns the captured standard output of the last run.
func (c *Command) Stdout() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stdout
}

// Stderr returns the captured standard error of the last run.
func (c *Command) Stderr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stderr
}

// Prepare resolves the program, computes the identity hash and infers the
// dependencies on the generators of the program and inputs.
func (c *Command) Prepare() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != domain.StateUnprepared {
		return c.errAlreadyPrepared()
	}
	return c.prepareLocked()
}

// ensurePrepared prepares the command unless that already happened.
func (c *Command) ensurePrepared() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != domain.StateUnprepared {
		return nil
	}
	return c.prepareLocked()
}

func (c *Command) prepareLocked() error {
	program, err := c.resolveProgram()
	if err != nil {
		return err
	}
	c.program = program
	c.identity = identityHash(program, c.args)

	c.linkFiles(slices.Concat([]string{program}, c.inputs))
	c.state = domain.StatePrepared
	return nil
}

func (c *Command) resolveProgram() (string, error) {
	program := c.program
	if c.source != nil {
		program = c.source.ProgramFile()
	}
	if program == "" {
		return "", zerr.With(zerr.Wrap(domain.ErrEmptyProgram, "cannot resolve program"), "action", c.Name())
	}
	if !strings.ContainsRune(program, filepath.Separator) && !strings.ContainsRune(program, '/') {
		found, err := exec.LookPath(program)
		if err != nil {
			err = zerr.With(zerr.Wrap(domain.ErrProgramNotFound, err.Error()), "program", program)
			return "", zerr.With(err, "action", c.Name())
		}
		program = found
	}
	return domain.NormalizePath(program), nil
}

// files returns the paths that decide staleness: program, inputs, outputs.
func (c *Command) files() []string {
	return slices.Concat([]string{c.program}, c.inputs, c.outputs)
}

// Explain prepares the command if needed and reports why it is outdated.
func (c *Command) Explain() (Reason, error) {
	if err := c.ensurePrepared(); err != nil {
		return Reason{}, err
	}
	return c.evaluate(), nil
}

// IsOutdated reports whether the command must run: it is new, always runs,
// or one of its files changed. With content verification enabled an
// unchanged command is also outdated when its content hash differs. The
// command is prepared first if needed; one that cannot be prepared is
// outdated and Execute reports why.
func (c *Command) IsOutdated() bool {
	if err := c.ensurePrepared(); err != nil {
		return true
	}
	return c.evaluate().Outdated()
}

func (c *Command) evaluate() Reason {
	slot, inserted := c.session.cache.InsertIfAbsent(c.identity)
	c.mu.Lock()
	c.slot = slot
	c.mu.Unlock()

	var reason Reason
	if inserted || slot.Load() == 0 {
		reason = Reason{Kind: ReasonNewCommand, Command: c.Print()}
	} else if c.always {
		reason = Reason{Kind: ReasonAlways}
	}

	// Checked unconditionally so every file is observed this session.
	if path, changed := c.changedFile(c.files()); changed && !reason.Outdated() {
		reason = Reason{Kind: ReasonFileChanged, Path: path}
	}

	if !reason.Outdated() && c.session.verifyContent {
		if contentHash(c.identity, c.session.tracker, c.files()) != slot.Load() {
			reason = Reason{Kind: ReasonContentChanged}
		}
	}
	return reason
}

// Print renders the full command line with every element quoted.
func (c *Command) Print() string {
	program := c.program
	if program == "" && c.source != nil {
		program = c.source.ProgramFile()
	}
	return commandLine(program, c.args)
}

// Execute runs the command when it is outdated. It reports whether the
// program was invoked. Failures are returned as *domain.ExecutionError.
func (c *Command) Execute(ctx context.Context) (bool, error) {
	if err := c.ensurePrepared(); err != nil {
		return false, err
	}

	tr := c.session.tracker
	if !c.evaluate().Outdated() {
		// A repeated call must not hide that the first one ran.
		if c.State() != domain.StateExecuted {
			tr.Settle(c.id, true, false)
		}
		return false, nil
	}
	if err := c.beginExecution(); err != nil {
		return false, err
	}

	if !c.silent {
		announce(ctx, c.Name())
	}
	if c.removeOutputs {
		for _, o := range c.outputs {
			_ = os.Remove(o)
		}
	}

	if err := c.run(ctx); err != nil {
		tr.Settle(c.id, false, true)
		return true, err
	}

	c.refreshWritten()
	c.slot.Store(contentHash(c.identity, tr, c.files()))
	tr.Settle(c.id, true, true)
	return true, nil
}

func (c *Command) run(ctx context.Context) error {
	release, err := c.pool.Acquire(ctx)
	if err != nil {
		return c.failure(domain.StagePool, err, "")
	}
	defer release()

	args := c.args
	expanded := ""
	if c.useResponseFile && needsResponseFile(c.program, c.args) {
		path, remove, err := writeResponseFile(c.args)
		if err != nil {
			return c.failure(domain.StageResponseFile, err, "")
		}
		defer remove()
		args = []string{"@" + path}
		expanded = c.Print()
	}

	c.session.logger.Debug(commandLine(c.program, args))

	var stdout, stderr bytes.Buffer
	stdoutW, closeStdout, err := tee(&stdout, c.stdoutFile)
	if err != nil {
		return c.failure(domain.StageRun, err, expanded)
	}
	defer closeStdout()
	stderrW, closeStderr, err := tee(&stderr, c.stderrFile)
	if err != nil {
		return c.failure(domain.StageRun, err, expanded)
	}
	defer closeStderr()

	runErr := c.session.runner.Run(ctx, ports.Invocation{
		Program: c.program,
		Args:    args,
		Dir:     c.dir,
		Env:     c.env,
		Stdout:  stdoutW,
		Stderr:  stderrW,
	})

	c.mu.Lock()
	c.stdout, c.stderr = stdout.String(), stderr.String()
	c.mu.Unlock()

	if runErr != nil {
		return c.failure(domain.StageRun, runErr, expanded)
	}
	return nil
}

func (c *Command) failure(stage domain.Stage, cause error, expanded string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &domain.ExecutionError{
		Stage:   stage,
		Action:  c.Name(),
		Stdout:  c.stdout,
		Stderr:  c.stderr,
		Cause:   cause,
		Command: expanded,
	}
}

// tee returns a writer copying into buf and, when path is set, into that file.
func tee(buf *bytes.Buffer, path string) (io.Writer, func(), error) {
	if path == "" {
		return buf, func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, nil, zerr.With(zerr.Wrap(err, "failed to create redirect directory"), "path", path)
	}
	//nolint:gosec // Path is declared by the action plan
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, zerr.With(zerr.Wrap(err, "failed to create redirect file"), "path", path)
	}
	return io.MultiWriter(buf, f), func() { _ = f.Close() }, nil
}
