package action_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/anvil/internal/core/domain"
	"go.trai.ch/anvil/internal/core/ports"
	"go.trai.ch/anvil/internal/engine/action"
	"go.trai.ch/anvil/internal/engine/pool"
	"go.trai.ch/zerr"
)

type compileLink struct {
	src, obj, app string
	cc, ld        string
}

func newCompileLink(t *testing.T) compileLink {
	dir := t.TempDir()
	p := compileLink{
		src: filepath.Join(dir, "src.c"),
		obj: filepath.Join(dir, "obj", "src.o"),
		app: filepath.Join(dir, "app"),
		cc:  tool(t, dir, "cc"),
		ld:  tool(t, dir, "ld"),
	}
	writeFile(t, p.src, "int main(void) { return 0; }")
	require.NoError(t, os.MkdirAll(filepath.Dir(p.obj), 0o750))
	return p
}

func (p compileLink) actions(t *testing.T, s *action.Session) (compile, link *action.Command) {
	t.Helper()
	compile, err := s.NewCommand(action.CommandOptions{
		Name:    "compile",
		Program: p.cc,
		Args:    []string{p.src, "-o", p.obj},
		Inputs:  []string{p.src},
		Outputs: []string{p.obj},
	})
	require.NoError(t, err)
	link, err = s.NewCommand(action.CommandOptions{
		Name:    "link",
		Program: p.ld,
		Args:    []string{p.obj, "-o", p.app},
		Inputs:  []string{p.obj},
		Outputs: []string{p.app},
	})
	require.NoError(t, err)
	return compile, link
}

func TestCommand_CompileLinkScenario(t *testing.T) {
	p := newCompileLink(t)
	store := newMemStore()
	runner := copyRunner()

	// First run: both outdated, compile then link.
	s := newSession(t, store, runner)
	compile, link := p.actions(t, s)
	require.NoError(t, compile.Prepare())
	require.NoError(t, link.Prepare())
	assert.Equal(t, []domain.ActionID{compile.ID()}, link.Dependencies())
	assert.Empty(t, compile.Dependencies())

	assert.True(t, compile.IsOutdated())
	ran, err := compile.Execute(t.Context())
	require.NoError(t, err)
	assert.True(t, ran)
	ran, err = link.Execute(t.Context())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 2, s.Cache().Len())
	finish(t, s)
	require.Equal(t, 2, runner.count())

	// Second run: nothing changed.
	s = newSession(t, store, runner)
	compile, link = p.actions(t, s)
	require.NoError(t, compile.Prepare())
	require.NoError(t, link.Prepare())
	assert.False(t, compile.IsOutdated())
	ran, err = compile.Execute(t.Context())
	require.NoError(t, err)
	assert.False(t, ran)
	assert.False(t, link.IsOutdated())
	ran, err = link.Execute(t.Context())
	require.NoError(t, err)
	assert.False(t, ran)
	finish(t, s)
	require.Equal(t, 2, runner.count())

	// Third run: the source was edited.
	writeFile(t, p.src, "int main(void) { return 1 + 1; }")
	s = newSession(t, store, runner)
	compile, link = p.actions(t, s)
	require.NoError(t, compile.Prepare())
	require.NoError(t, link.Prepare())
	assert.True(t, compile.IsOutdated())
	ran, err = compile.Execute(t.Context())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.True(t, link.IsOutdated())
	ran, err = link.Execute(t.Context())
	require.NoError(t, err)
	assert.True(t, ran)
	finish(t, s)
	require.Equal(t, 4, runner.count())

	app, err := os.ReadFile(p.app)
	require.NoError(t, err)
	assert.Equal(t, "ld:cc:int main(void) { return 1 + 1; }", string(app))

	// Fourth run: settled again.
	s = newSession(t, store, runner)
	compile, link = p.actions(t, s)
	ran, err = compile.Execute(t.Context())
	require.NoError(t, err)
	assert.False(t, ran)
	ran, err = link.Execute(t.Context())
	require.NoError(t, err)
	assert.False(t, ran)
	require.Equal(t, 4, runner.count())
}

func TestCommand_AlwaysIsOutdated(t *testing.T) {
	p := newCompileLink(t)
	store := newMemStore()
	runner := copyRunner()

	opts := action.CommandOptions{
		Program: p.cc,
		Args:    []string{p.src, "-o", p.obj},
		Inputs:  []string{p.src},
		Outputs: []string{p.obj},
		Always:  true,
	}

	for range 2 {
		s := newSession(t, store, runner)
		c, err := s.NewCommand(opts)
		require.NoError(t, err)
		require.NoError(t, c.Prepare())
		assert.True(t, c.IsOutdated())

		reason, err := c.Explain()
		require.NoError(t, err)
		assert.True(t, reason.Outdated())

		ran, err := c.Execute(t.Context())
		require.NoError(t, err)
		assert.True(t, ran)
		finish(t, s)
	}
	assert.Equal(t, 2, runner.count())
}

func TestCommand_TouchedInputIsOutdated(t *testing.T) {
	p := newCompileLink(t)
	store := newMemStore()
	runner := copyRunner()
	opts := action.CommandOptions{
		Program: p.cc,
		Args:    []string{p.src, "-o", p.obj},
		Inputs:  []string{p.src},
		Outputs: []string{p.obj},
	}

	s := newSession(t, store, runner)
	c, err := s.NewCommand(opts)
	require.NoError(t, err)
	_, err = c.Execute(t.Context())
	require.NoError(t, err)
	finish(t, s)

	writeFile(t, p.src, "int changed;")

	s = newSession(t, store, runner)
	c, err = s.NewCommand(opts)
	require.NoError(t, err)
	reason, err := c.Explain()
	require.NoError(t, err)
	assert.Equal(t, action.ReasonFileChanged, reason.Kind)
	assert.Equal(t, domain.NormalizePath(p.src), reason.Path)
	assert.True(t, c.IsOutdated())
}

func TestCommand_RoundTrip(t *testing.T) {
	p := newCompileLink(t)
	s := newSession(t, newMemStore(), copyRunner())
	c, err := s.NewCommand(action.CommandOptions{
		Program: p.cc,
		Args:    []string{p.src, "-o", p.obj},
		Inputs:  []string{p.src},
		Outputs: []string{p.obj},
	})
	require.NoError(t, err)
	_, err = c.Execute(t.Context())
	require.NoError(t, err)

	tr := s.Tracker()
	for _, o := range c.Outputs() {
		tr.Invalidate(o)
		assert.False(t, tr.IsChanged(o))
	}

	writeFile(t, p.obj, "tampered with a longer body")
	tr.Invalidate(p.obj)
	assert.True(t, tr.IsChanged(p.obj))
}

func TestCommand_ResponseFileThreshold(t *testing.T) {
	dir := t.TempDir()
	program := tool(t, dir, "cl")
	base := len(program) + 3

	tests := []struct {
		name    string
		argLen  int
		wantRsp bool
	}{
		{name: "at limit", argLen: 8100 - base - 3, wantRsp: false},
		{name: "over limit", argLen: 8100 - base - 3 + 1, wantRsp: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			arg := strings.Repeat("x", tt.argLen)
			runner := &scriptRunner{}
			s := newSession(t, newMemStore(), runner)
			c, err := s.NewCommand(action.CommandOptions{Program: program, Args: []string{arg}, Always: true})
			require.NoError(t, err)

			_, err = c.Execute(t.Context())
			require.NoError(t, err)
			require.Equal(t, 1, runner.count())

			got := runner.calls[0].Args
			if tt.wantRsp {
				require.Len(t, got, 1)
				assert.True(t, strings.HasPrefix(got[0], "@"))
			} else {
				assert.Equal(t, []string{arg}, got)
			}
		})
	}
}

func TestCommand_ResponseFileManyArguments(t *testing.T) {
	dir := t.TempDir()
	program := tool(t, dir, "ar")

	args := make([]string, 5000)
	for i := range args {
		args[i] = string(rune('a' + i%26))
	}
	args[7] = `q"uo\te`

	for _, fail := range []bool{false, true} {
		var rspPath, content string
		runner := &scriptRunner{fn: func(inv ports.Invocation) error {
			require.Len(t, inv.Args, 1)
			rspPath = strings.TrimPrefix(inv.Args[0], "@")
			data, err := os.ReadFile(rspPath)
			require.NoError(t, err)
			content = string(data)
			if fail {
				return errors.New("exit status 1")
			}
			return nil
		}}

		s := newSession(t, newMemStore(), runner)
		c, err := s.NewCommand(action.CommandOptions{Name: "archive", Program: program, Args: args})
		require.NoError(t, err)

		ran, err := c.Execute(t.Context())
		assert.True(t, ran)
		if fail {
			require.Error(t, err)
			assert.Contains(t, err.Error(), "full command:")
			assert.Contains(t, err.Error(), `"q\"uo\\te"`)
		} else {
			require.NoError(t, err)
		}

		lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
		require.Len(t, lines, len(args))
		assert.Equal(t, `"a"`, lines[0])
		assert.Equal(t, `"q\"uo\\te"`, lines[7])

		_, statErr := os.Stat(rspPath)
		assert.ErrorIs(t, statErr, os.ErrNotExist, "response file must be removed")
	}
}

func TestCommand_ResponseFileDisabled(t *testing.T) {
	program := tool(t, t.TempDir(), "legacy")
	args := []string{strings.Repeat("y", 9000)}
	runner := &scriptRunner{}
	s := newSession(t, newMemStore(), runner)
	c, err := s.NewCommand(action.CommandOptions{Program: program, Args: args, NoResponseFile: true})
	require.NoError(t, err)

	_, err = c.Execute(t.Context())
	require.NoError(t, err)
	assert.Equal(t, args, runner.calls[0].Args)
}

func TestCommand_FailureDiagnostic(t *testing.T) {
	p := newCompileLink(t)
	runner := &scriptRunner{fn: func(inv ports.Invocation) error {
		_, _ = inv.Stdout.Write([]byte("linking app\n"))
		_, _ = inv.Stderr.Write([]byte("undefined reference to `main'\n"))
		return errors.New("exit status 1")
	}}
	s := newSession(t, newMemStore(), runner)
	c, err := s.NewCommand(action.CommandOptions{
		Name:    "link app",
		Program: p.ld,
		Args:    []string{p.src, "-o", p.app},
		Inputs:  []string{p.src},
		Outputs: []string{p.app},
	})
	require.NoError(t, err)

	ran, err := c.Execute(t.Context())
	assert.True(t, ran)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrActionFailed)
	assert.Contains(t, err.Error(), "undefined reference to `main'")
	assert.Contains(t, err.Error(), `"link app"`)
	assert.NotContains(t, err.Error(), "full command:")

	execErr, ok := domain.AsExecutionError(err)
	require.True(t, ok)
	assert.Equal(t, domain.StageRun, execErr.Stage)
	assert.Equal(t, "linking app\n", execErr.Stdout)
	assert.Equal(t, domain.StateExecuted, c.State())

	_, cached := s.Cache().Lookup(c.Identity())
	assert.False(t, cached, "a failed run leaves no cache entry")
}

func TestCommand_PrepareErrors(t *testing.T) {
	s := newSession(t, newMemStore(), &scriptRunner{})

	t.Run("empty program", func(t *testing.T) {
		c, err := s.NewCommand(action.CommandOptions{Name: "nothing"})
		require.NoError(t, err)
		err = c.Prepare()
		assert.ErrorIs(t, err, domain.ErrEmptyProgram)
	})

	t.Run("base without program", func(t *testing.T) {
		gen, err := s.NewCommand(action.CommandOptions{Program: "/bin/true", Outputs: []string{"gen.txt"}})
		require.NoError(t, err)
		c, err := s.NewCommand(action.CommandOptions{Base: gen})
		require.NoError(t, err)
		assert.ErrorIs(t, c.Prepare(), domain.ErrEmptyProgram)
	})

	t.Run("program not on path", func(t *testing.T) {
		t.Setenv("PATH", t.TempDir())
		c, err := s.NewCommand(action.CommandOptions{Program: "anvil-missing-tool"})
		require.NoError(t, err)
		assert.ErrorIs(t, c.Prepare(), domain.ErrProgramNotFound)
	})

	t.Run("prepared twice", func(t *testing.T) {
		c, err := s.NewCommand(action.CommandOptions{Program: "/bin/true"})
		require.NoError(t, err)
		require.NoError(t, c.Prepare())
		err = c.Prepare()
		require.ErrorIs(t, err, domain.ErrAlreadyPrepared)

		zErr, ok := err.(*zerr.Error)
		require.True(t, ok)
		assert.Equal(t, c.Name(), zErr.Metadata()["action"])
	})
}

func TestCommand_DuplicateOutput(t *testing.T) {
	s := newSession(t, newMemStore(), &scriptRunner{})
	_, err := s.NewCommand(action.CommandOptions{Program: "/bin/true", Outputs: []string{"out.bin"}})
	require.NoError(t, err)

	_, err = s.NewCommand(action.CommandOptions{Program: "/bin/false", Outputs: []string{"out.bin"}})
	assert.ErrorIs(t, err, domain.ErrDuplicateOutput)
}

func TestCommand_ExecutedTwice(t *testing.T) {
	program := tool(t, t.TempDir(), "gen")
	s := newSession(t, newMemStore(), &scriptRunner{})
	c, err := s.NewCommand(action.CommandOptions{Program: program, Always: true})
	require.NoError(t, err)

	_, err = c.Execute(t.Context())
	require.NoError(t, err)

	ran, err := c.Execute(t.Context())
	assert.False(t, ran)
	assert.ErrorIs(t, err, domain.ErrExecutedTwice)
}

func TestCommand_BaseProgram(t *testing.T) {
	dir := t.TempDir()
	cc := tool(t, dir, "cc")
	genTool := filepath.Join(dir, "bin", "gen-tool")
	table := filepath.Join(dir, "table.c")

	var ran []string
	runner := &scriptRunner{fn: func(inv ports.Invocation) error {
		ran = append(ran, filepath.Base(inv.Program))
		if inv.Program == cc {
			return os.WriteFile(genTool, []byte("#!/bin/sh\n"), 0o700) //nolint:gosec // test executable
		}
		return os.WriteFile(table, []byte("int table[1];"), 0o600)
	}}

	s := newSession(t, newMemStore(), runner)
	builder, err := s.NewCommand(action.CommandOptions{Program: cc, Produces: genTool})
	require.NoError(t, err)
	gen, err := s.NewCommand(action.CommandOptions{Base: builder, Args: []string{"-o", table}, Outputs: []string{table}})
	require.NoError(t, err)

	require.NoError(t, builder.Prepare())
	require.NoError(t, gen.Prepare())
	assert.Equal(t, domain.NormalizePath(genTool), gen.Program())
	assert.Equal(t, []domain.ActionID{builder.ID()}, gen.Dependencies())

	_, err = builder.Execute(t.Context())
	require.NoError(t, err)
	_, err = gen.Execute(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"cc", "gen-tool"}, ran)
}

func TestCommand_RedirectAndRemoveOutputs(t *testing.T) {
	dir := t.TempDir()
	program := tool(t, dir, "gen")
	out := filepath.Join(dir, "gen.h")
	log := filepath.Join(dir, "logs", "gen.log")
	writeFile(t, out, "stale")

	runner := &scriptRunner{fn: func(inv ports.Invocation) error {
		if _, err := os.Stat(out); !errors.Is(err, os.ErrNotExist) {
			return errors.New("output was not removed before the run")
		}
		_, _ = inv.Stdout.Write([]byte("generated\n"))
		return os.WriteFile(out, []byte("#define X 1\n"), 0o600)
	}}

	s := newSession(t, newMemStore(), runner)
	c, err := s.NewCommand(action.CommandOptions{
		Program:       program,
		Outputs:       []string{out},
		StdoutFile:    log,
		RemoveOutputs: true,
	})
	require.NoError(t, err)
	assert.Contains(t, c.Outputs(), domain.NormalizePath(log))

	_, err = c.Execute(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "generated\n", c.Stdout())

	data, err := os.ReadFile(log)
	require.NoError(t, err)
	assert.Equal(t, "generated\n", string(data))
	assert.False(t, s.Tracker().IsChanged(log))
}

func TestCommand_Pool(t *testing.T) {
	program := tool(t, t.TempDir(), "ld")
	reg := pool.NewRegistry(map[string]int{"link": 1})
	link, err := reg.Get("link")
	require.NoError(t, err)

	runner := &scriptRunner{fn: func(ports.Invocation) error {
		if link.InUse() != 1 {
			return errors.New("pool slot not held during the run")
		}
		return nil
	}}
	s := newSession(t, newMemStore(), runner, action.WithPools(reg))

	c, err := s.NewCommand(action.CommandOptions{Program: program, Pool: "link"})
	require.NoError(t, err)
	_, err = c.Execute(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 0, link.InUse())

	_, err = s.NewCommand(action.CommandOptions{Program: program, Pool: "gpu"})
	assert.ErrorIs(t, err, domain.ErrUnknownPool)
}

func TestCommand_VerifyContent(t *testing.T) {
	p := newCompileLink(t)
	store := newMemStore()
	runner := copyRunner()
	opts := action.CommandOptions{
		Program: p.cc,
		Args:    []string{p.src, "-o", p.obj},
		Inputs:  []string{p.src},
		Outputs: []string{p.obj},
	}

	s := newSession(t, store, runner)
	c, err := s.NewCommand(opts)
	require.NoError(t, err)
	_, err = c.Execute(t.Context())
	require.NoError(t, err)
	finish(t, s)

	s = newSession(t, store, runner, action.WithVerifyContent(true))
	c, err = s.NewCommand(opts)
	require.NoError(t, err)
	assert.False(t, c.IsOutdated())
	require.NotZero(t, c.Identity())
	require.Contains(t, store.actions, c.Identity())

	store.mu.Lock()
	store.actions[c.Identity()]++
	store.mu.Unlock()

	s = newSession(t, store, runner, action.WithVerifyContent(true))
	c, err = s.NewCommand(opts)
	require.NoError(t, err)
	reason, err := c.Explain()
	require.NoError(t, err)
	assert.Equal(t, action.ReasonContentChanged, reason.Kind)

	s = newSession(t, store, runner)
	c, err = s.NewCommand(opts)
	require.NoError(t, err)
	assert.False(t, c.IsOutdated(), "content is only compared when enabled")
}

func TestCommand_IsOutdatedPreparesOnDemand(t *testing.T) {
	p := newCompileLink(t)
	store := newMemStore()
	runner := copyRunner()

	s := newSession(t, store, runner)
	compile, link := p.actions(t, s)
	_, err := compile.Execute(t.Context())
	require.NoError(t, err)
	_, err = link.Execute(t.Context())
	require.NoError(t, err)
	finish(t, s)

	s = newSession(t, store, runner)
	compile, link = p.actions(t, s)
	assert.False(t, compile.IsOutdated())
	assert.Equal(t, domain.StatePrepared, compile.State())
	assert.NotZero(t, compile.Identity())
	assert.ErrorIs(t, compile.Prepare(), domain.ErrAlreadyPrepared)

	ran, err := compile.Execute(t.Context())
	require.NoError(t, err)
	assert.False(t, ran)
	assert.False(t, link.IsOutdated())
	assert.Equal(t, []domain.ActionID{compile.ID()}, link.Dependencies())
	assert.Equal(t, 2, s.Cache().Len())
}

func TestCommand_IsOutdatedWhenPrepareFails(t *testing.T) {
	s := newSession(t, newMemStore(), &scriptRunner{})
	c, err := s.NewCommand(action.CommandOptions{Name: "empty"})
	require.NoError(t, err)

	assert.True(t, c.IsOutdated())
	_, err = c.Execute(t.Context())
	assert.ErrorIs(t, err, domain.ErrEmptyProgram)
}

func TestCommand_RepeatedExecuteKeepsRunRecorded(t *testing.T) {
	p := newCompileLink(t)
	runner := copyRunner()
	s := newSession(t, newMemStore(), runner)
	compile, link := p.actions(t, s)

	ran, err := compile.Execute(t.Context())
	require.NoError(t, err)
	require.True(t, ran)
	assert.True(t, s.Tracker().IsChangedFor(p.obj, link.ID()))

	ran, err = compile.Execute(t.Context())
	require.NoError(t, err)
	assert.False(t, ran)
	assert.True(t, s.Tracker().IsChangedFor(p.obj, link.ID()), "output was rewritten this session")
	assert.Equal(t, 1, runner.count())
}

func TestCommand_NameAndPrint(t *testing.T) {
	s := newSession(t, newMemStore(), &scriptRunner{})

	named, err := s.NewCommand(action.CommandOptions{Name: "compile main", Program: "/usr/bin/cc"})
	require.NoError(t, err)
	assert.Equal(t, `"compile main"`, named.Name())

	unnamed, err := s.NewCommand(action.CommandOptions{
		Program: "/usr/bin/cc",
		Args:    []string{"-c", `a "b"`},
		Outputs: []string{"/out/a.o", "/out/b.o"},
	})
	require.NoError(t, err)
	assert.Equal(t, `Generating: "/out/a.o", "/out/b.o"`, unnamed.Name())
	assert.Equal(t, `"/usr/bin/cc" "-c" "a \"b\""`, unnamed.Print())
}

func TestCommand_Clean(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.o")
	tmp := filepath.Join(dir, "out.d")
	writeFile(t, out, "x")
	writeFile(t, tmp, "y")

	s := newSession(t, newMemStore(), &scriptRunner{})
	c, err := s.NewCommand(action.CommandOptions{
		Program:       "/usr/bin/cc",
		Outputs:       []string{out, filepath.Join(dir, "never-built")},
		Intermediates: []string{tmp},
	})
	require.NoError(t, err)

	c.Clean()
	assert.NoFileExists(t, out)
	assert.NoFileExists(t, tmp)
}

func TestCommand_CleanKeepsDirectoryContents(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "gen")
	kept := filepath.Join(outDir, "keep.txt")
	writeFile(t, kept, "x")

	s := newSession(t, newMemStore(), &scriptRunner{})
	c, err := s.NewCommand(action.CommandOptions{Program: "/usr/bin/cc", Outputs: []string{outDir}})
	require.NoError(t, err)

	c.Clean()
	assert.FileExists(t, kept)
}
