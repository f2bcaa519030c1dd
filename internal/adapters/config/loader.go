// Package config loads the engine settings and action plans from YAML files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/anvil/internal/core/domain"
	"go.trai.ch/anvil/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

const supportedVersion = "1"

var _ ports.ConfigLoader = (*Loader)(nil)

// Loader implements ports.ConfigLoader using YAML files.
type Loader struct {
	Logger   ports.Logger
	Resolver ports.InputResolver
}

// NewLoader creates a new configuration loader.
func NewLoader(logger ports.Logger, resolver ports.InputResolver) *Loader {
	return &Loader{
		Logger:   logger,
		Resolver: resolver,
	}
}

// LoadSettings reads the settings file at path. A missing file yields the
// defaults. The state path is resolved relative to the settings file.
func (l *Loader) LoadSettings(path string) (domain.Settings, error) {
	settings := domain.DefaultSettings()
	dir := filepath.Dir(path)
	settings.StatePath = filepath.Join(dir, domain.DefaultStatePath)

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		l.Logger.Debug(fmt.Sprintf("%s not found, using default settings", path))
		return settings, nil
	}

	var file Settingsfile
	if err := readAndUnmarshalYAML(path, &file); err != nil {
		return domain.Settings{}, err
	}
	l.checkVersion(file.Version, path)

	if file.Jobs < 0 {
		err := zerr.With(zerr.Wrap(domain.ErrInvalidSettings, "jobs must not be negative"), "jobs", file.Jobs)
		return domain.Settings{}, zerr.With(err, "path", path)
	}
	if file.Jobs > 0 {
		settings.Jobs = file.Jobs
	}

	settings.KeepGoing = file.KeepGoing
	settings.VerifyContent = file.VerifyContent

	if file.LogLevel != "" {
		settings.LogLevel = file.LogLevel
		if !validLogLevel(file.LogLevel) {
			l.Logger.Warn(fmt.Sprintf("unknown log level %q in %s, using info", file.LogLevel, path))
		}
	}
	if file.State.Backend != "" {
		settings.StateBackend = file.State.Backend
	}
	if file.State.Path != "" {
		settings.StatePath = resolvePath(dir, file.State.Path)
	}

	for name, capacity := range file.Pools {
		if capacity < 1 {
			err := zerr.With(zerr.Wrap(domain.ErrInvalidSettings, "pool capacity must be positive"), "pool", name)
			return domain.Settings{}, zerr.With(err, "capacity", capacity)
		}
		settings.Pools[name] = capacity
	}

	return settings, nil
}

// LoadPlan reads the action plan at path. Relative paths are resolved
// against the plan root, which defaults to the directory of the plan file.
// Input globs are expanded once at load time.
func (l *Loader) LoadPlan(path string) ([]domain.ActionSpec, error) {
	var plan Planfile
	if err := readAndUnmarshalYAML(path, &plan); err != nil {
		return nil, err
	}
	l.checkVersion(plan.Version, path)

	root := resolveRoot(path, plan.Root)

	names := make(map[string]bool, len(plan.Actions))
	for _, dto := range plan.Actions {
		if dto.Name == "" {
			continue
		}
		if names[dto.Name] {
			return nil, zerr.With(zerr.Wrap(domain.ErrDuplicateActionName, "invalid plan"), "action", dto.Name)
		}
		names[dto.Name] = true
	}

	specs := make([]domain.ActionSpec, 0, len(plan.Actions))
	for _, dto := range plan.Actions {
		spec, err := l.buildSpec(dto, root, names)
		if err != nil {
			return nil, zerr.With(err, "plan", path)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func (l *Loader) buildSpec(dto ActionDTO, root string, names map[string]bool) (domain.ActionSpec, error) {
	if dto.ProgramFrom != "" {
		if !names[dto.ProgramFrom] {
			err := zerr.With(zerr.Wrap(domain.ErrUnknownProgramSource, "invalid plan"), "program_from", dto.ProgramFrom)
			return domain.ActionSpec{}, zerr.With(err, "action", dto.Name)
		}
		if dto.Program != "" {
			l.Logger.Warn(fmt.Sprintf("action %q sets both program and programFrom, program is ignored", dto.Name))
		}
	}

	inputs, err := l.Resolver.ResolveInputs(dto.Input, root)
	if err != nil {
		return domain.ActionSpec{}, zerr.With(zerr.Wrap(err, "failed to resolve inputs"), "action", dto.Name)
	}

	workingDir := root
	if dto.WorkingDir != "" {
		workingDir = resolvePath(root, dto.WorkingDir)
	}

	return domain.ActionSpec{
		Name:           dto.Name,
		Program:        resolveProgram(root, dto.Program),
		ProgramFrom:    dto.ProgramFrom,
		Produces:       resolvePath(root, dto.Produces),
		Args:           dto.Args,
		Inputs:         inputs,
		Outputs:        resolvePaths(root, dto.Target),
		Intermediates:  resolvePaths(root, dto.Intermediate),
		WorkingDir:     workingDir,
		Environment:    dto.Environment,
		Stdout:         resolvePath(root, dto.Stdout),
		Stderr:         resolvePath(root, dto.Stderr),
		Pool:           dto.Pool,
		Always:         dto.Always,
		Silent:         dto.Silent,
		RemoveOutputs:  dto.RemoveOutputs,
		NoResponseFile: dto.NoResponseFile,
	}, nil
}

func (l *Loader) checkVersion(version, path string) {
	if version != "" && version != supportedVersion {
		l.Logger.Warn(fmt.Sprintf("unsupported version %q in %s, reading it as version %s", version, path, supportedVersion))
	}
}

// resolveRoot returns the plan root: the configured root relative to the
// plan file, or the plan file's directory.
func resolveRoot(configPath, configuredRoot string) string {
	dir := filepath.Dir(configPath)
	if configuredRoot == "" {
		return filepath.Clean(dir)
	}
	return resolvePath(dir, configuredRoot)
}

func resolvePath(base, p string) string {
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}

func resolvePaths(base string, paths []string) []string {
	if len(paths) == 0 {
		return nil
	}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p != "" {
			out = append(out, resolvePath(base, p))
		}
	}
	return out
}

// resolveProgram keeps bare names for the PATH lookup and anchors relative
// program paths at root.
func resolveProgram(root, program string) string {
	if !strings.ContainsAny(program, "/"+string(filepath.Separator)) {
		return program
	}
	return resolvePath(root, program)
}

func validLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "warning", "error":
		return true
	default:
		return false
	}
}

func readAndUnmarshalYAML[T any](configPath string, target *T) error {
	// #nosec G304 -- configPath is provided by the user
	configFile, err := os.ReadFile(configPath)
	if err != nil {
		return zerr.With(zerr.Wrap(domain.ErrConfigReadFailed, err.Error()), "path", configPath)
	}

	if parseErr := yaml.Unmarshal(configFile, target); parseErr != nil {
		return zerr.With(zerr.Wrap(domain.ErrConfigParseFailed, parseErr.Error()), "path", configPath)
	}

	return nil
}
