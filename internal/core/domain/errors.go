package domain

import "go.trai.ch/zerr"

var (
	// ErrEmptyProgram is returned when an action resolves to an empty program path.
	ErrEmptyProgram = zerr.New("empty program")

	// ErrProgramNotFound is returned when a bare program name is not found on PATH.
	ErrProgramNotFound = zerr.New("program not found")

	// ErrDuplicateOutput is returned when two pending actions claim the same output file.
	ErrDuplicateOutput = zerr.New("output already generated by another action")

	// ErrAlreadyPrepared is returned when Prepare is called on a prepared action.
	ErrAlreadyPrepared = zerr.New("action already prepared")

	// ErrExecutedTwice is returned when an action is executed a second time in one session.
	// It signals a scheduling bug and is never retried.
	ErrExecutedTwice = zerr.New("action executed twice")

	// ErrActionFailed is the sentinel matched by every ExecutionError.
	ErrActionFailed = zerr.New("action failed")

	// ErrCycleDetected is returned when the inferred action dependencies form a cycle.
	ErrCycleDetected = zerr.New("cycle detected")

	// ErrUnknownPool is returned when an action references a resource pool that is not configured.
	ErrUnknownPool = zerr.New("unknown resource pool")

	// ErrUnknownBackend is returned when the configured state backend is not supported.
	ErrUnknownBackend = zerr.New("unknown state backend")

	// ErrDispatchAborted is returned when the dispatcher stopped before every action completed.
	ErrDispatchAborted = zerr.New("dispatch aborted")

	// ErrConfigReadFailed is returned when a settings or plan file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read configuration file")

	// ErrConfigParseFailed is returned when a settings or plan file is not valid YAML.
	ErrConfigParseFailed = zerr.New("failed to parse configuration file")

	// ErrInvalidSettings is returned when a settings value is out of range.
	ErrInvalidSettings = zerr.New("invalid settings")

	// ErrDuplicateActionName is returned when two planned actions share a name.
	ErrDuplicateActionName = zerr.New("duplicate action name")

	// ErrUnknownProgramSource is returned when program_from names no planned action.
	ErrUnknownProgramSource = zerr.New("unknown program source")
)
