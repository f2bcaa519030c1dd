package domain

// ActionStatus is the dispatcher's view of an action during one session.
type ActionStatus string

const (
	// StatusPending indicates the action waits for its dependencies.
	StatusPending ActionStatus = "pending"
	// StatusRunning indicates the action is being evaluated or executed.
	StatusRunning ActionStatus = "running"
	// StatusCompleted indicates the action was outdated and ran successfully.
	StatusCompleted ActionStatus = "completed"
	// StatusUpToDate indicates the action was judged not outdated and skipped.
	StatusUpToDate ActionStatus = "up-to-date"
	// StatusFailed indicates the action ran and failed.
	StatusFailed ActionStatus = "failed"
	// StatusAbandoned indicates the action never started because the dispatcher stopped.
	StatusAbandoned ActionStatus = "abandoned"
)

// IsTerminal reports whether the status is final for the session.
func (s ActionStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusUpToDate, StatusFailed, StatusAbandoned:
		return true
	default:
		return false
	}
}

// LogLevel represents the severity of a log message, mirroring the standard slog levels.
type LogLevel int

const (
	// LogLevelDebug represents debug-level verbosity.
	LogLevelDebug LogLevel = -4
	// LogLevelInfo represents informational verbosity.
	LogLevelInfo LogLevel = 0
	// LogLevelWarn represents warning verbosity.
	LogLevelWarn LogLevel = 4
	// LogLevelError represents error verbosity.
	LogLevelError LogLevel = 8
)

// ParseLogLevel maps a configuration string to a LogLevel. Unknown values map to info.
func ParseLogLevel(s string) LogLevel {
	switch s {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}
