package domain

import "runtime"

const (
	// BackendFile stores engine state in a JSON file.
	BackendFile = "file"
	// BackendSQLite stores engine state in a SQLite database.
	BackendSQLite = "sqlite"

	// DefaultStatePath is the state location used when none is configured.
	DefaultStatePath = ".anvil/state.json"

	// SettingsFileName is the settings file looked up next to the plan.
	SettingsFileName = "anvil.yaml"
)

// Settings holds the engine configuration for one build session.
type Settings struct {
	// Jobs is the number of actions executed concurrently.
	Jobs int
	// StateBackend selects the durable store, BackendFile or BackendSQLite.
	StateBackend string
	// StatePath is the location of the durable store.
	StatePath string
	// KeepGoing continues with independent actions after a failure.
	KeepGoing bool
	// VerifyContent enables the stricter content-hash comparison.
	VerifyContent bool
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
	// Pools maps resource pool names to their capacity.
	Pools map[string]int
}

// DefaultSettings returns the settings used when no configuration file exists.
func DefaultSettings() Settings {
	return Settings{
		Jobs:         runtime.NumCPU(),
		StateBackend: BackendFile,
		StatePath:    DefaultStatePath,
		LogLevel:     "info",
		Pools:        map[string]int{},
	}
}
