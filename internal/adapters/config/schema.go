package config

// Settingsfile represents the structure of the anvil.yaml settings file.
type Settingsfile struct {
	Version       string         `yaml:"version"`
	Jobs          int            `yaml:"jobs"`
	KeepGoing     bool           `yaml:"keepGoing"`
	VerifyContent bool           `yaml:"verifyContent"`
	LogLevel      string         `yaml:"logLevel"`
	State         StateDTO       `yaml:"state"`
	Pools         map[string]int `yaml:"pools"`
}

// StateDTO selects the durable store.
type StateDTO struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// Planfile represents the structure of an action plan file.
type Planfile struct {
	Version string      `yaml:"version"`
	Root    string      `yaml:"root"`
	Actions []ActionDTO `yaml:"actions"`
}

// ActionDTO represents one planned action.
type ActionDTO struct {
	Name           string            `yaml:"name"`
	Program        string            `yaml:"program"`
	ProgramFrom    string            `yaml:"programFrom"`
	Produces       string            `yaml:"produces"`
	Args           []string          `yaml:"args"`
	Input          []string          `yaml:"input"`
	Target         []string          `yaml:"target"`
	Intermediate   []string          `yaml:"intermediate"`
	WorkingDir     string            `yaml:"workingDir"`
	Environment    map[string]string `yaml:"environment"`
	Stdout         string            `yaml:"stdout"`
	Stderr         string            `yaml:"stderr"`
	Pool           string            `yaml:"pool"`
	Always         bool              `yaml:"always"`
	Silent         bool              `yaml:"silent"`
	RemoveOutputs  bool              `yaml:"removeOutputs"`
	NoResponseFile bool              `yaml:"noResponseFile"`
}
