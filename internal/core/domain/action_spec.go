package domain

// ActionSpec is an already-planned action as handed over by the planning layer.
type ActionSpec struct {
	Name    string
	Program string
	// ProgramFrom names another action in the same plan whose produced program is run.
	ProgramFrom string
	// Produces marks the output that is a runnable program for ProgramFrom consumers.
	Produces      string
	Args          []string
	Inputs        []string
	Outputs       []string
	Intermediates []string
	WorkingDir    string
	Environment   map[string]string
	Stdout        string
	Stderr        string
	Pool          string
	Always        bool
	Silent        bool
	RemoveOutputs bool
	// NoResponseFile disables response files for programs that do not understand them.
	NoResponseFile bool
}
