package action

import "strconv"

// ReasonKind classifies why an action is outdated.
type ReasonKind int

const (
	// ReasonNone means the action is up to date.
	ReasonNone ReasonKind = iota
	// ReasonNewCommand means the identity hash has no completed cache entry.
	ReasonNewCommand
	// ReasonAlways means the action is marked to run every session.
	ReasonAlways
	// ReasonFileChanged means the program, an input or an output changed.
	ReasonFileChanged
	// ReasonContentChanged means the stored content hash no longer matches.
	ReasonContentChanged
)

// Reason explains the outdated verdict of an action.
type Reason struct {
	Kind ReasonKind
	// Path is the first changed file for ReasonFileChanged.
	Path string
	// Command is the rendered command line for ReasonNewCommand.
	Command string
}

// Outdated reports whether the reason requires a run.
func (r Reason) Outdated() bool {
	return r.Kind != ReasonNone
}

func (r Reason) String() string {
	switch r.Kind {
	case ReasonNone:
		return "up to date"
	case ReasonNewCommand:
		if r.Command == "" {
			return "new command"
		}
		return "new command: " + r.Command
	case ReasonAlways:
		return "always build"
	case ReasonFileChanged:
		return "file changed: " + strconv.Quote(r.Path)
	case ReasonContentChanged:
		return "content hash changed"
	default:
		return "unknown"
	}
}
