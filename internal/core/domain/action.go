// Package domain contains the value types and errors shared by the command engine.
package domain

import "strconv"

// ActionID identifies an action within one build session.
// Files refer to their producing action by ID only, never by pointer.
type ActionID uint64

// NoAction is the zero ActionID. It is never assigned to an action.
const NoAction ActionID = 0

// String returns the decimal form of the ID.
func (id ActionID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ActionState is the lifecycle state of an action.
type ActionState int

const (
	// StateUnprepared is the state of a freshly constructed action.
	StateUnprepared ActionState = iota
	// StatePrepared means the program path, identity hash and dependency edges are resolved.
	StatePrepared
	// StateExecuted means the action ran once in this session, successfully or not.
	StateExecuted
)

// String returns the string representation of the ActionState.
func (s ActionState) String() string {
	switch s {
	case StateUnprepared:
		return "unprepared"
	case StatePrepared:
		return "prepared"
	case StateExecuted:
		return "executed"
	default:
		return "unknown"
	}
}
