package ir

import "fmt"

// ErrorKind closes the set of failures the IR generator can report.
type ErrorKind string

const (
	// CyclicDependency means the step graph contains a reference cycle;
	// this should be unreachable for a program that passed the checker,
	// since AXON only allows referencing steps declared earlier in the
	// same flow, but the generator verifies it rather than assume it.
	CyclicDependency ErrorKind = "CyclicDependency"
	// NoEntrypoint means the program has no run statement to compile into
	// Program.Entrypoint.
	NoEntrypoint ErrorKind = "NoEntrypoint"
)

// Error reports a single IR generation failure.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
