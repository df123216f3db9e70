// Package checker implements AXON's epistemic type checker: a two-pass
// walk (declaration collection, then per-flow checking) over a parsed
// Program, producing a batched, ordered list of Diagnostics. Checking
// never stops at the first error — every declaration and every flow is
// checked regardless of earlier failures, mirroring a traditional
// compiler's batch-diagnostics discipline.
package checker

import (
	"fmt"

	"axon/internal/token"
)

// DiagnosticKind closes the set of diagnostic kinds the checker emits.
type DiagnosticKind string

const (
	UnknownType                    DiagnosticKind = "UnknownType"
	UnknownSymbol                  DiagnosticKind = "UnknownSymbol"
	IncompatibleAssignment         DiagnosticKind = "IncompatibleAssignment"
	RangeViolation                 DiagnosticKind = "RangeViolation"
	DuplicateDeclaration           DiagnosticKind = "DuplicateDeclaration"
	UncertaintyPropagationRequired DiagnosticKind = "UncertaintyPropagationRequired"
	InvalidPredicate               DiagnosticKind = "InvalidPredicate"
	EmptyDomain                    DiagnosticKind = "EmptyDomain"
	MissingEntrypoint              DiagnosticKind = "MissingEntrypoint"
)

// Severity distinguishes hard errors (which make the program unrunnable)
// from informational notices such as UncertaintyPropagationRequired.
type Severity int

const (
	SeverityError Severity = iota
	SeverityInfo
)

// Diagnostic is one checker finding: a kind, a human message, a source
// position, and a severity. Compile-time diagnostics are never recovered
// from at runtime (§7): a program with any SeverityError diagnostic
// cannot reach IR generation.
type Diagnostic struct {
	Kind     DiagnosticKind
	Message  string
	Position token.Position
	Severity Severity
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Position, d.Kind, d.Message)
}

// Diagnostics is an ordered, append-only collection built during a check
// pass.
type Diagnostics struct {
	items []Diagnostic
}

func (d *Diagnostics) add(kind DiagnosticKind, sev Severity, pos token.Position, format string, args ...any) {
	d.items = append(d.items, Diagnostic{
		Kind: kind, Severity: sev, Position: pos, Message: fmt.Sprintf(format, args...),
	})
}

func (d *Diagnostics) Errorf(kind DiagnosticKind, pos token.Position, format string, args ...any) {
	d.add(kind, SeverityError, pos, format, args...)
}

func (d *Diagnostics) Infof(kind DiagnosticKind, pos token.Position, format string, args ...any) {
	d.add(kind, SeverityInfo, pos, format, args...)
}

func (d *Diagnostics) All() []Diagnostic {
	return d.items
}

// HasErrors reports whether any SeverityError diagnostic was recorded.
func (d *Diagnostics) HasErrors() bool {
	for _, it := range d.items {
		if it.Severity == SeverityError {
			return true
		}
	}
	return false
}
