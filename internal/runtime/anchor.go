package runtime

import (
	"fmt"
	"strings"

	"axon/internal/ast"
)

// ViolationKind is the on_violation strategy word an anchor declares.
type ViolationKind string

const (
	ViolationRaise    ViolationKind = "raise"
	ViolationWarn     ViolationKind = "warn"
	ViolationLog      ViolationKind = "log"
	ViolationEscalate ViolationKind = "escalate"
	ViolationFallback ViolationKind = "fallback"
)

// ViolationStrategy is the parsed form of an anchor's on_violation field.
type ViolationStrategy struct {
	Kind      ViolationKind
	ErrorName string // populated for raise
	Value     string // populated for fallback
}

// Anchor is the runtime-bound projection of an AnchorDefinition (§6.1):
// predicates, not prompts. Structural enforcement only — `require` and
// `enforce` name tags/invariants checked by set membership and pattern
// matching, never evaluated by invoking the model.
type Anchor struct {
	Name            string
	Require         string
	Reject          []string
	Enforce         string
	ConfidenceFloor float64
	UnknownResponse string
	OnViolation     ViolationStrategy
}

// BindAnchor decodes an anchor's closed field vocabulary into an Anchor.
func BindAnchor(def *ast.AnchorDefinition) *Anchor {
	a := &Anchor{Name: def.Name, OnViolation: ViolationStrategy{Kind: ViolationRaise}}
	for _, f := range def.Fields {
		switch f.Name {
		case "require":
			a.Require = literalIdent(f.Value)
		case "reject":
			a.Reject = literalStrings(f.Value)
		case "enforce":
			a.Enforce = literalIdent(f.Value)
		case "confidence_floor":
			a.ConfidenceFloor = literalFloat(f.Value)
		case "unknown_response":
			a.UnknownResponse = literalString(f.Value)
		case "on_violation":
			a.OnViolation = parseViolationStrategy(f.Value)
		}
	}
	return a
}

// parseViolationStrategy decodes the canonical spelling the parser emits
// for on_violation (`raise <Err>`, `warn`, `log`, `escalate`,
// `fallback(value)`) into a ViolationStrategy.
func parseViolationStrategy(n ast.Node) ViolationStrategy {
	text := literalString(n)
	switch {
	case text == "warn":
		return ViolationStrategy{Kind: ViolationWarn}
	case text == "log":
		return ViolationStrategy{Kind: ViolationLog}
	case text == "escalate":
		return ViolationStrategy{Kind: ViolationEscalate}
	case strings.HasPrefix(text, "raise "):
		return ViolationStrategy{Kind: ViolationRaise, ErrorName: strings.TrimPrefix(text, "raise ")}
	case strings.HasPrefix(text, "fallback("):
		value := strings.TrimSuffix(strings.TrimPrefix(text, "fallback("), ")")
		return ViolationStrategy{Kind: ViolationFallback, Value: strings.Trim(value, `"`)}
	default:
		return ViolationStrategy{Kind: ViolationRaise}
	}
}

// AnchorSet is the conjunctive bundle of anchors bound to a run (§4.8):
// a step passes iff every anchor's gates hold.
type AnchorSet struct {
	Anchors []*Anchor
}

// NewAnchorSet builds the conjunctive set bound to a run.
func NewAnchorSet(anchors []*Anchor) *AnchorSet {
	return &AnchorSet{Anchors: anchors}
}

// ConfidenceFloor resolves the most restrictive (highest) confidence
// floor across every bound anchor.
func (s *AnchorSet) ConfidenceFloor() float64 {
	floor := 0.0
	if s == nil {
		return floor
	}
	for _, a := range s.Anchors {
		if a.ConfidenceFloor > floor {
			floor = a.ConfidenceFloor
		}
	}
	return floor
}

// CheckPre implements the pre-execution anchor gate (§4.5 step 2a): each
// anchor's `require` tag, if set, must be present in inputTags. An
// anchor with no `require` never blocks — the default is permissive.
// Returns the first violating anchor (nil if none) alongside the error,
// so the caller can apply that anchor's own on_violation strategy.
func (s *AnchorSet) CheckPre(step string, inputTags map[string]bool) (*Anchor, error) {
	if s == nil {
		return nil, nil
	}
	for _, a := range s.Anchors {
		if a.Require == "" {
			continue
		}
		if !inputTags[a.Require] {
			return a, AnchorBreachError(step, a.Name, fmt.Sprintf("requires %q", a.Require))
		}
	}
	return nil, nil
}

// CheckPost implements the post-execution anchor gate (§4.5 step 2c):
// reject-pattern matching against the rendered output text plus each
// anchor's confidence_floor against the resolved confidence.
func (s *AnchorSet) CheckPost(step, output string, confidence float64) (*Anchor, error) {
	if s == nil {
		return nil, nil
	}
	lower := strings.ToLower(output)
	for _, a := range s.Anchors {
		for _, pattern := range a.Reject {
			if pattern != "" && strings.Contains(lower, strings.ToLower(pattern)) {
				return a, AnchorBreachError(step, a.Name, fmt.Sprintf("matched reject pattern %q", pattern))
			}
		}
		if a.ConfidenceFloor > 0 && confidence < a.ConfidenceFloor {
			return a, AnchorBreachError(step, a.Name, fmt.Sprintf("confidence %.3f below anchor floor %.3f", confidence, a.ConfidenceFloor))
		}
	}
	return nil, nil
}
