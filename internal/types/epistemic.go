// Package types defines AXON's epistemic type system: nominal type
// identity, a fixed compatibility matrix between the built-in epistemic
// kinds, numeric refinement ranges, and List/Optional wrapping. Structural
// predicate admission for `where` clauses lives in predicate.go.
package types

import "fmt"

// Kind tags the shape of a SemanticType: a primitive, one of the built-in
// epistemic kinds, a user-defined nominal/refined type, or one of the two
// generic wrappers.
type Kind int

const (
	KindPrimitive Kind = iota
	KindEpistemic
	KindNominal
	KindList
	KindOptional
)

// Epistemic enumerates AXON's built-in epistemic primitives (§3/§4.3).
// Each carries a distinct evidentiary posture and is nominally
// incompatible with its siblings except where the compatibility matrix
// and substitution table below say otherwise.
type Epistemic int

const (
	EpistemicNone Epistemic = iota
	FactualClaim
	CitedFact
	Opinion
	Speculation
	Uncertainty
	RiskScore
	ConfidenceScore
	SentimentScore
)

func (e Epistemic) String() string {
	switch e {
	case FactualClaim:
		return "FactualClaim"
	case CitedFact:
		return "CitedFact"
	case Opinion:
		return "Opinion"
	case Speculation:
		return "Speculation"
	case Uncertainty:
		return "Uncertainty"
	case RiskScore:
		return "RiskScore"
	case ConfidenceScore:
		return "ConfidenceScore"
	case SentimentScore:
		return "SentimentScore"
	default:
		return "none"
	}
}

// SemanticType is the checker's runtime representation of a declared or
// inferred type: a name for nominal identity, a Kind discriminator, an
// optional Epistemic tag, an optional numeric range, and (for List and
// Optional) an Elem.
type SemanticType struct {
	Name      string
	Kind      Kind
	Epistemic Epistemic
	Range     *Range  // non-nil only for refined numeric types
	Elem      *SemanticType // non-nil only for List/Optional
}

// Range is an inclusive-inclusive numeric refinement bound.
type Range struct {
	Lo, Hi float64
}

func (r *Range) Contains(v float64) bool {
	return v >= r.Lo && v <= r.Hi
}

// Built-in primitive and epistemic SemanticTypes. These are singletons:
// the checker compares by Name for nominal identity, never by pointer.
var (
	String  = &SemanticType{Name: "String", Kind: KindPrimitive}
	Int     = &SemanticType{Name: "Int", Kind: KindPrimitive}
	Float   = &SemanticType{Name: "Float", Kind: KindPrimitive}
	Bool    = &SemanticType{Name: "Bool", Kind: KindPrimitive}
	Duration = &SemanticType{Name: "Duration", Kind: KindPrimitive}

	TFactualClaim    = &SemanticType{Name: "FactualClaim", Kind: KindEpistemic, Epistemic: FactualClaim}
	TCitedFact       = &SemanticType{Name: "CitedFact", Kind: KindEpistemic, Epistemic: CitedFact}
	TOpinion         = &SemanticType{Name: "Opinion", Kind: KindEpistemic, Epistemic: Opinion}
	TSpeculation     = &SemanticType{Name: "Speculation", Kind: KindEpistemic, Epistemic: Speculation}
	TUncertainty     = &SemanticType{Name: "Uncertainty", Kind: KindEpistemic, Epistemic: Uncertainty}
	TRiskScore       = &SemanticType{Name: "RiskScore", Kind: KindEpistemic, Epistemic: RiskScore}
	TConfidenceScore = &SemanticType{Name: "ConfidenceScore", Kind: KindEpistemic, Epistemic: ConfidenceScore}
	TSentimentScore  = &SemanticType{Name: "SentimentScore", Kind: KindEpistemic, Epistemic: SentimentScore}
)

// Builtins indexes the primitive and epistemic singletons by name, for the
// checker's declaration-collection pass to resolve bare TypeRefs against
// before falling back to user-defined nominal types.
var Builtins = map[string]*SemanticType{
	"String": String, "Int": Int, "Float": Float, "Bool": Bool, "Duration": Duration,
	"FactualClaim": TFactualClaim, "CitedFact": TCitedFact,
	"Opinion": TOpinion, "Speculation": TSpeculation, "Uncertainty": TUncertainty,
	"RiskScore": TRiskScore, "ConfidenceScore": TConfidenceScore, "SentimentScore": TSentimentScore,
}

func List(elem *SemanticType) *SemanticType {
	return &SemanticType{Name: "List<" + elem.Name + ">", Kind: KindList, Elem: elem}
}

func Optional(elem *SemanticType) *SemanticType {
	return &SemanticType{Name: "Optional<" + elem.Name + ">", Kind: KindOptional, Elem: elem}
}

// compatMatrix encodes §4.3's fixed epistemic-to-epistemic substitutions
// beyond identity and the blanket Uncertainty rule (handled separately in
// Compatible): CitedFact carries enough provenance to stand in for a bare
// FactualClaim slot. Opinion and Speculation never appear here — §3 is
// explicit that neither is ever assignable to FactualClaim or CitedFact.
var compatMatrix = map[Epistemic]map[Epistemic]bool{
	FactualClaim: {CitedFact: true},
}

// epistemicToPrimitive encodes §4.3's allowed epistemic-to-primitive
// substitutions: a value carrying one of these epistemic kinds may flow
// into a plain primitive-typed slot of the named primitive.
var epistemicToPrimitive = map[Epistemic]string{
	FactualClaim:    "String",
	RiskScore:       "Float",
	ConfidenceScore: "Float",
	SentimentScore:  "Float",
}

// Compatible reports whether a value of type `from` may be used where
// `to` is declared, per §4.3. Uncertainty is assignable to any slot
// regardless of the declared target. Otherwise: List/Optional require
// their element types to be Compatible; epistemic targets require exact
// name identity or an entry in compatMatrix; primitive and nominal
// targets require exact name identity, or an allowed epistemic-to-
// primitive substitution from epistemicToPrimitive; a ranged nominal
// target also accepts a bare Int or Float.
func Compatible(from, to *SemanticType) bool {
	if from == nil || to == nil {
		return false
	}
	if from.Kind == KindEpistemic && from.Epistemic == Uncertainty {
		return true
	}
	switch to.Kind {
	case KindList, KindOptional:
		if from.Kind != to.Kind {
			return false
		}
		return Compatible(from.Elem, to.Elem)
	case KindEpistemic:
		if from.Kind != KindEpistemic {
			return false
		}
		if from.Name == to.Name {
			return true
		}
		allowed, ok := compatMatrix[to.Epistemic]
		return ok && allowed[from.Epistemic]
	default:
		if from.Name == to.Name {
			return true
		}
		if from.Kind == KindEpistemic {
			if want, ok := epistemicToPrimitive[from.Epistemic]; ok && want == to.Name {
				return true
			}
		}
		// A refined numeric type (Nominal with a non-nil Range, e.g.
		// `type Confidence Float (0.0..1.0)`) is structurally a numeric
		// base plus a bound; §4.3's own range check only makes sense if a
		// bare Int/Float literal is first accepted into such a slot. The
		// bound itself is enforced separately, by the checker comparing
		// the literal's value against Range, not by Compatible.
		if to.Kind == KindNominal && to.Range != nil && from.Kind == KindPrimitive && (from.Name == "Int" || from.Name == "Float") {
			return true
		}
		return false
	}
}

// IncompatibleError reports a specific rejected assignment, e.g. an
// Opinion flowing into a FactualClaim-declared position — nominally
// distinct and not in the compatibility matrix.
type IncompatibleError struct {
	From, To string
}

func (e *IncompatibleError) Error() string {
	return fmt.Sprintf("type %s is not compatible with declared type %s", e.From, e.To)
}

// PromoteUncertainListElem implements the documented Open Question
// decision: a List<FactualClaim> (or any List<Epistemic>) whose element
// carries Uncertainty is widened to List<Uncertainty> wholesale, rather
// than kept heterogeneous. Callers emit an informational
// UncertaintyPropagationRequired diagnostic naming the widened field;
// this function only computes the widened type.
func PromoteUncertainListElem(elem *SemanticType) *SemanticType {
	if elem == nil || elem.Kind != KindEpistemic {
		return elem
	}
	if elem.Epistemic == Uncertainty {
		return elem
	}
	return TUncertainty
}
