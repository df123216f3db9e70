package checker_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"axon/internal/checker"
	"axon/internal/lexer"
	"axon/internal/parser"
)

func check(t *testing.T, src string) *checker.Result {
	t.Helper()
	toks, err := lexer.Lex(src)
	require.NoError(t, err)
	prog, err := parser.Parse(toks)
	require.NoError(t, err)
	return checker.Check(prog)
}

func TestCheckMinimalProgramHasNoErrors(t *testing.T) {
	res := check(t, `
persona P { domain: "x" }
context C { depth: 1 }
flow F(input: String) -> String {
  reason Draft { output: String }
}
run F(input: "hi") as P within C
`)
	require.False(t, diagHasErrors(res))
}

func TestCheckDuplicatePersonaIsError(t *testing.T) {
	res := check(t, `
persona P { domain: "x" }
persona P { domain: "y" }
`)
	assertHasKind(t, res, checker.DuplicateDeclaration)
}

func TestCheckUnknownFlowInRunStatement(t *testing.T) {
	res := check(t, `run Nope()`)
	assertHasKind(t, res, checker.UnknownSymbol)
}

func TestCheckUnknownPersonaInRunStatement(t *testing.T) {
	res := check(t, `
flow F() {}
run F() as Ghost
`)
	assertHasKind(t, res, checker.UnknownSymbol)
}

func TestCheckUnknownTypeInFlowParam(t *testing.T) {
	res := check(t, `
flow F(x: Nonexistent) {}
`)
	assertHasKind(t, res, checker.UnknownType)
}

func TestCheckEmptyDomainRangeIsError(t *testing.T) {
	res := check(t, `type T Float (1.0..0.0)`)
	assertHasKind(t, res, checker.EmptyDomain)
}

func TestCheckInvalidPredicateIsError(t *testing.T) {
	res := check(t, `type T Float where "len(value) > 0"`)
	assertHasKind(t, res, checker.InvalidPredicate)
}

func TestCheckStepOutputReferenceResolves(t *testing.T) {
	res := check(t, `
flow F() {
  reason Draft { output: String }
  validate Check { expr: Draft.output }
}
`)
	require.False(t, diagHasErrors(res))
}

func TestCheckUndeclaredStepReferenceIsError(t *testing.T) {
	res := check(t, `
flow F() {
  validate Check { expr: Ghost.output }
}
`)
	assertHasKind(t, res, checker.UnknownSymbol)
}

func TestCheckOpinionIntoFactualClaimSchemaIsIncompatibleAssignment(t *testing.T) {
	res := check(t, `
type R Opinion

flow F() {
  reason Draft { output: R }
  validate Check {
    expr: Draft.output
    schema: FactualClaim
  }
}
`)
	assertHasKind(t, res, checker.IncompatibleAssignment)
}

func TestCheckCitedFactIntoFactualClaimSchemaIsAccepted(t *testing.T) {
	res := check(t, `
type R CitedFact

flow F() {
  reason Draft { output: R }
  validate Check {
    expr: Draft.output
    schema: FactualClaim
  }
}
`)
	require.False(t, diagHasErrors(res))
}

func TestCheckWeaveSourceIncompatibleWithDeclaredOutputIsError(t *testing.T) {
	res := check(t, `
flow F() {
  reason A { output: Opinion }
  weave W {
    sources: [A.output]
    target: combined
    output: FactualClaim
  }
}
`)
	assertHasKind(t, res, checker.IncompatibleAssignment)
}

func TestCheckRangeLiteralAtBoundsIsAccepted(t *testing.T) {
	res := check(t, `
type Confidence Float (0.0..1.0)

flow F() {
  validate Check {
    expr: 0.0
    schema: Confidence
  }
}
`)
	require.False(t, diagHasErrors(res))
}

func TestCheckRangeLiteralBeyondHiIsError(t *testing.T) {
	res := check(t, `
type Confidence Float (0.0..1.0)

flow F() {
  validate Check {
    expr: 1.01
    schema: Confidence
  }
}
`)
	assertHasKind(t, res, checker.RangeViolation)
}

func TestCheckPersonaConfidenceThresholdOutOfRangeIsError(t *testing.T) {
	res := check(t, `persona P { confidence_threshold: 1.5 }`)
	assertHasKind(t, res, checker.RangeViolation)
}

func TestCheckRunArgumentRangeViolationIsError(t *testing.T) {
	res := check(t, `
type Confidence Float (0.0..1.0)
flow F(c: Confidence) {}
run F(c: 1.5)
`)
	assertHasKind(t, res, checker.RangeViolation)
}

func TestCheckWeaveWithUncertaintyListSourceEmitsInfo(t *testing.T) {
	res := check(t, `
flow F() {
  reason A { output: List<FactualClaim> }
  reason B { output: List<Uncertainty> }
  weave W {
    sources: [A.output, B.output]
    target: combined
    output: List<Uncertainty>
  }
}
`)
	assertHasKind(t, res, checker.UncertaintyPropagationRequired)
}

func diagHasErrors(res *checker.Result) bool {
	for _, d := range res.Diagnostics {
		if d.Severity == checker.SeverityError {
			return true
		}
	}
	return false
}

func assertHasKind(t *testing.T, res *checker.Result, kind checker.DiagnosticKind) {
	t.Helper()
	for _, d := range res.Diagnostics {
		if d.Kind == kind {
			return
		}
	}
	assert.Fail(t, "expected diagnostic", "no diagnostic of kind %s found in %v", kind, res.Diagnostics)
}
