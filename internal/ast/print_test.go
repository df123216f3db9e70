package ast_test

import (
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"axon/internal/ast"
	"axon/internal/lexer"
	"axon/internal/parser"
	"axon/internal/token"
)

// ignorePosition treats every token.Position as equal: Print is documented
// as the inverse of Parse "up to comments and insignificant whitespace", and
// re-parsing printed source relocates every node, so positions are exactly
// the thing a structural comparison must not assert on.
var ignorePosition = cmp.Comparer(func(a, b token.Position) bool { return true })

// exportAll lets cmp reach into the ast package's unexported `base` field
// (the embedded position holder promoted into every node type) without a
// per-type AllowUnexported list; this file lives in ast_test, not ast, so
// it has no other way to address that field.
var exportAll = cmp.Exporter(func(reflect.Type) bool { return true })

func roundTrip(t *testing.T, src string) (*ast.Program, *ast.Program) {
	t.Helper()
	toks, err := lexer.Lex(src)
	require.NoError(t, err)
	prog, err := parser.Parse(toks)
	require.NoError(t, err)

	printed := ast.Print(prog)

	toks2, err := lexer.Lex(printed)
	require.NoError(t, err, "lexing printed source: %s", printed)
	prog2, err := parser.Parse(toks2)
	require.NoError(t, err, "re-parsing printed source: %s", printed)

	return prog, prog2
}

func assertRoundTrips(t *testing.T, src string) {
	t.Helper()
	prog, prog2 := roundTrip(t, src)
	if diff := cmp.Diff(prog, prog2, ignorePosition, exportAll, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("parse -> print -> re-parse changed the AST (-original +reparsed):\n%s", diff)
	}
}

func TestRoundTripDeclarationKinds(t *testing.T) {
	assertRoundTrips(t, `
import axon.anchors.{Safety, NoPII}

persona Researcher {
  domain: "science"
  confidence_threshold: 0.8
  cite_sources: true
}

context Standard {
  memory: "session"
  max_tokens: 4000
}

anchor Safety {
  require: ["cited"]
}

memory LongTerm {
  backend: "vector"
  store: "qdrant"
}

tool WebSearch {
  provider: "web"
  timeout: 10ms
}
`)
}

func TestRoundTripTypeDefinitions(t *testing.T) {
	assertRoundTrips(t, `
type Confidence Float (0.0..1.0) where "value >= 0"

type Claim {
  text: String
  confidence?: Confidence
}
`)
}

func TestRoundTripFlowWithEveryStepKind(t *testing.T) {
	assertRoundTrips(t, `
flow Summarize(input: String, claims: List<Confidence>) -> String {
  reason Draft {
    prompt: "summarize"
    output: String
  }
  probe Inspect {
    target: Draft.output
    fields: [length, tone]
    output: String
  }
  validate Check {
    expr: Draft.output
    schema: String
    rules: [Draft.output, Inspect.output]
  }
  refine Polish {
    max_attempts: 3
    output: String
  }
  weave Combined {
    sources: [Draft.output, Polish.output]
    target: merged
    strategy: "concat"
    output: String
  }
  use Result: WebSearch("query") -> String
  remember Fact: Result within LongTerm
  recall Prior: "query" within LongTerm -> String
  if Gate (true) {
    reason A { output: String }
  } else {
    reason B { output: String }
  }
}
`)
}

func TestRoundTripRunStatementEveryClause(t *testing.T) {
	assertRoundTrips(t, `
flow Summarize(input: String) -> String {
  reason Draft { output: String }
}

run Summarize(input: "hello") as Researcher within Standard constrained_by [Safety, NoPII] on_failure: "retry" output_to: Final effort: precise
`)
}

func TestRoundTripListTypeRef(t *testing.T) {
	assertRoundTrips(t, `
flow F(claims: List<Confidence>) -> List<Confidence> {
  reason R { output: List<Confidence> }
}
`)
}
