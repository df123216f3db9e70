package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"axon/internal/ast"
	"axon/internal/lexer"
	"axon/internal/parser"
)

func mustParse(t *testing.T, src string) *ast.Program {
	t.Helper()
	toks, err := lexer.Lex(src)
	require.NoError(t, err)
	prog, err := parser.Parse(toks)
	require.NoError(t, err)
	return prog
}

func TestParsePersonaDefinition(t *testing.T) {
	prog := mustParse(t, `
persona Researcher {
  domain: "science"
  confidence_threshold: 0.8
  cite_sources: true
}
`)
	require.Len(t, prog.Declarations, 1)
	p, ok := prog.Declarations[0].(*ast.PersonaDefinition)
	require.True(t, ok)
	assert.Equal(t, "Researcher", p.Name)
	assert.Len(t, p.Fields, 3)
	assert.Equal(t, "domain", p.Fields[0].Name)
}

func TestParsePersonaUnknownFieldFails(t *testing.T) {
	toks, err := lexer.Lex(`persona X { bogus: 1 }`)
	require.NoError(t, err)
	_, err = parser.Parse(toks)
	require.Error(t, err)
}

func TestParseImportWithNamedList(t *testing.T) {
	prog := mustParse(t, `import axon.anchors.{Safety, NoPII}`)
	require.Len(t, prog.Declarations, 1)
	imp, ok := prog.Declarations[0].(*ast.ImportDeclaration)
	require.True(t, ok)
	assert.Equal(t, []string{"axon", "anchors"}, imp.Path)
	assert.Equal(t, []string{"Safety", "NoPII"}, imp.NamedImports)
}

func TestParseImportPlainPath(t *testing.T) {
	prog := mustParse(t, `import axon.stdlib.personas`)
	imp := prog.Declarations[0].(*ast.ImportDeclaration)
	assert.Equal(t, []string{"axon", "stdlib", "personas"}, imp.Path)
	assert.Empty(t, imp.NamedImports)
}

func TestParseTypeDefinitionWithRangeAndWhere(t *testing.T) {
	prog := mustParse(t, `
type Confidence Float (0.0..1.0) where "value >= 0"
`)
	td := prog.Declarations[0].(*ast.TypeDefinition)
	assert.Equal(t, "Confidence", td.Name)
	require.NotNil(t, td.BaseRef)
	assert.Equal(t, "Float", td.BaseRef.Name)
	require.NotNil(t, td.Range)
	assert.Equal(t, 0.0, td.Range.Lo)
	assert.Equal(t, 1.0, td.Range.Hi)
	require.NotNil(t, td.Where)
	assert.Equal(t, "value >= 0", td.Where.Source)
}

func TestParseTypeDefinitionStructuredBody(t *testing.T) {
	prog := mustParse(t, `
type Claim {
  text: String
  confidence?: Confidence
}
`)
	td := prog.Declarations[0].(*ast.TypeDefinition)
	require.Len(t, td.Body, 2)
	assert.Equal(t, "text", td.Body[0].Name)
	assert.False(t, td.Body[0].Optional)
	assert.Equal(t, "confidence", td.Body[1].Name)
	assert.True(t, td.Body[1].Optional)
}

func TestParseFlowWithSteps(t *testing.T) {
	prog := mustParse(t, `
flow Summarize(input: String) -> String {
  reason Draft {
    prompt: "summarize"
    output: String
  }
  validate Check {
    expr: Draft.output
  }
}
`)
	fd := prog.Declarations[0].(*ast.FlowDefinition)
	assert.Equal(t, "Summarize", fd.Name)
	require.Len(t, fd.Params, 1)
	assert.Equal(t, "input", fd.Params[0].Name)
	require.NotNil(t, fd.ReturnType)
	assert.Equal(t, "String", fd.ReturnType.Name)
	require.Len(t, fd.Steps, 2)

	reason, ok := fd.Steps[0].(*ast.ReasonStep)
	require.True(t, ok)
	assert.Equal(t, "Draft", reason.Name)
	require.NotNil(t, reason.Output)
	assert.Equal(t, "String", reason.Output.Name)

	val, ok := fd.Steps[1].(*ast.ValidateStep)
	require.True(t, ok)
	fa, ok := val.Expr.(*ast.FieldAccess)
	require.True(t, ok)
	assert.Equal(t, []string{"Draft", "output"}, fa.Path)
}

func TestParseListTypeRef(t *testing.T) {
	prog := mustParse(t, `
flow F(claims: List<FactualClaim>) {
  reason R {
    output: List<FactualClaim>
  }
}
`)
	fd := prog.Declarations[0].(*ast.FlowDefinition)
	assert.Equal(t, "List", fd.Params[0].Type.Name)
	require.Len(t, fd.Params[0].Type.Args, 1)
	assert.Equal(t, "FactualClaim", fd.Params[0].Type.Args[0].Name)
}

func TestParseRunStatement(t *testing.T) {
	prog := mustParse(t, `
run Summarize(input: "hello") as Researcher within Standard constrained_by [Safety, NoPII] effort: precise
`)
	rs := prog.Declarations[0].(*ast.RunStatement)
	assert.Equal(t, "Summarize", rs.FlowName)
	require.Len(t, rs.Arguments, 1)
	assert.Equal(t, "Researcher", rs.Persona)
	assert.Equal(t, "Standard", rs.Context)
	assert.Equal(t, []string{"Safety", "NoPII"}, rs.Anchors)
	assert.Equal(t, "precise", rs.Effort)
}

func TestParseUseToolAndMemorySteps(t *testing.T) {
	prog := mustParse(t, `
flow F() {
  use Result: WebSearch("query") -> String
  remember Fact: Result within LongTerm
  recall Prior: "query" within LongTerm -> String
}
`)
	fd := prog.Declarations[0].(*ast.FlowDefinition)
	require.Len(t, fd.Steps, 3)

	ut := fd.Steps[0].(*ast.UseToolStep)
	assert.Equal(t, "WebSearch", ut.ToolName)
	require.NotNil(t, ut.Output)

	rem := fd.Steps[1].(*ast.RememberStep)
	assert.Equal(t, "LongTerm", rem.Memory)

	rec := fd.Steps[2].(*ast.RecallStep)
	assert.Equal(t, "LongTerm", rec.Memory)
	require.NotNil(t, rec.Output)
}

func TestParseIfStepWithElse(t *testing.T) {
	prog := mustParse(t, `
flow F() {
  if Gate (true) {
    reason A { output: String }
  } else {
    reason B { output: String }
  }
}
`)
	fd := prog.Declarations[0].(*ast.FlowDefinition)
	ifs := fd.Steps[0].(*ast.IfStep)
	assert.Equal(t, "Gate", ifs.Name)
	require.NotNil(t, ifs.Then)
	require.NotNil(t, ifs.Else)
}

func TestParseFailsFastWithNoRecovery(t *testing.T) {
	toks, err := lexer.Lex(`persona { }`) // missing name
	require.NoError(t, err)
	_, err = parser.Parse(toks)
	require.Error(t, err)
	var pe *parser.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "IDENT", pe.Expected.String())
}

func TestRoundTripParsePrintParse(t *testing.T) {
	src := `
persona Researcher {
  domain: "science"
}

flow Summarize(input: String) -> String {
  reason Draft {
    output: String
  }
}
`
	prog := mustParse(t, src)
	printed := ast.Print(prog)

	toks2, err := lexer.Lex(printed)
	require.NoError(t, err)
	prog2, err := parser.Parse(toks2)
	require.NoError(t, err)

	persona1 := prog.Declarations[0].(*ast.PersonaDefinition)
	persona2 := prog2.Declarations[0].(*ast.PersonaDefinition)
	assert.Equal(t, persona1.Name, persona2.Name)

	flow1 := prog.Declarations[1].(*ast.FlowDefinition)
	flow2 := prog2.Declarations[1].(*ast.FlowDefinition)
	assert.Equal(t, flow1.Name, flow2.Name)
	assert.Len(t, flow2.Steps, len(flow1.Steps))
}
