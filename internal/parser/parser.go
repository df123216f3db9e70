// Package parser implements AXON's recursive-descent parser: tokens to a
// cognitive AST, one procedure per grammar production, single-token
// lookahead, no error recovery. A failing `expect` stops the parser
// immediately with a ParseError naming what was expected, what was found,
// and its position.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"axon/internal/ast"
	"axon/internal/token"
)

// ParseError is returned the moment an `expect` call fails to find the
// token kind it required. The parser never recovers from it.
type ParseError struct {
	Expected token.Kind
	Found    token.Token
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: expected %s, found %s", e.Found.Position, e.Expected, e.Found)
}

// genericError is used for productions that fail without a single expected
// token kind (e.g. "unknown field name", "unknown step keyword").
type genericError struct {
	Position token.Position
	Message  string
}

func (e *genericError) Error() string {
	return fmt.Sprintf("%s: %s", e.Position, e.Message)
}

// Parser walks a fixed token slice with a single index cursor.
type Parser struct {
	tokens []token.Token
	pos    int
}

// New creates a Parser over a complete token slice (as produced by
// lexer.Lex), which must end with an EOF token.
func New(tokens []token.Token) *Parser {
	return &Parser{tokens: tokens}
}

// Parse parses an already-tokenized source into a *ast.Program, or returns
// the first ParseError (or other production error) encountered.
func Parse(tokens []token.Token) (prog *ast.Program, err error) {
	defer func() {
		if r := recover(); r != nil {
			if pe, ok := r.(error); ok {
				err = pe
				return
			}
			panic(r)
		}
	}()
	p := New(tokens)
	prog = p.parseProgram()
	return prog, nil
}

// --- cursor primitives ---------------------------------------------------

func (p *Parser) peek() token.Token {
	return p.tokens[p.pos]
}

func (p *Parser) peekAt(offset int) token.Token {
	idx := p.pos + offset
	if idx >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1] // EOF
	}
	return p.tokens[idx]
}

func (p *Parser) advance() token.Token {
	t := p.tokens[p.pos]
	if t.Kind != token.EOF {
		p.pos++
	}
	return t
}

func (p *Parser) check(k token.Kind) bool {
	return p.peek().Kind == k
}

// expect consumes and returns the current token if it matches k, otherwise
// panics with a *ParseError (caught by Parse's top-level recover).
func (p *Parser) expect(k token.Kind) token.Token {
	if !p.check(k) {
		panic(&ParseError{Expected: k, Found: p.peek()})
	}
	return p.advance()
}

func (p *Parser) fail(pos token.Position, format string, args ...any) {
	panic(&genericError{Position: pos, Message: fmt.Sprintf(format, args...)})
}

// --- top level -------------------------------------------------------------

func (p *Parser) parseProgram() *ast.Program {
	prog := ast.NewProgram(p.peek().Position)
	for !p.check(token.EOF) {
		prog.Declarations = append(prog.Declarations, p.parseDeclaration())
	}
	return prog
}

func (p *Parser) parseDeclaration() ast.Node {
	switch p.peek().Kind {
	case token.IMPORT:
		return p.parseImport()
	case token.PERSONA:
		return p.parseBlockDecl(token.PERSONA, personaFields, func(pos token.Position, name string, f []ast.Field) ast.Node {
			return ast.NewPersonaDefinition(pos, name, f)
		})
	case token.CONTEXT:
		return p.parseBlockDecl(token.CONTEXT, contextFields, func(pos token.Position, name string, f []ast.Field) ast.Node {
			return ast.NewContextDefinition(pos, name, f)
		})
	case token.ANCHOR:
		return p.parseBlockDecl(token.ANCHOR, anchorFields, func(pos token.Position, name string, f []ast.Field) ast.Node {
			return ast.NewAnchorDefinition(pos, name, f)
		})
	case token.MEMORY:
		return p.parseBlockDecl(token.MEMORY, memoryFields, func(pos token.Position, name string, f []ast.Field) ast.Node {
			return ast.NewMemoryDefinition(pos, name, f)
		})
	case token.TOOL:
		return p.parseBlockDecl(token.TOOL, toolFields, func(pos token.Position, name string, f []ast.Field) ast.Node {
			return ast.NewToolDefinition(pos, name, f)
		})
	case token.TYPE:
		return p.parseTypeDecl()
	case token.FLOW:
		return p.parseFlowDecl()
	case token.RUN:
		return p.parseRunStatement()
	default:
		p.fail(p.peek().Position, "unexpected token %s at top level", p.peek())
		return nil
	}
}

// parseImport handles `import a.b.c` and `import a.b.{X, Y}`. The '.'
// immediately before '{' is a separator into the named-import list, not
// another path segment.
func (p *Parser) parseImport() *ast.ImportDeclaration {
	start := p.expect(token.IMPORT).Position
	decl := ast.NewImportDeclaration(start)

	first := p.expect(token.IDENT)
	decl.Path = append(decl.Path, first.Lexeme)

	for p.check(token.DOT) {
		if p.peekAt(1).Kind == token.LBRACE {
			p.advance() // consume '.'
			p.advance() // consume '{'
			for {
				name := p.expect(token.IDENT)
				decl.NamedImports = append(decl.NamedImports, name.Lexeme)
				if p.check(token.COMMA) {
					p.advance()
					continue
				}
				break
			}
			p.expect(token.RBRACE)
			break
		}
		p.advance() // consume '.'
		seg := p.expect(token.IDENT)
		decl.Path = append(decl.Path, seg.Lexeme)
	}
	return decl
}

// --- closed field vocabularies (§6.1) ---------------------------------------
//
// Only the five flat top-level block kinds have a closed field vocabulary.
// Step-level blocks (reason/refine/weave) stay open: their shape is driven
// by the model-client/tool contract, not a fixed source surface.

var personaFields = map[string]bool{
	"domain": true, "tone": true, "confidence_threshold": true,
	"cite_sources": true, "refuse_if": true, "language": true, "description": true,
}
var contextFields = map[string]bool{
	"memory": true, "language": true, "depth": true, "max_tokens": true,
	"temperature": true, "cite_sources": true,
}
var anchorFields = map[string]bool{
	"require": true, "reject": true, "enforce": true, "confidence_floor": true,
	"unknown_response": true, "on_violation": true,
}
var memoryFields = map[string]bool{
	"store": true, "backend": true, "retrieval": true, "decay": true,
}
var toolFields = map[string]bool{
	"provider": true, "max_results": true, "filter": true, "timeout": true,
	"runtime": true, "sandbox": true,
}

// parseBlockDecl parses `<kw> Name { field: value ... }` for the five
// flat-field-vocabulary block kinds (persona/context/anchor/memory/tool).
// Unknown field names are parser errors per §6.1 ("the field vocabulary
// per block is closed").
func (p *Parser) parseBlockDecl(kw token.Kind, allowed map[string]bool, build func(token.Position, string, []ast.Field) ast.Node) ast.Node {
	start := p.expect(kw).Position
	name := p.expect(token.IDENT)
	p.expect(token.LBRACE)

	var fields []ast.Field
	for !p.check(token.RBRACE) {
		fields = append(fields, p.parseField(allowed))
	}
	p.expect(token.RBRACE)
	return build(start, name.Lexeme, fields)
}

func (p *Parser) parseField(allowed map[string]bool) ast.Field {
	var nameTok token.Token
	if t := p.peek(); allowed[t.Lexeme] && token.Keywords[t.Lexeme] == t.Kind {
		// A closed-vocabulary field whose name lexes as a keyword
		// (`on_violation` in an anchor, `memory` in a context).
		nameTok = p.advance()
	} else {
		nameTok = p.expect(token.IDENT)
	}
	if allowed != nil && !allowed[nameTok.Lexeme] {
		p.fail(nameTok.Position, "unknown field %q", nameTok.Lexeme)
	}
	p.expect(token.COLON)
	value := p.parseValue()
	// Fields are separated by whitespace or by an optional comma.
	if p.check(token.COMMA) {
		p.advance()
	}
	return ast.Field{Position: nameTok.Position, Name: nameTok.Lexeme, Value: value}
}

// parseValue parses one field/argument value: a literal, a bracketed list,
// a dotted field access, or a bare enum-like identifier. It consumes no
// operator tokens: comparison operators are not parsed in value position.
func (p *Parser) parseValue() ast.Node {
	t := p.peek()
	switch t.Kind {
	case token.STRING:
		p.advance()
		return ast.NewLiteral(t.Position, ast.LiteralString, t.Lexeme, nil)
	case token.INTEGER:
		p.advance()
		return ast.NewLiteral(t.Position, ast.LiteralInteger, t.Lexeme, nil)
	case token.FLOAT:
		p.advance()
		return ast.NewLiteral(t.Position, ast.LiteralFloat, t.Lexeme, nil)
	case token.DURATION:
		p.advance()
		return ast.NewLiteral(t.Position, ast.LiteralDuration, t.Lexeme, nil)
	case token.BOOLEAN:
		p.advance()
		return ast.NewLiteral(t.Position, ast.LiteralBoolean, t.Lexeme, nil)
	case token.LBRACKET:
		return p.parseListLiteral()
	case token.IDENT:
		return p.parseIdentOrAccess()
	case token.RAISE, token.FALLBACK, token.RETRY, token.ESCALATE, token.WARN, token.LOG:
		return p.parseStrategyCall()
	case token.NONE:
		p.advance()
		return ast.NewLiteral(t.Position, ast.LiteralIdent, "none", nil)
	default:
		p.fail(t.Position, "unexpected token %s in value position", t)
		return nil
	}
}

func (p *Parser) parseListLiteral() ast.Node {
	start := p.expect(token.LBRACKET).Position
	var elements []ast.Node
	if !p.check(token.RBRACKET) {
		elements = append(elements, p.parseValue())
		for p.check(token.COMMA) {
			p.advance()
			elements = append(elements, p.parseValue())
		}
	}
	p.expect(token.RBRACKET)
	return ast.NewLiteral(start, ast.LiteralList, "", elements)
}

// parseIdentOrAccess distinguishes a dotted field access (`Step.output`)
// from a bare enum-like identifier (`precise`) and from a call-like form
// (`linear(2)`, `exponential(2.0)`) used in backoff and error-name
// positions.
func (p *Parser) parseIdentOrAccess() ast.Node {
	first := p.expect(token.IDENT)
	if p.check(token.DOT) && p.peekAt(1).Kind == token.IDENT {
		path := []string{first.Lexeme}
		for p.check(token.DOT) {
			p.advance()
			seg := p.expect(token.IDENT)
			path = append(path, seg.Lexeme)
		}
		return ast.NewFieldAccess(first.Position, path)
	}
	if p.check(token.LPAREN) {
		return p.parseCallLike(first)
	}
	return ast.NewLiteral(first.Position, ast.LiteralIdent, first.Lexeme, nil)
}

// parseStrategyCall parses the on_violation/on_failure/on_exhaustion
// strategy words, several of which take a call-like argument:
// raise <Err>, fallback(value), retry(n) / retry(backoff: ...), escalate,
// warn, log.
func (p *Parser) parseStrategyCall() ast.Node {
	kw := p.advance()
	name := kw.Lexeme
	if kw.Kind == token.RAISE {
		errName := p.expect(token.IDENT)
		return ast.NewLiteral(kw.Position, ast.LiteralIdent, "raise "+errName.Lexeme, nil)
	}
	if p.check(token.LPAREN) {
		return p.parseCallLikeNamed(kw.Position, name)
	}
	return ast.NewLiteral(kw.Position, ast.LiteralIdent, name, nil)
}

func (p *Parser) parseCallLike(name token.Token) ast.Node {
	return p.parseCallLikeNamed(name.Position, name.Lexeme)
}

// parseCallLikeNamed renders a call-like value (`name(args...)`) into a
// single Literal whose Text is the canonical `name(args)` spelling, since
// AXON's Value grammar has no dedicated call-expression node: the runtime
// re-parses the spellings it acts on (`linear(...)`, `exponential(...)`
// in ParseBackoff, `fallback(...)` in an anchor's on_violation) from Text.
func (p *Parser) parseCallLikeNamed(pos token.Position, name string) ast.Node {
	p.expect(token.LPAREN)
	var parts []string
	if !p.check(token.RPAREN) {
		parts = append(parts, p.parseCallArg())
		for p.check(token.COMMA) {
			p.advance()
			parts = append(parts, p.parseCallArg())
		}
	}
	p.expect(token.RPAREN)
	return ast.NewLiteral(pos, ast.LiteralIdent, name+"("+strings.Join(parts, ", ")+")", nil)
}

func (p *Parser) parseCallArg() string {
	// Named args inside a call, e.g. `recent(days: 7)`.
	if p.check(token.IDENT) && p.peekAt(1).Kind == token.COLON {
		key := p.advance().Lexeme
		p.advance() // ':'
		val := p.parseValue()
		return key + ": " + valueText(val)
	}
	return valueText(p.parseValue())
}

func valueText(n ast.Node) string {
	lit, ok := n.(*ast.Literal)
	if !ok {
		return ""
	}
	if lit.Kind == ast.LiteralString {
		return strconv.Quote(lit.Text)
	}
	return lit.Text
}

// --- type references ---------------------------------------------------

// parseTypeRef parses a bare name or a parameterised `Name<Arg, Arg>` form
// (used for List<T> and Optional<T>).
func (p *Parser) parseTypeRef() *ast.TypeRef {
	name := p.expect(token.IDENT)
	ref := &ast.TypeRef{Position: name.Position, Name: name.Lexeme}
	if p.check(token.LT) {
		p.advance()
		ref.Args = append(ref.Args, *p.parseTypeRef())
		for p.check(token.COMMA) {
			p.advance()
			ref.Args = append(ref.Args, *p.parseTypeRef())
		}
		p.expect(token.GT)
	}
	return ref
}

// --- type declarations ---------------------------------------------------

// parseTypeDecl parses `type Name [BaseRef] [(lo..hi)] [where "expr"]
// [{ field?: Type ... }]`.
func (p *Parser) parseTypeDecl() *ast.TypeDefinition {
	start := p.expect(token.TYPE).Position
	name := p.expect(token.IDENT)

	var baseRef *ast.TypeRef
	if p.check(token.IDENT) {
		baseRef = p.parseTypeRef()
	}

	var rng *ast.RangeConstraint
	if p.check(token.LPAREN) {
		rng = p.parseRangeConstraint()
	}

	var where *ast.WherePredicate
	if p.check(token.WHERE) {
		wpos := p.advance().Position
		src := p.expect(token.STRING)
		where = ast.NewWherePredicate(wpos, src.Lexeme)
	}

	var body []ast.FieldSpec
	if p.check(token.LBRACE) {
		p.advance()
		for !p.check(token.RBRACE) {
			body = append(body, p.parseFieldSpec())
		}
		p.expect(token.RBRACE)
	}

	return ast.NewTypeDefinition(start, name.Lexeme, baseRef, rng, where, body)
}

// parseRangeConstraint parses `(lo..hi)`, where lo and hi are integer or
// float literals (a bare DOT DOT is not a token: the lexer emits two DOT
// tokens for `..`).
func (p *Parser) parseRangeConstraint() *ast.RangeConstraint {
	start := p.expect(token.LPAREN).Position
	lo := p.parseSignedNumber()
	p.expect(token.DOT)
	p.expect(token.DOT)
	hi := p.parseSignedNumber()
	p.expect(token.RPAREN)
	return &ast.RangeConstraint{Position: start, Lo: lo, Hi: hi}
}

func (p *Parser) parseSignedNumber() float64 {
	t := p.peek()
	switch t.Kind {
	case token.INTEGER, token.FLOAT:
		p.advance()
		v, _ := strconv.ParseFloat(t.Lexeme, 64)
		return v
	default:
		p.fail(t.Position, "expected number, found %s", t)
		return 0
	}
}

func (p *Parser) parseFieldSpec() ast.FieldSpec {
	name := p.expect(token.IDENT)
	optional := false
	if p.check(token.QUESTION) {
		p.advance()
		optional = true
	}
	p.expect(token.COLON)
	typ := p.parseTypeRef()
	return *ast.NewFieldSpec(name.Position, name.Lexeme, typ, optional)
}

// --- flow declarations ---------------------------------------------------

// parseFlowDecl parses `flow Name(param: Type, ...) [-> ReturnType] {
// <steps> }`.
func (p *Parser) parseFlowDecl() *ast.FlowDefinition {
	start := p.expect(token.FLOW).Position
	name := p.expect(token.IDENT)
	p.expect(token.LPAREN)

	var params []ast.Parameter
	if !p.check(token.RPAREN) {
		params = append(params, p.parseParameter())
		for p.check(token.COMMA) {
			p.advance()
			params = append(params, p.parseParameter())
		}
	}
	p.expect(token.RPAREN)

	var ret *ast.TypeRef
	if p.check(token.ARROW) {
		p.advance()
		ret = p.parseTypeRef()
	}

	p.expect(token.LBRACE)
	var steps []ast.Node
	for !p.check(token.RBRACE) {
		steps = append(steps, p.parseStep())
	}
	p.expect(token.RBRACE)

	return ast.NewFlowDefinition(start, name.Lexeme, params, ret, steps)
}

func (p *Parser) parseParameter() ast.Parameter {
	name := p.expect(token.IDENT)
	p.expect(token.COLON)
	typ := p.parseTypeRef()
	return *ast.NewParameter(name.Position, name.Lexeme, typ)
}

// --- steps ---------------------------------------------------------------

func (p *Parser) parseStep() ast.Node {
	switch p.peek().Kind {
	case token.STEP:
		return p.parseStepBlock()
	case token.PROBE:
		return p.parseProbeStep()
	case token.REASON:
		return p.parseReasonStep()
	case token.VALIDATE:
		return p.parseValidateStep()
	case token.REFINE:
		return p.parseRefineStep()
	case token.WEAVE:
		return p.parseWeaveStep()
	case token.USE:
		return p.parseUseToolStep()
	case token.REMEMBER:
		return p.parseRememberStep()
	case token.RECALL:
		return p.parseRecallStep()
	case token.IF:
		return p.parseIfStep()
	default:
		p.fail(p.peek().Position, "unexpected token %s: expected a step", p.peek())
		return nil
	}
}

func (p *Parser) parseStepBlock() *ast.StepBlock {
	start := p.expect(token.STEP).Position
	name := p.expect(token.IDENT)
	fields := p.parseOpenFieldBlock()
	return ast.NewStepBlock(start, name.Lexeme, fields)
}

// parseOpenFieldBlock parses `{ field: value ... }` with no closed
// vocabulary, used by the step-level blocks whose shape is driven by the
// model-client/tool contract rather than a fixed source surface.
func (p *Parser) parseOpenFieldBlock() []ast.Field {
	p.expect(token.LBRACE)
	var fields []ast.Field
	for !p.check(token.RBRACE) {
		fields = append(fields, p.parseField(nil))
	}
	p.expect(token.RBRACE)
	return fields
}

// parseOpenFieldBlockWithOutput is like parseOpenFieldBlock but recognises
// an `output: Type` entry specially, parsing its value as a TypeRef
// instead of a generic Value (a TypeRef is not a valid Value production).
func (p *Parser) parseOpenFieldBlockWithOutput() ([]ast.Field, *ast.TypeRef) {
	p.expect(token.LBRACE)
	var fields []ast.Field
	var output *ast.TypeRef
	for !p.check(token.RBRACE) {
		nameTok := p.expect(token.IDENT)
		p.expect(token.COLON)
		if nameTok.Lexeme == "output" {
			output = p.parseTypeRef()
		} else {
			value := p.parseValue()
			fields = append(fields, ast.Field{Position: nameTok.Position, Name: nameTok.Lexeme, Value: value})
		}
		if p.check(token.COMMA) {
			p.advance()
		}
	}
	p.expect(token.RBRACE)
	return fields, output
}

func (p *Parser) parseReasonStep() *ast.ReasonStep {
	start := p.expect(token.REASON).Position
	name := p.expect(token.IDENT)
	fields, output := p.parseOpenFieldBlockWithOutput()
	return ast.NewReasonStep(start, name.Lexeme, fields, output)
}

func (p *Parser) parseRefineStep() *ast.RefineStep {
	start := p.expect(token.REFINE).Position
	name := p.expect(token.IDENT)
	fields, output := p.parseOpenFieldBlockWithOutput()
	return ast.NewRefineStep(start, name.Lexeme, fields, output)
}

// parseProbeStep parses `probe Name { target: <value> fields: [a, b]
// [output: Type] }`.
func (p *Parser) parseProbeStep() *ast.ProbeStep {
	start := p.expect(token.PROBE).Position
	name := p.expect(token.IDENT)
	p.expect(token.LBRACE)

	var target ast.Node
	var fields []string
	var output *ast.TypeRef
	for !p.check(token.RBRACE) {
		key := p.expect(token.IDENT)
		p.expect(token.COLON)
		switch key.Lexeme {
		case "target":
			target = p.parseValue()
		case "fields":
			p.expect(token.LBRACKET)
			if !p.check(token.RBRACKET) {
				fields = append(fields, p.expect(token.IDENT).Lexeme)
				for p.check(token.COMMA) {
					p.advance()
					fields = append(fields, p.expect(token.IDENT).Lexeme)
				}
			}
			p.expect(token.RBRACKET)
		case "output":
			output = p.parseTypeRef()
		default:
			p.fail(key.Position, "unknown probe field %q", key.Lexeme)
		}
	}
	p.expect(token.RBRACE)
	return ast.NewProbeStep(start, name.Lexeme, target, fields, output)
}

// parseValidateStep parses `validate Name { expr: <value> [schema: Type]
// [rules: [<value>, ...]] }`.
func (p *Parser) parseValidateStep() *ast.ValidateStep {
	start := p.expect(token.VALIDATE).Position
	name := p.expect(token.IDENT)
	p.expect(token.LBRACE)

	var expr ast.Node
	var schema *ast.TypeRef
	var rules []ast.Node
	for !p.check(token.RBRACE) {
		key := p.expect(token.IDENT)
		p.expect(token.COLON)
		switch key.Lexeme {
		case "expr":
			expr = p.parseValue()
		case "schema":
			schema = p.parseTypeRef()
		case "rules":
			p.expect(token.LBRACKET)
			if !p.check(token.RBRACKET) {
				rules = append(rules, p.parseValue())
				for p.check(token.COMMA) {
					p.advance()
					rules = append(rules, p.parseValue())
				}
			}
			p.expect(token.RBRACKET)
		default:
			p.fail(key.Position, "unknown validate field %q", key.Lexeme)
		}
	}
	p.expect(token.RBRACE)
	return ast.NewValidateStep(start, name.Lexeme, expr, schema, rules)
}

// parseWeaveStep parses `weave Name { sources: [<value>, ...] target: name
// field: value ... [output: Type] }`.
func (p *Parser) parseWeaveStep() *ast.WeaveStep {
	start := p.expect(token.WEAVE).Position
	name := p.expect(token.IDENT)
	p.expect(token.LBRACE)

	var sources []ast.Node
	var target string
	var fields []ast.Field
	var output *ast.TypeRef
	for !p.check(token.RBRACE) {
		key := p.expect(token.IDENT)
		p.expect(token.COLON)
		switch key.Lexeme {
		case "sources":
			p.expect(token.LBRACKET)
			if !p.check(token.RBRACKET) {
				sources = append(sources, p.parseValue())
				for p.check(token.COMMA) {
					p.advance()
					sources = append(sources, p.parseValue())
				}
			}
			p.expect(token.RBRACKET)
		case "target":
			target = p.expect(token.IDENT).Lexeme
		case "output":
			output = p.parseTypeRef()
		default:
			fields = append(fields, ast.Field{Position: key.Position, Name: key.Lexeme, Value: p.parseValue()})
		}
	}
	p.expect(token.RBRACE)
	return ast.NewWeaveStep(start, name.Lexeme, sources, target, fields, output)
}

// parseUseToolStep parses `use Name: ToolName(<value>) [-> Type]`.
func (p *Parser) parseUseToolStep() *ast.UseToolStep {
	start := p.expect(token.USE).Position
	name := p.expect(token.IDENT)
	p.expect(token.COLON)
	toolName := p.expect(token.IDENT)
	p.expect(token.LPAREN)
	var arg ast.Node
	if !p.check(token.RPAREN) {
		arg = p.parseValue()
	}
	p.expect(token.RPAREN)
	var output *ast.TypeRef
	if p.check(token.ARROW) {
		p.advance()
		output = p.parseTypeRef()
	}
	return ast.NewUseToolStep(start, name.Lexeme, toolName.Lexeme, arg, output)
}

// parseRememberStep parses `remember Name: <value> within MemoryName`.
func (p *Parser) parseRememberStep() *ast.RememberStep {
	start := p.expect(token.REMEMBER).Position
	name := p.expect(token.IDENT)
	p.expect(token.COLON)
	expr := p.parseValue()
	p.expect(token.WITHIN)
	memory := p.expect(token.IDENT)
	return ast.NewRememberStep(start, name.Lexeme, expr, memory.Lexeme)
}

// parseRecallStep parses `recall Name: <value> within MemoryName [-> Type]`.
func (p *Parser) parseRecallStep() *ast.RecallStep {
	start := p.expect(token.RECALL).Position
	name := p.expect(token.IDENT)
	p.expect(token.COLON)
	query := p.parseValue()
	p.expect(token.WITHIN)
	memory := p.expect(token.IDENT)
	var output *ast.TypeRef
	if p.check(token.ARROW) {
		p.advance()
		output = p.parseTypeRef()
	}
	return ast.NewRecallStep(start, name.Lexeme, query, memory.Lexeme, output)
}

// parseIfStep parses `if Name (<value>) { <step> } [else { <step> }]`.
func (p *Parser) parseIfStep() *ast.IfStep {
	start := p.expect(token.IF).Position
	name := p.expect(token.IDENT)
	p.expect(token.LPAREN)
	cond := p.parseValue()
	p.expect(token.RPAREN)
	p.expect(token.LBRACE)
	then := p.parseStep()
	p.expect(token.RBRACE)

	var els ast.Node
	if p.check(token.ELSE) {
		p.advance()
		p.expect(token.LBRACE)
		els = p.parseStep()
		p.expect(token.RBRACE)
	}
	return ast.NewIfStep(start, name.Lexeme, cond, then, els)
}

// --- run statement ---------------------------------------------------------

// parseRunStatement parses:
//
//	run FlowName(arg: value, ...)
//	  [as Persona] [within Context] [constrained_by [A, B]]
//	  [on_failure: <value>] [output_to: Name] [effort: word]
func (p *Parser) parseRunStatement() *ast.RunStatement {
	start := p.expect(token.RUN).Position
	flowName := p.expect(token.IDENT)
	p.expect(token.LPAREN)

	var args []ast.Argument
	if !p.check(token.RPAREN) {
		args = append(args, p.parseArgument())
		for p.check(token.COMMA) {
			p.advance()
			args = append(args, p.parseArgument())
		}
	}
	p.expect(token.RPAREN)

	var persona, ctx, outputTo, effort string
	var anchors []string
	var onFailure *ast.Field

	for {
		switch p.peek().Kind {
		case token.AS:
			p.advance()
			persona = p.expect(token.IDENT).Lexeme
		case token.WITHIN:
			p.advance()
			ctx = p.expect(token.IDENT).Lexeme
		case token.CONSTRAINED_BY:
			p.advance()
			p.expect(token.LBRACKET)
			if !p.check(token.RBRACKET) {
				anchors = append(anchors, p.expect(token.IDENT).Lexeme)
				for p.check(token.COMMA) {
					p.advance()
					anchors = append(anchors, p.expect(token.IDENT).Lexeme)
				}
			}
			p.expect(token.RBRACKET)
		case token.ON_FAILURE:
			pos := p.advance().Position
			p.expect(token.COLON)
			val := p.parseValue()
			onFailure = &ast.Field{Position: pos, Name: "on_failure", Value: val}
		case token.OUTPUT_TO:
			p.advance()
			p.expect(token.COLON)
			outputTo = p.expect(token.IDENT).Lexeme
		case token.EFFORT:
			p.advance()
			p.expect(token.COLON)
			effort = p.expect(token.IDENT).Lexeme
		default:
			return ast.NewRunStatement(start, flowName.Lexeme, args, persona, ctx, anchors, onFailure, outputTo, effort)
		}
	}
}

func (p *Parser) parseArgument() ast.Argument {
	name := p.expect(token.IDENT)
	p.expect(token.COLON)
	value := p.parseValue()
	return *ast.NewArgument(name.Position, name.Lexeme, value)
}
