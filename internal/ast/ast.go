// Package ast defines the cognitive AST: a closed, 27-kind tagged variant
// over AXON's top-level declarations, flow steps, and the small auxiliary
// nodes needed to represent types and field lists. Every node carries a
// source position for diagnostics. Nodes are plain structs implementing
// the Node interface so that each consuming stage (checker, IR generator,
// printer) can dispatch exhaustively over a closed switch.
package ast

import "axon/internal/token"

// Node is implemented by every AST node kind. Pos reports the position of
// the node's first token.
type Node interface {
	Pos() token.Position
	nodeKind() string
}

type base struct {
	Position token.Position
}

func (b base) Pos() token.Position { return b.Position }

// Program is the root node: an ordered sequence of top-level declarations.
type Program struct {
	base
	Declarations []Node
}

func (Program) nodeKind() string { return "Program" }

// ImportDeclaration is a dotted module path plus an optional named-import
// list, e.g. `import axon.anchors.{Safety, NoPII}`.
type ImportDeclaration struct {
	base
	Path         []string // dotted path segments, e.g. ["axon", "anchors"]
	NamedImports []string // optional; nil means "import the whole path"
}

func (ImportDeclaration) nodeKind() string { return "ImportDeclaration" }

// Field is a single recognised `name: value` pair inside a block body. The
// parser is responsible for rejecting names outside a block's closed
// vocabulary (§6.1); by the time a Field reaches the checker its Name is
// known-valid for its containing block kind.
type Field struct {
	Position token.Position
	Name     string
	Value    Node // typically a Literal, TypeRef, or a list of either
}

// PersonaDefinition declares a named persona: domain, tone, confidence
// threshold, citation policy, refusal list, language, description.
type PersonaDefinition struct {
	base
	Name   string
	Fields []Field
}

func (PersonaDefinition) nodeKind() string { return "PersonaDefinition" }

// ContextDefinition declares a named context: memory scope, language,
// depth, token budget, temperature, citation policy.
type ContextDefinition struct {
	base
	Name   string
	Fields []Field
}

func (ContextDefinition) nodeKind() string { return "ContextDefinition" }

// AnchorDefinition declares a named predicate bundle enforced by
// conjunction across a run's anchor set.
type AnchorDefinition struct {
	base
	Name   string
	Fields []Field
}

func (AnchorDefinition) nodeKind() string { return "AnchorDefinition" }

// MemoryDefinition declares a named memory backend binding.
type MemoryDefinition struct {
	base
	Name   string
	Fields []Field
}

func (MemoryDefinition) nodeKind() string { return "MemoryDefinition" }

// ToolDefinition declares a named tool binding (provider, limits, timeout).
type ToolDefinition struct {
	base
	Name   string
	Fields []Field
}

func (ToolDefinition) nodeKind() string { return "ToolDefinition" }

// FieldSpec is one `(name, type-ref, optional)` triple inside a structured
// TypeDefinition body.
type FieldSpec struct {
	base
	Name     string
	Type     *TypeRef
	Optional bool
}

func (FieldSpec) nodeKind() string { return "FieldSpec" }

// WherePredicate wraps the raw predicate source text attached to a `type`
// declaration's `where` clause. It is parsed into a structural predicate
// tree by the type checker (internal/types), not by the parser — the
// parser's only job is to capture the literal expression text and its
// position so the checker can report InvalidPredicate precisely.
type WherePredicate struct {
	base
	Source string
}

func (WherePredicate) nodeKind() string { return "WherePredicate" }

// TypeDefinition declares a user-defined nominal type: an optional numeric
// range, an optional where-predicate, and/or a structured field body.
type TypeDefinition struct {
	base
	Name    string
	BaseRef *TypeRef // nil unless this type refines a base type
	Range   *RangeConstraint
	Where   *WherePredicate
	Body    []FieldSpec // nil unless this is a structured type
}

func (TypeDefinition) nodeKind() string { return "TypeDefinition" }

// RangeConstraint is a numeric `(lo..hi)` refinement bound.
type RangeConstraint struct {
	Position token.Position
	Lo, Hi   float64
}

// Parameter is one typed flow parameter.
type Parameter struct {
	base
	Name string
	Type *TypeRef
}

func (Parameter) nodeKind() string { return "Parameter" }

// FlowDefinition declares a named flow: typed parameters, optional return
// type, and an ordered list of steps.
type FlowDefinition struct {
	base
	Name       string
	Params     []Parameter
	ReturnType *TypeRef // nil if the flow has no declared return type
	Steps      []Node   // each a *StepBlock, *ProbeStep, ... (step variants)
}

func (FlowDefinition) nodeKind() string { return "FlowDefinition" }

// StepBlock is a named block step: `step Name { ... }`.
type StepBlock struct {
	base
	Name   string
	Fields []Field
}

func (StepBlock) nodeKind() string { return "StepBlock" }

// ProbeStep inspects a target for a list of fields.
type ProbeStep struct {
	base
	Name   string
	Target Node // *FieldAccess or *Literal naming the probed entity
	Fields []string
	Output *TypeRef
}

func (ProbeStep) nodeKind() string { return "ProbeStep" }

// ReasonStep asks the model client to produce a value per its config.
type ReasonStep struct {
	base
	Name   string
	Fields []Field
	Output *TypeRef
}

func (ReasonStep) nodeKind() string { return "ReasonStep" }

// ValidateStep checks an expression against a schema and rule list.
type ValidateStep struct {
	base
	Name   string
	Expr   Node
	Schema *TypeRef
	Rules  []Node // *WherePredicate-like rule expressions
}

func (ValidateStep) nodeKind() string { return "ValidateStep" }

// RefineStep is a step of its own: it calls the model with its own fields
// and retries that call until its output validates. It does not attach to
// or re-run the preceding step in the flow.
type RefineStep struct {
	base
	Name   string
	Fields []Field // max_attempts, backoff, pass_failure_context, on_exhaustion
	Output *TypeRef
}

func (RefineStep) nodeKind() string { return "RefineStep" }

// WeaveStep combines multiple prior step outputs into one target value.
type WeaveStep struct {
	base
	Name    string
	Sources []Node // *FieldAccess list
	Target  string
	Fields  []Field
	Output  *TypeRef
}

func (WeaveStep) nodeKind() string { return "WeaveStep" }

// UseToolStep invokes a declared tool by name with one argument expression.
type UseToolStep struct {
	base
	Name     string
	ToolName string
	Argument Node
	Output   *TypeRef
}

func (UseToolStep) nodeKind() string { return "UseToolStep" }

// RememberStep stores an expression's value into a declared memory.
type RememberStep struct {
	base
	Name   string
	Expr   Node
	Memory string
}

func (RememberStep) nodeKind() string { return "RememberStep" }

// RecallStep retrieves a value from a declared memory by query.
type RecallStep struct {
	base
	Name   string
	Query  Node
	Memory string
	Output *TypeRef
}

func (RecallStep) nodeKind() string { return "RecallStep" }

// IfStep is the sole control-flow step: a single-value condition (a
// literal or a dotted field access, tested for truthiness) plus a
// then/else step body. Comparison operators are not parsed.
type IfStep struct {
	base
	Name      string
	Condition Node // a *Literal or *FieldAccess
	Then      Node
	Else      Node // nil if no else clause
}

func (IfStep) nodeKind() string { return "IfStep" }

// RunStatement is the program's sole entry point.
type RunStatement struct {
	base
	FlowName  string
	Arguments []Argument
	Persona   string
	Context   string
	Anchors   []string
	OnFailure *Field // nil if unspecified
	OutputTo  string
	Effort    string
}

func (RunStatement) nodeKind() string { return "RunStatement" }

// Argument is one `name: value` flow-call argument inside a run statement.
type Argument struct {
	base
	Name  string
	Value Node
}

func (Argument) nodeKind() string { return "Argument" }

// FieldAccess is AXON's only non-literal expression form: dotted access
// such as `Step.output` or `a.b.c`.
type FieldAccess struct {
	base
	Path []string
}

func (FieldAccess) nodeKind() string { return "FieldAccess" }

// LiteralKind tags the primitive value a Literal node carries.
type LiteralKind int

const (
	LiteralString LiteralKind = iota
	LiteralInteger
	LiteralFloat
	LiteralDuration
	LiteralBoolean
	LiteralIdent // a bare identifier used as an enum-like value, e.g. `precise`
	LiteralList  // a bracketed `[a, b, c]` literal list; value lives in Elements
)

// Literal is a single scalar value as written in source, or (Kind ==
// LiteralList) a bracketed list of such values.
type Literal struct {
	base
	Kind     LiteralKind
	Text     string // raw lexeme; the checker parses numerics on demand
	Elements []Node // non-nil only when Kind == LiteralList
}

func (Literal) nodeKind() string { return "Literal" }

// TypeRef is a reference to a semantic type as written in source: a bare
// name, `List<Inner>`, or `Optional<Inner>`.
type TypeRef struct {
	Position token.Position
	Name     string   // e.g. "String", "FactualClaim", "List", "Optional"
	Args     []TypeRef // non-empty only for List<T>/Optional<T>
}

func (t TypeRef) Pos() token.Position { return t.Position }
func (TypeRef) nodeKind() string      { return "TypeRef" }
