package ast

import "axon/internal/token"

// The constructors below exist because `base` is unexported: a package
// outside ast (chiefly internal/parser) cannot name it in a composite
// literal, so it builds nodes through these instead.

func NewProgram(pos token.Position) *Program {
	return &Program{base: base{pos}}
}

func NewImportDeclaration(pos token.Position) *ImportDeclaration {
	return &ImportDeclaration{base: base{pos}}
}

func NewPersonaDefinition(pos token.Position, name string, fields []Field) *PersonaDefinition {
	return &PersonaDefinition{base: base{pos}, Name: name, Fields: fields}
}

func NewContextDefinition(pos token.Position, name string, fields []Field) *ContextDefinition {
	return &ContextDefinition{base: base{pos}, Name: name, Fields: fields}
}

func NewAnchorDefinition(pos token.Position, name string, fields []Field) *AnchorDefinition {
	return &AnchorDefinition{base: base{pos}, Name: name, Fields: fields}
}

func NewMemoryDefinition(pos token.Position, name string, fields []Field) *MemoryDefinition {
	return &MemoryDefinition{base: base{pos}, Name: name, Fields: fields}
}

func NewToolDefinition(pos token.Position, name string, fields []Field) *ToolDefinition {
	return &ToolDefinition{base: base{pos}, Name: name, Fields: fields}
}

func NewFieldSpec(pos token.Position, name string, typ *TypeRef, optional bool) *FieldSpec {
	return &FieldSpec{base: base{pos}, Name: name, Type: typ, Optional: optional}
}

func NewWherePredicate(pos token.Position, source string) *WherePredicate {
	return &WherePredicate{base: base{pos}, Source: source}
}

func NewTypeDefinition(pos token.Position, name string, baseRef *TypeRef, rng *RangeConstraint, where *WherePredicate, body []FieldSpec) *TypeDefinition {
	return &TypeDefinition{base: base{pos}, Name: name, BaseRef: baseRef, Range: rng, Where: where, Body: body}
}

func NewParameter(pos token.Position, name string, typ *TypeRef) *Parameter {
	return &Parameter{base: base{pos}, Name: name, Type: typ}
}

func NewFlowDefinition(pos token.Position, name string, params []Parameter, ret *TypeRef, steps []Node) *FlowDefinition {
	return &FlowDefinition{base: base{pos}, Name: name, Params: params, ReturnType: ret, Steps: steps}
}

func NewStepBlock(pos token.Position, name string, fields []Field) *StepBlock {
	return &StepBlock{base: base{pos}, Name: name, Fields: fields}
}

func NewProbeStep(pos token.Position, name string, target Node, fields []string, output *TypeRef) *ProbeStep {
	return &ProbeStep{base: base{pos}, Name: name, Target: target, Fields: fields, Output: output}
}

func NewReasonStep(pos token.Position, name string, fields []Field, output *TypeRef) *ReasonStep {
	return &ReasonStep{base: base{pos}, Name: name, Fields: fields, Output: output}
}

func NewValidateStep(pos token.Position, name string, expr Node, schema *TypeRef, rules []Node) *ValidateStep {
	return &ValidateStep{base: base{pos}, Name: name, Expr: expr, Schema: schema, Rules: rules}
}

func NewRefineStep(pos token.Position, name string, fields []Field, output *TypeRef) *RefineStep {
	return &RefineStep{base: base{pos}, Name: name, Fields: fields, Output: output}
}

func NewWeaveStep(pos token.Position, name string, sources []Node, target string, fields []Field, output *TypeRef) *WeaveStep {
	return &WeaveStep{base: base{pos}, Name: name, Sources: sources, Target: target, Fields: fields, Output: output}
}

func NewUseToolStep(pos token.Position, name, toolName string, arg Node, output *TypeRef) *UseToolStep {
	return &UseToolStep{base: base{pos}, Name: name, ToolName: toolName, Argument: arg, Output: output}
}

func NewRememberStep(pos token.Position, name string, expr Node, memory string) *RememberStep {
	return &RememberStep{base: base{pos}, Name: name, Expr: expr, Memory: memory}
}

func NewRecallStep(pos token.Position, name string, query Node, memory string, output *TypeRef) *RecallStep {
	return &RecallStep{base: base{pos}, Name: name, Query: query, Memory: memory, Output: output}
}

func NewIfStep(pos token.Position, name string, cond, then, els Node) *IfStep {
	return &IfStep{base: base{pos}, Name: name, Condition: cond, Then: then, Else: els}
}

func NewRunStatement(pos token.Position, flowName string, args []Argument, persona, ctx string, anchors []string, onFailure *Field, outputTo, effort string) *RunStatement {
	return &RunStatement{
		base: base{pos}, FlowName: flowName, Arguments: args, Persona: persona,
		Context: ctx, Anchors: anchors, OnFailure: onFailure, OutputTo: outputTo, Effort: effort,
	}
}

func NewArgument(pos token.Position, name string, value Node) *Argument {
	return &Argument{base: base{pos}, Name: name, Value: value}
}

func NewFieldAccess(pos token.Position, path []string) *FieldAccess {
	return &FieldAccess{base: base{pos}, Path: path}
}

func NewLiteral(pos token.Position, kind LiteralKind, text string, elements []Node) *Literal {
	return &Literal{base: base{pos}, Kind: kind, Text: text, Elements: elements}
}
