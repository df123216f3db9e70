package checker

import (
	"fmt"
	"strconv"

	"axon/internal/ast"
	"axon/internal/token"
	"axon/internal/types"
)

func fmtLabel(format string, args []any) string {
	return fmt.Sprintf(format, args...)
}

// rangedFields maps the persona/context/anchor fields that §6.1 declares
// with a `0.0..1.0` bound to that bound, so collect can range-check their
// literal values at declaration time the same way collectType range-checks
// a `type`'s own (lo..hi) constraint.
var rangedFields = map[string]*types.Range{
	"confidence_threshold": {Lo: 0.0, Hi: 1.0},
	"temperature":          {Lo: 0.0, Hi: 1.0},
	"confidence_floor":     {Lo: 0.0, Hi: 1.0},
}

// numericLiteral parses a Literal's raw lexeme as a float64, reporting
// whether the literal was numeric at all (LiteralInteger or LiteralFloat).
func numericLiteral(lit *ast.Literal) (float64, bool) {
	if lit.Kind != ast.LiteralInteger && lit.Kind != ast.LiteralFloat {
		return 0, false
	}
	v, err := strconv.ParseFloat(lit.Text, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Result is the outcome of checking a Program: the fully populated symbol
// table and every diagnostic collected across both passes.
type Result struct {
	Symbols     *SymbolTable
	Diagnostics []Diagnostic
}

// Check runs the two-pass epistemic check over a parsed Program:
// declaration collection (registering personas/contexts/anchors/
// memories/tools/types/flows, rejecting duplicates), then per-flow
// checking (step wiring, type compatibility, anchor/persona/context
// references). Diagnostics are batched; checking one declaration or flow
// never stops because another already failed.
func Check(prog *ast.Program) *Result {
	st := newSymbolTable()
	diags := &Diagnostics{}

	c := &checker{symtab: st, diags: diags}
	c.collect(prog)
	c.checkAll(prog)

	return &Result{Symbols: st, Diagnostics: diags.All()}
}

type checker struct {
	symtab *SymbolTable
	diags  *Diagnostics
}

// --- pass 1: declaration collection -----------------------------------

func (c *checker) collect(prog *ast.Program) {
	for _, decl := range prog.Declarations {
		switch d := decl.(type) {
		case *ast.PersonaDefinition:
			if _, dup := c.symtab.Personas[d.Name]; dup {
				c.diags.Errorf(DuplicateDeclaration, d.Pos(), "persona %q already declared", d.Name)
				continue
			}
			c.symtab.Personas[d.Name] = d
			c.checkFieldRanges(d.Fields)
		case *ast.ContextDefinition:
			if _, dup := c.symtab.Contexts[d.Name]; dup {
				c.diags.Errorf(DuplicateDeclaration, d.Pos(), "context %q already declared", d.Name)
				continue
			}
			c.symtab.Contexts[d.Name] = d
			c.checkFieldRanges(d.Fields)
		case *ast.AnchorDefinition:
			if _, dup := c.symtab.Anchors[d.Name]; dup {
				c.diags.Errorf(DuplicateDeclaration, d.Pos(), "anchor %q already declared", d.Name)
				continue
			}
			c.symtab.Anchors[d.Name] = d
			c.checkFieldRanges(d.Fields)
		case *ast.MemoryDefinition:
			if _, dup := c.symtab.Memories[d.Name]; dup {
				c.diags.Errorf(DuplicateDeclaration, d.Pos(), "memory %q already declared", d.Name)
				continue
			}
			c.symtab.Memories[d.Name] = d
		case *ast.ToolDefinition:
			if _, dup := c.symtab.Tools[d.Name]; dup {
				c.diags.Errorf(DuplicateDeclaration, d.Pos(), "tool %q already declared", d.Name)
				continue
			}
			c.symtab.Tools[d.Name] = d
		case *ast.TypeDefinition:
			c.collectType(d)
		case *ast.FlowDefinition:
			if _, dup := c.symtab.Flows[d.Name]; dup {
				c.diags.Errorf(DuplicateDeclaration, d.Pos(), "flow %q already declared", d.Name)
				continue
			}
			c.symtab.Flows[d.Name] = d
		}
	}
}

func (c *checker) collectType(d *ast.TypeDefinition) {
	if _, dup := c.symtab.Types[d.Name]; dup {
		c.diags.Errorf(DuplicateDeclaration, d.Pos(), "type %q already declared", d.Name)
		return
	}

	st := &types.SemanticType{Name: d.Name, Kind: types.KindNominal}

	if d.BaseRef != nil {
		base := c.symtab.ResolveTypeRef(d.BaseRef)
		if base == nil {
			c.diags.Errorf(UnknownType, d.BaseRef.Pos(), "unknown base type %q", d.BaseRef.Name)
		} else if base.Kind == types.KindEpistemic {
			st.Kind = types.KindEpistemic
			st.Epistemic = base.Epistemic
		}
	}

	if d.Range != nil {
		if d.Range.Lo > d.Range.Hi {
			c.diags.Errorf(EmptyDomain, d.Range.Position, "range (%g..%g) is empty: lo > hi", d.Range.Lo, d.Range.Hi)
		}
		st.Range = &types.Range{Lo: d.Range.Lo, Hi: d.Range.Hi}
	}

	if d.Where != nil {
		if err := types.AdmitPredicate(d.Where.Source); err != nil {
			c.diags.Errorf(InvalidPredicate, d.Where.Pos(), "%s", err.Error())
		}
	}

	for _, fs := range d.Body {
		// Widening to List<Uncertainty> is a per-assignment decision made
		// when a step actually supplies Uncertainty-tagged elements (see
		// checkWeaveStep), not at declaration time.
		if c.symtab.ResolveTypeRef(fs.Type) == nil {
			c.diags.Errorf(UnknownType, fs.Type.Pos(), "unknown field type %q for field %q", fs.Type.Name, fs.Name)
		}
	}

	c.symtab.Types[d.Name] = st
	c.symtab.TypeDefs[d.Name] = d
}

// checkFieldRanges range-checks the literal value of any persona/context/
// anchor field named in rangedFields, e.g. `confidence_threshold: 1.5`,
// at declaration time.
func (c *checker) checkFieldRanges(fields []ast.Field) {
	for _, f := range fields {
		rng, ok := rangedFields[f.Name]
		if !ok {
			continue
		}
		lit, ok := f.Value.(*ast.Literal)
		if !ok {
			continue
		}
		v, ok := numericLiteral(lit)
		if !ok {
			continue
		}
		if !rng.Contains(v) {
			c.diags.Errorf(RangeViolation, lit.Pos(), "field %q value %g is outside declared range (%g..%g)", f.Name, v, rng.Lo, rng.Hi)
		}
	}
}

// --- pass 2: per-flow checking -----------------------------------------

func (c *checker) checkAll(prog *ast.Program) {
	for _, decl := range prog.Declarations {
		switch d := decl.(type) {
		case *ast.FlowDefinition:
			c.checkFlow(d)
		case *ast.RunStatement:
			c.checkRun(d)
		}
	}
}

func (c *checker) checkFlow(fd *ast.FlowDefinition) {
	paramTypes := map[string]*types.SemanticType{}
	for _, param := range fd.Params {
		t := c.symtab.ResolveTypeRef(param.Type)
		if t == nil {
			c.diags.Errorf(UnknownType, param.Type.Pos(), "unknown parameter type %q for %q", param.Type.Name, param.Name)
		}
		paramTypes[param.Name] = t
	}
	if fd.ReturnType != nil && c.symtab.ResolveTypeRef(fd.ReturnType) == nil {
		c.diags.Errorf(UnknownType, fd.ReturnType.Pos(), "unknown return type %q", fd.ReturnType.Name)
	}

	fc := &flowChecker{
		checker:     c,
		stepOutputs: map[string]*types.SemanticType{},
		paramTypes:  paramTypes,
	}
	for _, step := range fd.Steps {
		fc.checkStep(step)
	}
}

// flowChecker carries the per-flow local environment: declared parameter
// types and the running map of step name to declared output type, built
// up as steps are checked in source order (a step may only reference
// steps declared earlier in the same flow).
type flowChecker struct {
	checker     *checker
	stepOutputs map[string]*types.SemanticType
	paramTypes  map[string]*types.SemanticType
}

func (fc *flowChecker) checkStep(n ast.Node) {
	switch s := n.(type) {
	case *ast.StepBlock:
		// Generic step blocks carry no declared output; nothing further
		// to resolve beyond their field values, which are free-form.
	case *ast.ProbeStep:
		fc.checkValue(s.Target)
		if s.Output != nil {
			fc.bindOutput(s.Name, s.Output)
		}
	case *ast.ReasonStep:
		for _, f := range s.Fields {
			fc.checkValue(f.Value)
		}
		if s.Output != nil {
			fc.bindOutput(s.Name, s.Output)
		}
	case *ast.ValidateStep:
		fc.checkValidateStep(s)
	case *ast.RefineStep:
		for _, f := range s.Fields {
			fc.checkValue(f.Value)
		}
		if s.Output != nil {
			fc.bindOutput(s.Name, s.Output)
		}
	case *ast.WeaveStep:
		fc.checkWeaveStep(s)
	case *ast.UseToolStep:
		if _, ok := fc.checker.symtab.Tools[s.ToolName]; !ok {
			fc.checker.diags.Errorf(UnknownSymbol, s.Pos(), "use of undeclared tool %q", s.ToolName)
		}
		if s.Argument != nil {
			fc.checkValue(s.Argument)
		}
		if s.Output != nil {
			fc.bindOutput(s.Name, s.Output)
		}
	case *ast.RememberStep:
		if _, ok := fc.checker.symtab.Memories[s.Memory]; !ok {
			fc.checker.diags.Errorf(UnknownSymbol, s.Pos(), "remember into undeclared memory %q", s.Memory)
		}
		fc.checkValue(s.Expr)
	case *ast.RecallStep:
		if _, ok := fc.checker.symtab.Memories[s.Memory]; !ok {
			fc.checker.diags.Errorf(UnknownSymbol, s.Pos(), "recall from undeclared memory %q", s.Memory)
		}
		fc.checkValue(s.Query)
		if s.Output != nil {
			fc.bindOutput(s.Name, s.Output)
		}
	case *ast.IfStep:
		fc.checkValue(s.Condition)
		fc.checkStep(s.Then)
		if s.Else != nil {
			fc.checkStep(s.Else)
		}
	}
}

// checkValidateStep checks a validate step's expression against its
// schema, wiring the two required diagnostics from §4.3 and §8 Scenario
// 2: IncompatibleAssignment when the expression's epistemic type cannot
// flow into the declared schema (e.g. an Opinion-producing step assigned
// into a FactualClaim slot), and RangeViolation when a numeric literal
// falls outside the schema's declared range.
func (fc *flowChecker) checkValidateStep(s *ast.ValidateStep) {
	fc.checkValue(s.Expr)
	for _, r := range s.Rules {
		fc.checkValue(r)
	}
	if s.Schema == nil {
		return
	}
	schema := fc.checker.symtab.ResolveTypeRef(s.Schema)
	if schema == nil {
		fc.checker.diags.Errorf(UnknownType, s.Schema.Pos(), "unknown schema type %q for validate %q", s.Schema.Name, s.Name)
		return
	}
	fc.checkAssignment(s.Expr, schema, s.Pos(), "validate %q", s.Name)
}

// resolveValueType computes the declared or literal type of an
// expression: a FieldAccess resolves to its root step's output or the
// flow's parameter type; a Literal resolves to the matching primitive
// type, or (for a list) List of its first element's type. Returns nil
// when the expression's type cannot be determined (an unresolved
// identifier, an empty list, or an enum-like bare identifier).
func (fc *flowChecker) resolveValueType(n ast.Node) *types.SemanticType {
	switch v := n.(type) {
	case *ast.FieldAccess:
		if len(v.Path) == 0 {
			return nil
		}
		root := v.Path[0]
		if t, ok := fc.stepOutputs[root]; ok {
			return t
		}
		if t, ok := fc.paramTypes[root]; ok {
			return t
		}
		return nil
	case *ast.Literal:
		return literalSemanticType(v)
	}
	return nil
}

// literalSemanticType maps a Literal to the primitive type its Kind
// denotes, or (for LiteralList) to List of its first element's type.
// Shared by flowChecker.resolveValueType and checkRun's argument checks,
// neither of which needs a flow-local environment to type a bare literal.
func literalSemanticType(v *ast.Literal) *types.SemanticType {
	switch v.Kind {
	case ast.LiteralString:
		return types.String
	case ast.LiteralInteger:
		return types.Int
	case ast.LiteralFloat:
		return types.Float
	case ast.LiteralBoolean:
		return types.Bool
	case ast.LiteralDuration:
		return types.Duration
	case ast.LiteralList:
		if len(v.Elements) == 0 {
			return nil
		}
		first, ok := v.Elements[0].(*ast.Literal)
		if !ok {
			return nil
		}
		elem := literalSemanticType(first)
		if elem == nil {
			return nil
		}
		return types.List(elem)
	}
	return nil
}

// checkAssignment is the one place §4.3's two compile-time checks meet: it
// resolves src's type and, if known, rejects an incompatible epistemic
// flow into target (IncompatibleAssignment); independently, if src is a
// numeric literal and target carries a refinement Range, it rejects an
// out-of-range literal (RangeViolation). label/labelArgs describe the
// offending construct for the diagnostic message.
func (fc *flowChecker) checkAssignment(src ast.Node, target *types.SemanticType, pos token.Position, label string, labelArgs ...any) {
	if src == nil || target == nil {
		return
	}
	if srcType := fc.resolveValueType(src); srcType != nil && !types.Compatible(srcType, target) {
		fc.checker.diags.Errorf(IncompatibleAssignment, pos,
			"%s: type %s is not compatible with declared type %s", fmtLabel(label, labelArgs), srcType.Name, target.Name)
	}
	if lit, ok := src.(*ast.Literal); ok && target.Range != nil {
		if v, ok := numericLiteral(lit); ok && !target.Range.Contains(v) {
			fc.checker.diags.Errorf(RangeViolation, lit.Pos(),
				"%s: value %g is outside declared range (%g..%g)", fmtLabel(label, labelArgs), v, target.Range.Lo, target.Range.Hi)
		}
	}
}

func (fc *flowChecker) bindOutput(name string, ref *ast.TypeRef) {
	t := fc.checker.symtab.ResolveTypeRef(ref)
	if t == nil {
		fc.checker.diags.Errorf(UnknownType, ref.Pos(), "unknown output type %q for step %q", ref.Name, name)
		return
	}
	fc.stepOutputs[name] = t
}

// checkValue resolves FieldAccess expressions against declared step
// outputs and flow parameters, emitting UnknownSymbol for an unresolved
// root identifier. Literal values need no resolution.
func (fc *flowChecker) checkValue(n ast.Node) {
	switch v := n.(type) {
	case *ast.FieldAccess:
		if len(v.Path) == 0 {
			return
		}
		root := v.Path[0]
		if _, ok := fc.stepOutputs[root]; ok {
			return
		}
		if _, ok := fc.paramTypes[root]; ok {
			return
		}
		fc.checker.diags.Errorf(UnknownSymbol, v.Pos(), "reference to undeclared step or parameter %q", root)
	case *ast.Literal:
		for _, el := range v.Elements {
			fc.checkValue(el)
		}
	}
}

// checkWeaveStep resolves each source's declared type by its producing
// step name and computes the weave's combined element type. When any
// source is a List<Uncertainty> (whatever the other sources' element
// kinds), the documented Open Question decision applies: the
// combined type widens to List<Uncertainty> and an informational
// UncertaintyPropagationRequired diagnostic names the weave.
func (fc *flowChecker) checkWeaveStep(s *ast.WeaveStep) {
	var sources []ast.Node
	var sourceTypes []*types.SemanticType
	for _, src := range s.Sources {
		fc.checkValue(src)
		fa, ok := src.(*ast.FieldAccess)
		if !ok || len(fa.Path) == 0 {
			continue
		}
		if t, ok := fc.stepOutputs[fa.Path[0]]; ok {
			sources = append(sources, src)
			sourceTypes = append(sourceTypes, t)
		}
	}
	for _, f := range s.Fields {
		fc.checkValue(f.Value)
	}

	widened := false
	for _, t := range sourceTypes {
		if t == nil || t.Kind != types.KindList || t.Elem == nil || t.Elem.Kind != types.KindEpistemic {
			continue
		}
		if t.Elem.Epistemic == types.Uncertainty {
			widened = true
		}
	}
	if widened {
		fc.checker.diags.Infof(UncertaintyPropagationRequired, s.Pos(),
			"weave %q combines an Uncertainty-tagged list source; its combined output widens to List<Uncertainty>", s.Name)
	}

	if s.Output == nil {
		return
	}
	out := fc.checker.symtab.ResolveTypeRef(s.Output)
	if out == nil {
		fc.checker.diags.Errorf(UnknownType, s.Output.Pos(), "unknown output type %q for step %q", s.Output.Name, s.Name)
		return
	}
	// A widened-to-Uncertainty combination is, by the blanket Uncertainty
	// rule, always compatible with whatever the step declares as output.
	if !widened {
		for _, src := range sources {
			fc.checkAssignment(src, out, s.Pos(), "weave %q", s.Name)
		}
	}
	fc.stepOutputs[s.Name] = out
}

// checkRun resolves a RunStatement's flow, persona, context, and anchor
// references, and checks argument names against the flow's declared
// parameters.
func (c *checker) checkRun(rs *ast.RunStatement) {
	flow, ok := c.symtab.Flows[rs.FlowName]
	if !ok {
		c.diags.Errorf(UnknownSymbol, rs.Pos(), "run references undeclared flow %q", rs.FlowName)
	}
	if rs.Persona != "" {
		if _, ok := c.symtab.Personas[rs.Persona]; !ok {
			c.diags.Errorf(UnknownSymbol, rs.Pos(), "run references undeclared persona %q", rs.Persona)
		}
	}
	if rs.Context != "" {
		if _, ok := c.symtab.Contexts[rs.Context]; !ok {
			c.diags.Errorf(UnknownSymbol, rs.Pos(), "run references undeclared context %q", rs.Context)
		}
	}
	for _, a := range rs.Anchors {
		if _, ok := c.symtab.Anchors[a]; !ok {
			c.diags.Errorf(UnknownSymbol, rs.Pos(), "run references undeclared anchor %q", a)
		}
	}
	if flow == nil {
		return
	}
	paramTypes := map[string]*ast.TypeRef{}
	for _, p := range flow.Params {
		paramTypes[p.Name] = p.Type
	}
	for _, arg := range rs.Arguments {
		paramType, declared := paramTypes[arg.Name]
		if !declared {
			c.diags.Errorf(UnknownSymbol, arg.Pos(), "run argument %q does not match any parameter of flow %q", arg.Name, rs.FlowName)
			continue
		}
		lit, ok := arg.Value.(*ast.Literal)
		if !ok {
			continue
		}
		target := c.symtab.ResolveTypeRef(paramType)
		if target == nil {
			continue
		}
		if litType := literalSemanticType(lit); litType != nil && !types.Compatible(litType, target) {
			c.diags.Errorf(IncompatibleAssignment, arg.Pos(),
				"run argument %q: type %s is not compatible with declared parameter type %s", arg.Name, litType.Name, target.Name)
		}
		if target.Range != nil {
			if v, ok := numericLiteral(lit); ok && !target.Range.Contains(v) {
				c.diags.Errorf(RangeViolation, lit.Pos(),
					"run argument %q: value %g is outside declared range (%g..%g)", arg.Name, v, target.Range.Lo, target.Range.Hi)
			}
		}
	}
}
