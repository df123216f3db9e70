package ir

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"axon/internal/ast"
)

// idNamespace anchors the deterministic per-step UUIDs: Generate derives
// every step id from uuid.NewSHA1(idNamespace, <flow>/<step>), so the same
// source text always yields the same ids and therefore byte-identical IR
// JSON (the "idempotent IR" property). A random uuid.New() would break that
// on every recompilation.
var idNamespace = uuid.MustParse("a9f1d1c0-5e0a-4fab-9f0e-2a6a9c6d6b21")

func stepID(flow, step string) string {
	return uuid.NewSHA1(idNamespace, []byte(flow+"/"+step)).String()
}

func programID(prog *ast.Program) string {
	var names []string
	for _, d := range prog.Declarations {
		if fd, ok := d.(*ast.FlowDefinition); ok {
			names = append(names, fd.Name)
		}
	}
	return uuid.NewSHA1(idNamespace, []byte(strings.Join(names, ","))).String()
}

// Generate lowers a checked Program into its IR. It assumes the program has
// already passed checker.Check with no SeverityError diagnostics; Generate
// itself re-derives only the structural facts it needs (entrypoint
// presence, step dependency acyclicity) rather than re-running type checks.
func Generate(prog *ast.Program) (*Program, error) {
	out := &Program{
		AxonIRVersion: AxonIRVersion,
		ProgramID:     programID(prog),
	}

	var run *ast.RunStatement
	for _, decl := range prog.Declarations {
		switch d := decl.(type) {
		case *ast.PersonaDefinition:
			out.Declarations = append(out.Declarations, Declaration{Kind: "persona", Name: d.Name, Fields: fieldsToConfig(d.Fields)})
		case *ast.ContextDefinition:
			out.Declarations = append(out.Declarations, Declaration{Kind: "context", Name: d.Name, Fields: fieldsToConfig(d.Fields)})
		case *ast.AnchorDefinition:
			out.Declarations = append(out.Declarations, Declaration{Kind: "anchor", Name: d.Name, Fields: fieldsToConfig(d.Fields)})
		case *ast.MemoryDefinition:
			out.Declarations = append(out.Declarations, Declaration{Kind: "memory", Name: d.Name, Fields: fieldsToConfig(d.Fields)})
		case *ast.ToolDefinition:
			out.Declarations = append(out.Declarations, Declaration{Kind: "tool", Name: d.Name, Fields: fieldsToConfig(d.Fields)})
		case *ast.TypeDefinition:
			out.Declarations = append(out.Declarations, typeDeclToIR(d))
		case *ast.FlowDefinition:
			flow, err := generateFlow(d)
			if err != nil {
				return nil, err
			}
			out.Flows = append(out.Flows, *flow)
		case *ast.RunStatement:
			run = d
		}
	}

	if run == nil {
		return nil, newError(NoEntrypoint, "program declares no run statement")
	}
	out.Entrypoint = generateEntrypoint(run)

	return out, nil
}

func typeDeclToIR(d *ast.TypeDefinition) Declaration {
	fields := map[string]any{}
	if d.BaseRef != nil {
		fields["base"] = typeRefString(d.BaseRef)
	}
	if d.Range != nil {
		fields["range"] = []float64{d.Range.Lo, d.Range.Hi}
	}
	if d.Where != nil {
		fields["where"] = d.Where.Source
	}
	if len(d.Body) > 0 {
		body := make(map[string]any, len(d.Body))
		for _, fs := range d.Body {
			body[fs.Name] = map[string]any{"type": typeRefString(fs.Type), "optional": fs.Optional}
		}
		fields["body"] = body
	}
	return Declaration{Kind: "type", Name: d.Name, Fields: fields}
}

func generateEntrypoint(rs *ast.RunStatement) *Entrypoint {
	args := map[string]any{}
	for _, a := range rs.Arguments {
		args[a.Name] = valueToJSON(a.Value)
	}
	ep := &Entrypoint{
		Flow:      rs.FlowName,
		Arguments: args,
		Persona:   rs.Persona,
		Context:   rs.Context,
		Anchors:   rs.Anchors,
		OutputTo:  rs.OutputTo,
		Effort:    rs.Effort,
	}
	if rs.OnFailure != nil {
		ep.OnFailure = valueToJSON(rs.OnFailure.Value)
	}
	return ep
}

func generateFlow(fd *ast.FlowDefinition) (*Flow, error) {
	flow := &Flow{Name: fd.Name}
	for _, p := range fd.Params {
		flow.Params = append(flow.Params, Param{Name: p.Name, Type: typeRefString(p.Type)})
	}
	if fd.ReturnType != nil {
		flow.ReturnType = typeRefString(fd.ReturnType)
	}

	flat := flattenSteps(fd.Name, fd.Steps, nil)
	if err := checkAcyclic(fd.Name, flat); err != nil {
		return nil, err
	}
	flow.Steps = flat
	return flow, nil
}

// flattenSteps walks a flow's step list (and any nested if-branches) into a
// single ordered slice of IR Steps, threading an extra depends-on edge from
// a conditional branch's steps back to the id of the IfStep guarding it.
func flattenSteps(flow string, nodes []ast.Node, extraDep []string) []Step {
	var out []Step
	for _, n := range nodes {
		name := stepName(n)
		id := stepID(flow, name)
		deps := append([]string{}, extraDep...)
		deps = append(deps, refDeps(flow, n)...)

		switch s := n.(type) {
		case *ast.IfStep:
			out = append(out, Step{ID: id, Kind: "if", Name: name, DependsOn: dedupe(deps), Config: map[string]any{
				"condition": valueToJSON(s.Condition),
			}})
			out = append(out, tagBranch(flattenSteps(flow, []ast.Node{s.Then}, []string{id}), "then")...)
			if s.Else != nil {
				out = append(out, tagBranch(flattenSteps(flow, []ast.Node{s.Else}, []string{id}), "else")...)
			}
		default:
			out = append(out, Step{ID: id, Kind: stepKind(n), Name: name, DependsOn: dedupe(deps), Config: stepConfig(n)})
		}
	}
	return out
}

// tagBranch marks each step produced from one side of an if with the
// branch it belongs to, so the executor can decide which flattened steps
// to run once the guarding condition is resolved.
func tagBranch(steps []Step, branch string) []Step {
	for i := range steps {
		if steps[i].Config == nil {
			steps[i].Config = map[string]any{}
		}
		steps[i].Config["branch"] = branch
	}
	return steps
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func stepName(n ast.Node) string {
	switch s := n.(type) {
	case *ast.StepBlock:
		return s.Name
	case *ast.ProbeStep:
		return s.Name
	case *ast.ReasonStep:
		return s.Name
	case *ast.ValidateStep:
		return s.Name
	case *ast.RefineStep:
		return s.Name
	case *ast.WeaveStep:
		return s.Name
	case *ast.UseToolStep:
		return s.Name
	case *ast.RememberStep:
		return s.Name
	case *ast.RecallStep:
		return s.Name
	case *ast.IfStep:
		return s.Name
	default:
		return fmt.Sprintf("anon-%T", n)
	}
}

func stepKind(n ast.Node) string {
	switch n.(type) {
	case *ast.StepBlock:
		return "step"
	case *ast.ProbeStep:
		return "probe"
	case *ast.ReasonStep:
		return "reason"
	case *ast.ValidateStep:
		return "validate"
	case *ast.RefineStep:
		return "refine"
	case *ast.WeaveStep:
		return "weave"
	case *ast.UseToolStep:
		return "use_tool"
	case *ast.RememberStep:
		return "remember"
	case *ast.RecallStep:
		return "recall"
	case *ast.IfStep:
		return "if"
	default:
		return "unknown"
	}
}

func stepConfig(n ast.Node) map[string]any {
	cfg := map[string]any{}
	switch s := n.(type) {
	case *ast.StepBlock:
		for k, v := range fieldsToConfig(s.Fields) {
			cfg[k] = v
		}
	case *ast.ProbeStep:
		cfg["target"] = valueToJSON(s.Target)
		cfg["fields"] = s.Fields
		if s.Output != nil {
			cfg["output"] = typeRefString(s.Output)
		}
	case *ast.ReasonStep:
		for k, v := range fieldsToConfig(s.Fields) {
			cfg[k] = v
		}
		if s.Output != nil {
			cfg["output"] = typeRefString(s.Output)
		}
	case *ast.ValidateStep:
		cfg["expr"] = valueToJSON(s.Expr)
		if s.Schema != nil {
			cfg["schema"] = typeRefString(s.Schema)
		}
		if len(s.Rules) > 0 {
			rules := make([]any, len(s.Rules))
			for i, r := range s.Rules {
				rules[i] = valueToJSON(r)
			}
			cfg["rules"] = rules
		}
	case *ast.RefineStep:
		for k, v := range fieldsToConfig(s.Fields) {
			cfg[k] = v
		}
		if s.Output != nil {
			cfg["output"] = typeRefString(s.Output)
		}
	case *ast.WeaveStep:
		sources := make([]any, len(s.Sources))
		for i, src := range s.Sources {
			sources[i] = valueToJSON(src)
		}
		cfg["sources"] = sources
		cfg["target"] = s.Target
		for k, v := range fieldsToConfig(s.Fields) {
			cfg[k] = v
		}
		if s.Output != nil {
			cfg["output"] = typeRefString(s.Output)
		}
	case *ast.UseToolStep:
		cfg["tool"] = s.ToolName
		if s.Argument != nil {
			cfg["argument"] = valueToJSON(s.Argument)
		}
		if s.Output != nil {
			cfg["output"] = typeRefString(s.Output)
		}
	case *ast.RememberStep:
		cfg["expr"] = valueToJSON(s.Expr)
		cfg["memory"] = s.Memory
	case *ast.RecallStep:
		cfg["query"] = valueToJSON(s.Query)
		cfg["memory"] = s.Memory
		if s.Output != nil {
			cfg["output"] = typeRefString(s.Output)
		}
	}
	return cfg
}

// refDeps collects the set of prior step names a step's value expressions
// reference, rendered as that step's deterministic id.
func refDeps(flow string, n ast.Node) []string {
	roots := map[string]bool{}
	collectRoots := func(v ast.Node) { collectFieldAccessRoots(v, roots) }

	switch s := n.(type) {
	case *ast.ProbeStep:
		collectRoots(s.Target)
	case *ast.ReasonStep:
		for _, f := range s.Fields {
			collectRoots(f.Value)
		}
	case *ast.ValidateStep:
		collectRoots(s.Expr)
		for _, r := range s.Rules {
			collectRoots(r)
		}
	case *ast.RefineStep:
		for _, f := range s.Fields {
			collectRoots(f.Value)
		}
	case *ast.WeaveStep:
		for _, src := range s.Sources {
			collectRoots(src)
		}
		for _, f := range s.Fields {
			collectRoots(f.Value)
		}
	case *ast.UseToolStep:
		if s.Argument != nil {
			collectRoots(s.Argument)
		}
	case *ast.RememberStep:
		collectRoots(s.Expr)
	case *ast.RecallStep:
		collectRoots(s.Query)
	case *ast.IfStep:
		collectRoots(s.Condition)
	}

	var deps []string
	for name := range roots {
		deps = append(deps, stepID(flow, name))
	}
	sort.Strings(deps)
	return deps
}

func collectFieldAccessRoots(n ast.Node, out map[string]bool) {
	switch v := n.(type) {
	case *ast.FieldAccess:
		if len(v.Path) > 0 {
			out[v.Path[0]] = true
		}
	case *ast.Literal:
		for _, el := range v.Elements {
			collectFieldAccessRoots(el, out)
		}
	}
}

func fieldsToConfig(fields []ast.Field) map[string]any {
	cfg := make(map[string]any, len(fields))
	for _, f := range fields {
		cfg[f.Name] = valueToJSON(f.Value)
	}
	return cfg
}

func valueToJSON(n ast.Node) any {
	switch v := n.(type) {
	case nil:
		return nil
	case *ast.FieldAccess:
		return map[string]any{"ref": strings.Join(v.Path, ".")}
	case *ast.TypeRef:
		return typeRefString(v)
	case *ast.Literal:
		switch v.Kind {
		case ast.LiteralList:
			elems := make([]any, len(v.Elements))
			for i, e := range v.Elements {
				elems[i] = valueToJSON(e)
			}
			return elems
		case ast.LiteralString:
			return v.Text
		case ast.LiteralBoolean:
			return v.Text == "true"
		default:
			// Integer, Float, Duration, and call-like Ident values are kept
			// as their raw lexeme; the runtime parses numerics/durations on
			// demand the same way the checker's predicate admission does.
			return v.Text
		}
	default:
		return nil
	}
}

func typeRefString(t *ast.TypeRef) string {
	if t == nil {
		return ""
	}
	if len(t.Args) == 0 {
		return t.Name
	}
	parts := make([]string, len(t.Args))
	for i, a := range t.Args {
		parts[i] = typeRefString(&a)
	}
	return fmt.Sprintf("%s<%s>", t.Name, strings.Join(parts, ","))
}

// checkAcyclic runs Kahn's algorithm over the flattened step list. A
// well-formed flow can never cycle (AXON only lets a step reference steps
// declared earlier in the same flow), but Generate verifies it structurally
// rather than trust that invariant silently.
func checkAcyclic(flow string, steps []Step) error {
	indeg := make(map[string]int, len(steps))
	byID := make(map[string]Step, len(steps))
	adj := make(map[string][]string, len(steps))
	for _, s := range steps {
		indeg[s.ID] = 0
		byID[s.ID] = s
	}
	for _, s := range steps {
		for _, dep := range s.DependsOn {
			if _, ok := byID[dep]; !ok {
				continue
			}
			adj[dep] = append(adj[dep], s.ID)
			indeg[s.ID]++
		}
	}

	var queue []string
	for id, d := range indeg {
		if d == 0 {
			queue = append(queue, id)
		}
	}
	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range adj[id] {
			indeg[next]--
			if indeg[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if visited != len(steps) {
		return newError(CyclicDependency, "flow %q has a cyclic step dependency", flow)
	}
	return nil
}
