package ast

import (
	"fmt"
	"strings"
)

// Print renders a Program back to AXON source text. It is the inverse of
// parser.Parse up to comments and insignificant whitespace, used by the
// round-trip property test (parse -> print -> re-parse -> structurally
// equal AST).
func Print(p *Program) string {
	var sb strings.Builder
	for i, d := range p.Declarations {
		if i > 0 {
			sb.WriteString("\n")
		}
		printDecl(&sb, d)
		sb.WriteString("\n")
	}
	return sb.String()
}

func printDecl(sb *strings.Builder, n Node) {
	switch d := n.(type) {
	case *ImportDeclaration:
		sb.WriteString("import ")
		sb.WriteString(strings.Join(d.Path, "."))
		if len(d.NamedImports) > 0 {
			sb.WriteString(".{")
			sb.WriteString(strings.Join(d.NamedImports, ", "))
			sb.WriteString("}")
		}
	case *PersonaDefinition:
		printBlock(sb, "persona", d.Name, d.Fields)
	case *ContextDefinition:
		printBlock(sb, "context", d.Name, d.Fields)
	case *AnchorDefinition:
		printBlock(sb, "anchor", d.Name, d.Fields)
	case *MemoryDefinition:
		printBlock(sb, "memory", d.Name, d.Fields)
	case *ToolDefinition:
		printBlock(sb, "tool", d.Name, d.Fields)
	case *TypeDefinition:
		printType(sb, d)
	case *FlowDefinition:
		printFlow(sb, d)
	case *RunStatement:
		printRun(sb, d)
	default:
		fmt.Fprintf(sb, "/* unknown decl %T */", n)
	}
}

func printBlock(sb *strings.Builder, kw, name string, fields []Field) {
	fmt.Fprintf(sb, "%s %s {\n", kw, name)
	for _, f := range fields {
		fmt.Fprintf(sb, "  %s: %s\n", f.Name, printValue(f.Value))
	}
	sb.WriteString("}")
}

func printOpenBlockWithOutput(sb *strings.Builder, kw, name string, fields []Field, output *TypeRef) {
	fmt.Fprintf(sb, "%s %s {\n", kw, name)
	for _, f := range fields {
		fmt.Fprintf(sb, "  %s: %s\n", f.Name, printValue(f.Value))
	}
	if output != nil {
		fmt.Fprintf(sb, "  output: %s\n", printTypeRef(output))
	}
	sb.WriteString("}")
}

func printValue(n Node) string {
	switch v := n.(type) {
	case *Literal:
		switch v.Kind {
		case LiteralString:
			return fmt.Sprintf("%q", v.Text)
		case LiteralList:
			parts := make([]string, len(v.Elements))
			for i, e := range v.Elements {
				parts[i] = printValue(e)
			}
			return "[" + strings.Join(parts, ", ") + "]"
		default:
			return v.Text
		}
	case *FieldAccess:
		return strings.Join(v.Path, ".")
	case *TypeRef:
		return printTypeRef(v)
	case nil:
		return ""
	default:
		return fmt.Sprintf("/* unknown value %T */", n)
	}
}

func printTypeRef(t *TypeRef) string {
	if len(t.Args) == 0 {
		return t.Name
	}
	parts := make([]string, len(t.Args))
	for i := range t.Args {
		parts[i] = printTypeRef(&t.Args[i])
	}
	return t.Name + "<" + strings.Join(parts, ", ") + ">"
}

func printType(sb *strings.Builder, d *TypeDefinition) {
	fmt.Fprintf(sb, "type %s", d.Name)
	if d.BaseRef != nil {
		sb.WriteString(" ")
		sb.WriteString(printTypeRef(d.BaseRef))
	}
	if d.Range != nil {
		fmt.Fprintf(sb, " (%g..%g)", d.Range.Lo, d.Range.Hi)
	}
	if d.Where != nil {
		fmt.Fprintf(sb, " where %q", d.Where.Source)
	}
	if d.Body != nil {
		sb.WriteString(" {\n")
		for _, f := range d.Body {
			opt := ""
			if f.Optional {
				opt = "?"
			}
			fmt.Fprintf(sb, "  %s%s: %s\n", f.Name, opt, printTypeRef(f.Type))
		}
		sb.WriteString("}")
	}
}

func printFlow(sb *strings.Builder, d *FlowDefinition) {
	fmt.Fprintf(sb, "flow %s(", d.Name)
	params := make([]string, len(d.Params))
	for i, p := range d.Params {
		params[i] = fmt.Sprintf("%s: %s", p.Name, printTypeRef(p.Type))
	}
	sb.WriteString(strings.Join(params, ", "))
	sb.WriteString(")")
	if d.ReturnType != nil {
		sb.WriteString(" -> ")
		sb.WriteString(printTypeRef(d.ReturnType))
	}
	sb.WriteString(" {\n")
	for _, s := range d.Steps {
		printStep(sb, s)
	}
	sb.WriteString("}")
}

func printStep(sb *strings.Builder, n Node) {
	switch s := n.(type) {
	case *StepBlock:
		printBlock(sb, "step", s.Name, s.Fields)
		sb.WriteString("\n")
	case *ProbeStep:
		fmt.Fprintf(sb, "probe %s {\n  target: %s\n  fields: [%s]\n",
			s.Name, printValue(s.Target), strings.Join(s.Fields, ", "))
		if s.Output != nil {
			fmt.Fprintf(sb, "  output: %s\n", printTypeRef(s.Output))
		}
		sb.WriteString("}\n")
	case *ReasonStep:
		printOpenBlockWithOutput(sb, "reason", s.Name, s.Fields, s.Output)
		sb.WriteString("\n")
	case *ValidateStep:
		fmt.Fprintf(sb, "validate %s {\n  expr: %s\n", s.Name, printValue(s.Expr))
		if s.Schema != nil {
			fmt.Fprintf(sb, "  schema: %s\n", printTypeRef(s.Schema))
		}
		if len(s.Rules) > 0 {
			rules := make([]string, len(s.Rules))
			for i, r := range s.Rules {
				rules[i] = printValue(r)
			}
			fmt.Fprintf(sb, "  rules: [%s]\n", strings.Join(rules, ", "))
		}
		sb.WriteString("}\n")
	case *RefineStep:
		printOpenBlockWithOutput(sb, "refine", s.Name, s.Fields, s.Output)
		sb.WriteString("\n")
	case *WeaveStep:
		srcs := make([]string, len(s.Sources))
		for i, src := range s.Sources {
			srcs[i] = printValue(src)
		}
		fmt.Fprintf(sb, "weave %s {\n  sources: [%s]\n  target: %s\n", s.Name, strings.Join(srcs, ", "), s.Target)
		for _, f := range s.Fields {
			fmt.Fprintf(sb, "  %s: %s\n", f.Name, printValue(f.Value))
		}
		if s.Output != nil {
			fmt.Fprintf(sb, "  output: %s\n", printTypeRef(s.Output))
		}
		sb.WriteString("}\n")
	case *UseToolStep:
		arg := ""
		if s.Argument != nil {
			arg = printValue(s.Argument)
		}
		fmt.Fprintf(sb, "use %s: %s(%s)", s.Name, s.ToolName, arg)
		if s.Output != nil {
			fmt.Fprintf(sb, " -> %s", printTypeRef(s.Output))
		}
		sb.WriteString("\n")
	case *RememberStep:
		fmt.Fprintf(sb, "remember %s: %s within %s\n", s.Name, printValue(s.Expr), s.Memory)
	case *RecallStep:
		fmt.Fprintf(sb, "recall %s: %s within %s", s.Name, printValue(s.Query), s.Memory)
		if s.Output != nil {
			fmt.Fprintf(sb, " -> %s", printTypeRef(s.Output))
		}
		sb.WriteString("\n")
	case *IfStep:
		sb.WriteString("if ")
		sb.WriteString(s.Name)
		sb.WriteString(" (")
		sb.WriteString(printValue(s.Condition))
		sb.WriteString(") {\n")
		printStep(sb, s.Then)
		sb.WriteString("}")
		if s.Else != nil {
			sb.WriteString(" else {\n")
			printStep(sb, s.Else)
			sb.WriteString("}")
		}
		sb.WriteString("\n")
	default:
		fmt.Fprintf(sb, "/* unknown step %T */\n", n)
	}
}

func printRun(sb *strings.Builder, d *RunStatement) {
	fmt.Fprintf(sb, "run %s(", d.FlowName)
	args := make([]string, len(d.Arguments))
	for i, a := range d.Arguments {
		args[i] = fmt.Sprintf("%s: %s", a.Name, printValue(a.Value))
	}
	sb.WriteString(strings.Join(args, ", "))
	sb.WriteString(")")
	if d.Persona != "" {
		fmt.Fprintf(sb, " as %s", d.Persona)
	}
	if d.Context != "" {
		fmt.Fprintf(sb, " within %s", d.Context)
	}
	if len(d.Anchors) > 0 {
		fmt.Fprintf(sb, " constrained_by [%s]", strings.Join(d.Anchors, ", "))
	}
	if d.OnFailure != nil {
		fmt.Fprintf(sb, " on_failure: %s", printValue(d.OnFailure.Value))
	}
	if d.OutputTo != "" {
		fmt.Fprintf(sb, " output_to: %s", d.OutputTo)
	}
	if d.Effort != "" {
		fmt.Fprintf(sb, " effort: %s", d.Effort)
	}
}
