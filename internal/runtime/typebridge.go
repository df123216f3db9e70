package runtime

import (
	"strings"

	"axon/internal/ast"
	"axon/internal/ir"
	"axon/internal/token"
	"axon/internal/types"
)

// ResolveOutputType reconstructs the SemanticType (and, for a user-defined
// nominal type, a synthetic TypeDefinition carrying its range/where/body)
// named by an IR step's "output" field. The checker already verified
// epistemic compatibility at compile time; this exists so the runtime
// validator can re-check the value-dependent facts — range, required
// fields, where clause — that only exist once a concrete value is in
// hand, without carrying the whole ast/checker symbol table into the
// executor.
func ResolveOutputType(prog *ir.Program, name string) (*types.SemanticType, *ast.TypeDefinition) {
	if name == "" {
		return nil, nil
	}
	if inner, ok := unwrap(name, "List<", ">"); ok {
		elem, def := ResolveOutputType(prog, inner)
		return types.List(elem), def
	}
	if inner, ok := unwrap(name, "Optional<", ">"); ok {
		elem, def := ResolveOutputType(prog, inner)
		return types.Optional(elem), def
	}
	if bt, ok := types.Builtins[name]; ok {
		return bt, nil
	}

	decl := findTypeDeclaration(prog, name)
	if decl == nil {
		return nil, nil
	}

	st := &types.SemanticType{Name: name, Kind: types.KindNominal}
	def := &ast.TypeDefinition{Name: name}

	if baseName, ok := decl.Fields["base"].(string); ok {
		def.BaseRef = &ast.TypeRef{Name: baseName}
	}
	if rng, ok := decl.Fields["range"].([]float64); ok && len(rng) == 2 {
		st.Range = &types.Range{Lo: rng[0], Hi: rng[1]}
		def.Range = &ast.RangeConstraint{Lo: rng[0], Hi: rng[1]}
	}
	if where, ok := decl.Fields["where"].(string); ok && where != "" {
		def.Where = ast.NewWherePredicate(token.Position{}, where)
	}
	if body, ok := decl.Fields["body"].(map[string]any); ok {
		for fieldName, raw := range body {
			spec, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			typeName, _ := spec["type"].(string)
			optional, _ := spec["optional"].(bool)
			def.Body = append(def.Body, ast.FieldSpec{
				Name:     fieldName,
				Type:     &ast.TypeRef{Name: typeName},
				Optional: optional,
			})
		}
	}

	return st, def
}

func findTypeDeclaration(prog *ir.Program, name string) *ir.Declaration {
	for i := range prog.Declarations {
		if prog.Declarations[i].Kind == "type" && prog.Declarations[i].Name == name {
			return &prog.Declarations[i]
		}
	}
	return nil
}

func unwrap(name, prefix, suffix string) (string, bool) {
	if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, suffix) {
		return name[len(prefix) : len(name)-len(suffix)], true
	}
	return "", false
}
