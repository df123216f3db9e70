package checker

import (
	"axon/internal/ast"
	"axon/internal/types"
)

// SymbolTable holds every top-level declaration collected from a Program,
// keyed by name within its own namespace (personas, contexts, anchors,
// memories, tools, and types/flows each form a separate namespace — a
// persona and a flow may share a name without conflict, but two personas
// may not).
type SymbolTable struct {
	Personas map[string]*ast.PersonaDefinition
	Contexts map[string]*ast.ContextDefinition
	Anchors  map[string]*ast.AnchorDefinition
	Memories map[string]*ast.MemoryDefinition
	Tools    map[string]*ast.ToolDefinition
	Types    map[string]*types.SemanticType
	TypeDefs map[string]*ast.TypeDefinition
	Flows    map[string]*ast.FlowDefinition
}

func newSymbolTable() *SymbolTable {
	st := &SymbolTable{
		Personas: map[string]*ast.PersonaDefinition{},
		Contexts: map[string]*ast.ContextDefinition{},
		Anchors:  map[string]*ast.AnchorDefinition{},
		Memories: map[string]*ast.MemoryDefinition{},
		Tools:    map[string]*ast.ToolDefinition{},
		Types:    map[string]*types.SemanticType{},
		TypeDefs: map[string]*ast.TypeDefinition{},
		Flows:    map[string]*ast.FlowDefinition{},
	}
	for name, t := range types.Builtins {
		st.Types[name] = t
	}
	return st
}

// ResolveTypeRef turns a parsed TypeRef into a SemanticType, looking up
// List/Optional wrapping and falling back from built-ins to user-defined
// nominal types. Returns nil if the name is unresolved; the caller emits
// UnknownType.
func (st *SymbolTable) ResolveTypeRef(ref *ast.TypeRef) *types.SemanticType {
	if ref == nil {
		return nil
	}
	switch ref.Name {
	case "List":
		if len(ref.Args) != 1 {
			return nil
		}
		elem := st.ResolveTypeRef(&ref.Args[0])
		if elem == nil {
			return nil
		}
		return types.List(elem)
	case "Optional":
		if len(ref.Args) != 1 {
			return nil
		}
		elem := st.ResolveTypeRef(&ref.Args[0])
		if elem == nil {
			return nil
		}
		return types.Optional(elem)
	default:
		return st.Types[ref.Name]
	}
}
