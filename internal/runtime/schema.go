package runtime

import (
	"encoding/json"
	"fmt"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"axon/internal/ast"
	"axon/internal/types"
)

// BuildOutputSchema turns a resolved SemanticType (plus its declaring
// TypeDefinition, when it is a user-defined nominal type) into a JSON
// Schema document describing the shape a model's structured output must
// conform to. AXON's semantic types are declared dynamically inside
// source files rather than as Go structs, so this walks the type
// directly instead of reflecting over a fixed Go value the way a static
// envelope type would.
func BuildOutputSchema(t *types.SemanticType, def *ast.TypeDefinition) map[string]any {
	if t == nil {
		return map[string]any{}
	}
	switch t.Kind {
	case types.KindList:
		return map[string]any{
			"type":  "array",
			"items": BuildOutputSchema(t.Elem, nil),
		}
	case types.KindOptional:
		inner := BuildOutputSchema(t.Elem, nil)
		return map[string]any{
			"anyOf": []any{inner, map[string]any{"type": "null"}},
		}
	case types.KindEpistemic:
		// Epistemic kinds are carried as an envelope object: the claim
		// text plus whatever confidence/uncertainty metadata the model
		// attaches, validated separately against the confidence floor.
		return map[string]any{
			"type":     "object",
			"required": []any{"text"},
			"properties": map[string]any{
				"text":       map[string]any{"type": "string"},
				"confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
			},
		}
	case types.KindNominal:
		if t.Range != nil {
			return map[string]any{
				"type":    "number",
				"minimum": t.Range.Lo,
				"maximum": t.Range.Hi,
			}
		}
		if def == nil || len(def.Body) == 0 {
			// A nominal type with neither a range nor a field body is a
			// bare refinement over its base type (e.g. `type X Int
			// where "..."`): its structural schema is whatever the base
			// type allows, so leave shape checking to the where clause.
			if def != nil && def.BaseRef != nil {
				return primitiveSchema(def.BaseRef.Name)
			}
			return map[string]any{}
		}
		schema := map[string]any{"type": "object"}
		props := map[string]any{}
		var required []any
		for _, f := range def.Body {
			props[f.Name] = map[string]any{}
			if !f.Optional {
				required = append(required, f.Name)
			}
		}
		schema["properties"] = props
		if len(required) > 0 {
			schema["required"] = required
		}
		return schema
	default:
		return primitiveSchema(t.Name)
	}
}

// primitiveSchema maps a built-in type name to its JSON Schema type. Names
// it doesn't recognize (including unresolved base-type references) get a
// permissive empty schema rather than a guessed type.
func primitiveSchema(name string) map[string]any {
	switch name {
	case "Int", "Float":
		return map[string]any{"type": "number"}
	case "Bool":
		return map[string]any{"type": "boolean"}
	case "String", "Duration":
		return map[string]any{"type": "string"}
	default:
		return map[string]any{}
	}
}

// CompileSchema compiles a JSON Schema document (as produced by
// BuildOutputSchema, or any other map-shaped schema) for repeated use
// against candidate documents.
func CompileSchema(id string, doc map[string]any) (*sjsonschema.Schema, error) {
	c := sjsonschema.NewCompiler()
	if err := c.AddResource(id, doc); err != nil {
		return nil, fmt.Errorf("add schema resource %q: %w", id, err)
	}
	return c.Compile(id)
}

// ValidateAgainstSchema checks value (any JSON-marshalable Go value) against
// a compiled schema, flattening santhosh-tekuri's validation errors into a
// single message suitable for a ValidationError.
func ValidateAgainstSchema(sch *sjsonschema.Schema, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal candidate value: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("unmarshal candidate value: %w", err)
	}
	if err := sch.Validate(doc); err != nil {
		if ve, ok := err.(*sjsonschema.ValidationError); ok {
			return fmt.Errorf("%s", firstCause(ve))
		}
		return err
	}
	return nil
}

func firstCause(ve *sjsonschema.ValidationError) string {
	if len(ve.Causes) > 0 {
		return firstCause(ve.Causes[0])
	}
	return fmt.Sprintf("%v at /%s", ve.ErrorKind, joinPath(ve.InstanceLocation))
}

func joinPath(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "/"
		}
		out += p
	}
	return out
}
