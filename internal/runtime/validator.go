package runtime

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/sync/singleflight"

	"axon/internal/ast"
	"axon/internal/types"
)

// Validator enforces §4.6's semantic validation phase: structural
// conformance to a declared output type's schema, its numeric range (if
// refined), its `where` predicate (if any), and the resolved confidence
// floor for the step.
//
// A flow's steps run sequentially, but a refine step's own retry attempts
// and a caller running several flows against one Validator concurrently
// can both end up compiling the same type's schema at once; schemaGroup
// collapses those into a single compile, and schemaCache remembers the
// result for every later call.
type Validator struct {
	schemaGroup singleflight.Group
	schemaCache sync.Map // type name -> *sjsonschema.Schema
}

// NewValidator constructs a Validator. Its only state is the schema
// compilation cache described above; every check it runs is otherwise a
// pure function of the value, type, and floor passed in.
func NewValidator() *Validator { return &Validator{} }

// ValidateStructured checks a decoded structured value against t's JSON
// Schema shape (built via BuildOutputSchema) and, for refined numeric
// nominal types, its range. def is the declaring TypeDefinition, whose
// body fields and base type shape the schema and whose `where` predicate
// is evaluated; nil for built-in types.
func (v *Validator) ValidateStructured(step string, value any, t *types.SemanticType, def *ast.TypeDefinition) error {
	if t == nil {
		return nil
	}

	sch, err := v.compiledSchema(t, def)
	if err != nil {
		return ValidationError(step, "internal: compile schema for %s: %v", t.Name, err)
	}
	if err := ValidateAgainstSchema(sch, value); err != nil {
		return ValidationError(step, "output does not conform to %s: %v", t.Name, err)
	}

	if t.Range != nil {
		f, ok := asFloat(value)
		if !ok {
			return ValidationError(step, "expected numeric output for refined type %s", t.Name)
		}
		if !t.Range.Contains(f) {
			return ValidationError(step, "%v is outside declared range [%v, %v] for %s", f, t.Range.Lo, t.Range.Hi, t.Name)
		}
	}

	if def != nil && def.Where != nil {
		ok, err := v.evalWhere(def.Where.Source, value)
		if err != nil {
			return ValidationError(step, "evaluate where clause %q: %v", def.Where.Source, err)
		}
		if !ok {
			return ValidationError(step, "output fails where clause %q for %s", def.Where.Source, t.Name)
		}
	}

	return nil
}

// compiledSchema returns the compiled schema for t, compiling it at most
// once regardless of how many goroutines request it concurrently for the
// same type name.
func (v *Validator) compiledSchema(t *types.SemanticType, def *ast.TypeDefinition) (*sjsonschema.Schema, error) {
	if cached, ok := v.schemaCache.Load(t.Name); ok {
		return cached.(*sjsonschema.Schema), nil
	}
	result, err, _ := v.schemaGroup.Do(t.Name, func() (any, error) {
		doc := BuildOutputSchema(t, def)
		sch, err := CompileSchema("axon://type/"+t.Name, doc)
		if err != nil {
			return nil, err
		}
		v.schemaCache.Store(t.Name, sch)
		return sch, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*sjsonschema.Schema), nil
}

// evalWhere evaluates an admitted structural predicate (already checked
// statically by types.AdmitPredicate at compile time) against the
// candidate value's fields, using expr-lang/expr with the value's decoded
// fields as the evaluation environment.
func (v *Validator) evalWhere(source string, value any) (bool, error) {
	env, ok := value.(map[string]any)
	if !ok {
		env = map[string]any{"value": value}
	}
	out, err := expr.Eval(source, env)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("where clause did not evaluate to a boolean: %v", out)
	}
	return b, nil
}

// ValidateConfidence checks a response's reported confidence against the
// floor resolved for this step (most restrictive of persona/context/
// anchor, per §9's Open Question decision). A nil confidence is treated
// as satisfying the floor: not every backend reports one (§9).
func (v *Validator) ValidateConfidence(step string, confidence *float64, floor float64) error {
	if confidence == nil {
		return nil
	}
	if *confidence < floor {
		return ConfidenceError(step, *confidence, floor)
	}
	return nil
}

func asFloat(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
