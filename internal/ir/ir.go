// Package ir defines AXON's intermediate representation: a JSON-serializable
// step-DAG produced from a checked Program. The IR is the executor's sole
// input — it carries no reference back to the AST.
package ir

// AxonIRVersion is the on-disk schema version stamped into every generated
// Program. Bump it whenever the JSON shape changes incompatibly.
const AxonIRVersion = "1.0"

// Program is the root IR document: the full set of declarations (personas,
// contexts, anchors, memories, tools, types) flattened to generic records,
// the compiled flows, and the single entrypoint naming which flow the
// executor runs first.
type Program struct {
	AxonIRVersion string       `json:"axon_ir_version"`
	ProgramID     string       `json:"program_id"`
	Declarations  []Declaration `json:"declarations"`
	Flows         []Flow       `json:"flows"`
	Entrypoint    *Entrypoint  `json:"entrypoint"`
}

// Declaration is a generic, kind-tagged record for any top-level
// non-flow, non-run declaration. Fields is a plain map keyed by the
// original field name: source order is not kept, and encoding/json writes
// the keys sorted.
type Declaration struct {
	Kind   string         `json:"kind"` // "persona", "context", "anchor", "memory", "tool", "type"
	Name   string         `json:"name"`
	Fields map[string]any `json:"fields,omitempty"`
}

// Flow is a compiled flow: its parameter/return shape plus a step-DAG.
type Flow struct {
	Name       string   `json:"name"`
	Params     []Param  `json:"params,omitempty"`
	ReturnType string   `json:"return_type,omitempty"`
	Steps      []Step   `json:"steps"`
}

// Param is one flow parameter's name and rendered type.
type Param struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Step is one DAG node: a stable UUID, its AXON step kind, the step's
// source name, the UUIDs of steps it depends on (derived from FieldAccess
// references to prior step outputs), and its kind-specific configuration
// as a generic map.
type Step struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	Name      string         `json:"name"`
	DependsOn []string       `json:"depends_on,omitempty"`
	Config    map[string]any `json:"config,omitempty"`
}

// Entrypoint is the IR's sole entry point, compiled from the program's
// (single) RunStatement.
type Entrypoint struct {
	Flow      string         `json:"flow"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Persona   string         `json:"persona,omitempty"`
	Context   string         `json:"context,omitempty"`
	Anchors   []string       `json:"anchors,omitempty"`
	OnFailure any            `json:"on_failure,omitempty"`
	OutputTo  string         `json:"output_to,omitempty"`
	Effort    string         `json:"effort,omitempty"`
}
