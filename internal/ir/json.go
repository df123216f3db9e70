package ir

import "encoding/json"

// Marshal renders a Program as indented JSON. Struct fields marshal in
// their declared order and map[string]any keys are sorted by
// encoding/json itself, so two generations from identical source (which
// share deterministic step/program ids, see stepID) produce byte-identical
// output — the IR's "idempotent" property.
func Marshal(prog *Program) ([]byte, error) {
	return json.MarshalIndent(prog, "", "  ")
}

// Unmarshal parses IR JSON (as written by Marshal) back into a Program.
// The axon commands do not call it: `axon run` compiles from source.
func Unmarshal(data []byte) (*Program, error) {
	var prog Program
	if err := json.Unmarshal(data, &prog); err != nil {
		return nil, err
	}
	return &prog, nil
}
