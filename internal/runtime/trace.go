package runtime

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/invopop/jsonschema"
)

// EventKind is one of the 14 trace event kinds (§3 "Trace event").
type EventKind string

const (
	EventFlowStart      EventKind = "FLOW_START"
	EventFlowEnd        EventKind = "FLOW_END"
	EventStepStart      EventKind = "STEP_START"
	EventStepEnd        EventKind = "STEP_END"
	EventAnchorCheck    EventKind = "ANCHOR_CHECK"
	EventAnchorPass     EventKind = "ANCHOR_PASS"
	EventAnchorBreach   EventKind = "ANCHOR_BREACH"
	EventToolCallStart  EventKind = "TOOL_CALL_START"
	EventToolCallEnd    EventKind = "TOOL_CALL_END"
	EventValidationPass EventKind = "VALIDATION_PASS"
	EventValidationFail EventKind = "VALIDATION_FAIL"
	EventRefineAttempt  EventKind = "REFINE_ATTEMPT"
	EventRetry          EventKind = "RETRY"
	EventFatalError     EventKind = "FATAL_ERROR"
)

// Event is one append-only trace record (§3, §6.3). ParentSpan nests
// flow -> step -> retry attempt -> tool call, per §4.5's closing
// sentence.
type Event struct {
	Kind       EventKind `json:"kind"`
	Timestamp  string    `json:"timestamp"` // ISO-8601, stamped by the caller
	ParentSpan string    `json:"parent_span,omitempty"`
	StepID     string    `json:"step_id,omitempty"`
	Payload    any       `json:"payload,omitempty"`
}

// StepRecord is the per-step summary §4.10/§6.3 require in the trace.
type StepRecord struct {
	StepID           string   `json:"step_id"`
	InputTypes       []string `json:"input_types,omitempty"`
	OutputType       string   `json:"output_type,omitempty"`
	Confidence       *float64 `json:"confidence,omitempty"`
	AnchorsChecked   []string `json:"anchors_checked,omitempty"`
	AnchorViolations []string `json:"anchor_violations,omitempty"`
	TokensUsed       int      `json:"tokens_used"`
	ReasoningTrace   string   `json:"reasoning_trace,omitempty"`
	Status           string   `json:"status"`
}

// Trace is the append-only span tree for one execution (§3, §6.3): a
// header plus an ordered event log and per-step summaries.
type Trace struct {
	TraceID     string                 `json:"trace_id"`
	Program     string                 `json:"program"`
	Persona     string                 `json:"persona,omitempty"`
	StartedAt   string                 `json:"started_at"`
	CompletedAt string                 `json:"completed_at,omitempty"`
	Events      []Event                `json:"events"`
	Steps       map[string]*StepRecord `json:"steps"`
}

// NewTrace opens a trace for one execution. traceID is caller-supplied so
// the core never reaches for a non-deterministic id generator on its own
// (callers typically derive one from uuid.NewSHA1 the same way the IR
// generator does, or uuid.New() outside of test contexts).
func NewTrace(traceID, program, persona, startedAt string) *Trace {
	return &Trace{
		TraceID:   traceID,
		Program:   program,
		Persona:   persona,
		StartedAt: startedAt,
		Steps:     map[string]*StepRecord{},
	}
}

// Append records one event on the span tree.
func (t *Trace) Append(e Event) {
	t.Events = append(t.Events, e)
}

// Finish records the step-level summary for a completed step, keyed by
// step id. Subsequent calls with the same step id overwrite (a retried
// step's final summary wins).
func (t *Trace) Finish(rec *StepRecord) {
	t.Steps[rec.StepID] = rec
}

// Close stamps the trace's completion time. Traces are append-only
// during an execution and finalized on completion (§6.3).
func (t *Trace) Close(completedAt string) {
	t.CompletedAt = completedAt
}

// traceIDNamespace mirrors the IR generator's deterministic-uuid
// approach: a trace id derived from the program id plus a caller-
// supplied run nonce, so repeated test runs against the same fixture
// produce comparable (not merely unique) ids.
var traceIDNamespace = uuid.MustParse("f3f1fd8f-9c6f-4f53-9a4c-3d62e6cfa7a3")

// DeriveTraceID builds a stable trace id from a program id and a caller
// nonce (e.g. a request id, or a fixed string in tests).
func DeriveTraceID(programID, nonce string) string {
	return uuid.NewSHA1(traceIDNamespace, []byte(programID+"/"+nonce)).String()
}

// TraceJSONSchema reflects Trace's static shape into a JSON Schema
// document, the same way the pack's own schema-export helper reflects
// its runbook struct: this is a fixed Go type, so reflection fits here
// even though BuildOutputSchema's dynamic semantic types need their own
// hand-assembled schema documents instead.
func TraceJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = false

	s := r.Reflect(&Trace{})
	s.ID = "https://axon.dev/schemas/trace-v1.json"
	s.Title = "AXON execution trace"
	s.Description = "JSON Schema for an AXON runtime trace (§6.3)"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal trace schema: %w", err)
	}
	return data, nil
}
