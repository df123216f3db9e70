package runtime_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"axon/internal/runtime"
)

func TestTraceAppendAndFinish(t *testing.T) {
	tr := runtime.NewTrace("trace-1", "prog-1", "Analyst", "2026-01-01T00:00:00Z")
	tr.Append(runtime.Event{Kind: runtime.EventFlowStart, Timestamp: "2026-01-01T00:00:00Z"})
	tr.Append(runtime.Event{Kind: runtime.EventStepStart, Timestamp: "2026-01-01T00:00:01Z", StepID: "step1"})

	confidence := 0.8
	tr.Finish(&runtime.StepRecord{
		StepID:     "step1",
		OutputType: "FactualClaim",
		Confidence: &confidence,
		Status:     string(runtime.StatePassed),
	})
	tr.Close("2026-01-01T00:00:02Z")

	require.Len(t, tr.Events, 2)
	require.Equal(t, "passed", tr.Steps["step1"].Status)
	require.Equal(t, "2026-01-01T00:00:02Z", tr.CompletedAt)
}

func TestTraceMarshalsToJSON(t *testing.T) {
	tr := runtime.NewTrace("trace-1", "prog-1", "Analyst", "2026-01-01T00:00:00Z")
	tr.Append(runtime.Event{Kind: runtime.EventFatalError, Timestamp: "2026-01-01T00:00:01Z"})

	data, err := json.Marshal(tr)
	require.NoError(t, err)
	require.Contains(t, string(data), `"trace_id":"trace-1"`)
	require.Contains(t, string(data), `"FATAL_ERROR"`)
}

func TestDeriveTraceIDIsDeterministic(t *testing.T) {
	a := runtime.DeriveTraceID("prog-1", "run-7")
	b := runtime.DeriveTraceID("prog-1", "run-7")
	require.Equal(t, a, b)

	c := runtime.DeriveTraceID("prog-1", "run-8")
	require.NotEqual(t, a, c)
}

func TestTraceJSONSchemaIsWellFormed(t *testing.T) {
	data, err := runtime.TraceJSONSchema()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Equal(t, "AXON execution trace", doc["title"])
}
