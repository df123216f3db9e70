package runtime_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"axon/internal/ast"
	"axon/internal/ir"
	"axon/internal/lexer"
	"axon/internal/parser"
	"axon/internal/runtime"
)

func compile(t *testing.T, src string) (*ast.Program, *ir.Program) {
	t.Helper()
	toks, err := lexer.Lex(src)
	require.NoError(t, err)
	astProg, err := parser.Parse(toks)
	require.NoError(t, err)
	irProg, err := ir.Generate(astProg)
	require.NoError(t, err)
	return astProg, irProg
}

// bindContext mirrors what a future `axon run` command does: the bound
// persona/context/anchors come from the AST declarations named by the IR's
// entrypoint, not from the IR itself (only output-type resolution needs
// the IR's generic declaration records).
func bindContext(astProg *ast.Program, irProg *ir.Program) *runtime.RuntimeContext {
	var persona *runtime.Persona
	var ctx *runtime.Context
	var anchors []*runtime.Anchor
	for _, decl := range astProg.Declarations {
		switch d := decl.(type) {
		case *ast.PersonaDefinition:
			if d.Name == irProg.Entrypoint.Persona {
				persona = runtime.BindPersona(d)
			}
		case *ast.ContextDefinition:
			if d.Name == irProg.Entrypoint.Context {
				ctx = runtime.BindContext(d)
			}
		case *ast.AnchorDefinition:
			for _, name := range irProg.Entrypoint.Anchors {
				if d.Name == name {
					anchors = append(anchors, runtime.BindAnchor(d))
				}
			}
		}
	}
	return runtime.NewRuntimeContext(persona, ctx, runtime.NewAnchorSet(anchors))
}

func toolConfigFor(prog *ir.Program, name string) map[string]any {
	for _, d := range prog.Declarations {
		if d.Kind == "tool" && d.Name == name {
			return d.Fields
		}
	}
	return nil
}

func newTrace() *runtime.Trace {
	return runtime.NewTrace("trace-test", "F", "", "2026-01-01T00:00:00Z")
}

func TestExecutorRunMinimalFlow(t *testing.T) {
	astProg, irProg := compile(t, `
persona P { domain: "support" }
flow F() {
  reason Draft { prompt: "hi", output: String }
}
run F() as P
`)
	model := runtime.NewStubModelClient()
	model.Responses["hi"] = "hello world"

	exec := runtime.NewExecutor(model, runtime.NewRegistry(), runtime.NewInMemoryBackend(), runtime.ExecutorConfig{})
	rc := bindContext(astProg, irProg)
	trace := newTrace()

	out, err := exec.Run(context.Background(), irProg, rc, trace)
	require.NoError(t, err)
	require.Equal(t, "hello world", out)

	var kinds []runtime.EventKind
	for _, e := range trace.Events {
		kinds = append(kinds, e.Kind)
	}
	require.Contains(t, kinds, runtime.EventFlowStart)
	require.Contains(t, kinds, runtime.EventValidationPass)
	require.Contains(t, kinds, runtime.EventFlowEnd)
}

// scriptedModelClient returns a fixed sequence of outputs by call order,
// regardless of the request content — used to drive a refine step through
// a reject-then-accept attempt sequence.
type scriptedModelClient struct {
	outputs []string
	calls   int
}

func (m *scriptedModelClient) Complete(ctx context.Context, req runtime.CompletionRequest) (*runtime.CompletionResponse, error) {
	idx := m.calls
	if idx >= len(m.outputs) {
		idx = len(m.outputs) - 1
	}
	m.calls++
	return &runtime.CompletionResponse{Output: m.outputs[idx]}, nil
}

func TestExecutorRefineRetriesUntilInRange(t *testing.T) {
	astProg, irProg := compile(t, `
type Score Int (0..100)
flow F() {
  refine Guess {
    prompt: "guess"
    output: Score
    max_attempts: 2
    pass_failure_context: true
  }
}
run F()
`)
	model := &scriptedModelClient{outputs: []string{"150", "42"}}
	exec := runtime.NewExecutor(model, runtime.NewRegistry(), runtime.NewInMemoryBackend(), runtime.ExecutorConfig{})
	rc := bindContext(astProg, irProg)
	trace := newTrace()

	out, err := exec.Run(context.Background(), irProg, rc, trace)
	require.NoError(t, err)
	require.Equal(t, 2, model.calls)
	require.Equal(t, float64(42), out)

	var retries, rejects int
	for _, e := range trace.Events {
		switch e.Kind {
		case runtime.EventRetry:
			retries++
		case runtime.EventRefineAttempt:
			rejects++
		}
	}
	require.Equal(t, 1, retries)
	require.Equal(t, 1, rejects)
}

func TestExecutorAnchorBreachRaisesAxon003(t *testing.T) {
	astProg, irProg := compile(t, `
anchor Strict { require: needs_citation, on_violation: raise MissingCitation }
flow F() {
  reason Draft { prompt: "hi", output: String }
}
run F() constrained_by [Strict]
`)
	model := runtime.NewStubModelClient()
	model.Responses["hi"] = "hello world"

	exec := runtime.NewExecutor(model, runtime.NewRegistry(), runtime.NewInMemoryBackend(), runtime.ExecutorConfig{})
	rc := bindContext(astProg, irProg)
	trace := newTrace()

	_, err := exec.Run(context.Background(), irProg, rc, trace)
	require.Error(t, err)
	axonErr, ok := err.(*runtime.Error)
	require.True(t, ok)
	require.Equal(t, runtime.CodeAnchorBreach, axonErr.Code)
}

func TestExecutorToolTimeoutRaisesAxon006(t *testing.T) {
	astProg, irProg := compile(t, `
tool Searcher { provider: "web", timeout: 10ms }
flow F() {
  use Fetch: Searcher("hello")
}
run F()
`)
	registry := runtime.NewRegistry()
	config := toolConfigFor(irProg, "Searcher")
	registry.Register("Searcher", config, runtime.ModeStub, &runtime.StubTool{
		Value: "result",
		Delay: 50 * time.Millisecond,
	})

	exec := runtime.NewExecutor(runtime.NewStubModelClient(), registry, runtime.NewInMemoryBackend(), runtime.ExecutorConfig{})
	rc := bindContext(astProg, irProg)
	trace := newTrace()

	_, err := exec.Run(context.Background(), irProg, rc, trace)
	require.Error(t, err)
	axonErr, ok := err.(*runtime.Error)
	require.True(t, ok)
	require.Equal(t, runtime.CodeTimeout, axonErr.Code)
}

func TestExecutorIfStepSkipsNonTakenBranch(t *testing.T) {
	astProg, irProg := compile(t, `
flow F() {
  reason Draft { prompt: "draft", output: String }
  if Gate (Draft.output) {
    reason Then { prompt: "then-branch", output: String }
  } else {
    reason Else { prompt: "else-branch", output: String }
  }
}
run F()
`)
	model := runtime.NewStubModelClient()
	model.Responses["draft"] = "yes"
	model.Responses["then-branch"] = "THEN-OUTPUT"
	model.Responses["else-branch"] = "ELSE-OUTPUT"

	exec := runtime.NewExecutor(model, runtime.NewRegistry(), runtime.NewInMemoryBackend(), runtime.ExecutorConfig{})
	rc := bindContext(astProg, irProg)
	trace := newTrace()

	out, err := exec.Run(context.Background(), irProg, rc, trace)
	require.NoError(t, err)
	require.Equal(t, "THEN-OUTPUT", out)

	var elseID, thenID string
	for _, s := range irProg.Flows[0].Steps {
		switch s.Name {
		case "Else":
			elseID = s.ID
		case "Then":
			thenID = s.ID
		}
	}
	require.NotContains(t, trace.Steps, elseID)
	require.Contains(t, trace.Steps, thenID)
}

func TestExecutorRememberRecallRoundTrip(t *testing.T) {
	astProg, irProg := compile(t, `
memory Notes { backend: "memory" }
flow F() {
  remember Save: "the invoice total is 42" within Notes
  recall Fetch: "invoice" within Notes
}
run F()
`)
	exec := runtime.NewExecutor(runtime.NewStubModelClient(), runtime.NewRegistry(), runtime.NewInMemoryBackend(), runtime.ExecutorConfig{})
	rc := bindContext(astProg, irProg)
	trace := newTrace()

	out, err := exec.Run(context.Background(), irProg, rc, trace)
	require.NoError(t, err)
	require.Contains(t, out, "the invoice total is 42")
}
