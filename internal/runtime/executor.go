package runtime

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"axon/internal/ast"
	"axon/internal/ir"
	"axon/internal/logging"
	"axon/internal/types"
)

// ExecutorConfig bounds the collaborators and defaults an Executor uses
// when a step's own fields don't override them.
type ExecutorConfig struct {
	DefaultTimeout time.Duration
	MaxTokens      int
}

// Executor walks one flow's step DAG against its bound collaborators,
// running the five-phase sequence for every step: pre-execution anchor
// gate, execute, post-execution anchor gate, semantic validation, failure
// routing (§4.5).
type Executor struct {
	Model     ModelClient
	Tools     *Registry
	Memory    MemoryBackend
	Validator *Validator
	cfg       ExecutorConfig
}

// NewExecutor builds an Executor bound to its three collaborators.
func NewExecutor(model ModelClient, tools *Registry, memory MemoryBackend, cfg ExecutorConfig) *Executor {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 30 * time.Second
	}
	return &Executor{Model: model, Tools: tools, Memory: memory, Validator: NewValidator(), cfg: cfg}
}

// Run executes prog's entrypoint flow once, returning the entrypoint's
// bound output (Entrypoint.OutputTo, or the last step's output if unset);
// the run's events are appended to the caller's trace. rc must already carry the bound
// persona/context/anchors (see BindPersona/BindContext/NewAnchorSet).
func (e *Executor) Run(ctx context.Context, prog *ir.Program, rc *RuntimeContext, trace *Trace) (any, error) {
	flow := findFlow(prog, prog.Entrypoint.Flow)
	if flow == nil {
		return nil, newError(CodeRuntime, prog.Entrypoint.Flow, "entrypoint names an undeclared flow")
	}

	nameToID := map[string]string{}
	for _, s := range flow.Steps {
		nameToID[s.Name] = s.ID
	}

	trace.Append(Event{Kind: EventFlowStart, StepID: flow.Name})

	skip := map[string]bool{}
	var last any

	for _, step := range flow.Steps {
		if skip[step.ID] {
			continue
		}

		trace.Append(Event{Kind: EventStepStart, StepID: step.ID})
		out, outType, err := e.executeStep(ctx, prog, flow.Name, step, rc, nameToID, skip, trace)
		if err != nil {
			trace.Append(Event{Kind: EventFatalError, StepID: step.ID, Payload: err.Error()})
			trace.Finish(&StepRecord{StepID: step.ID, Status: "failed"})
			trace.Append(Event{Kind: EventFlowEnd, StepID: flow.Name})
			return nil, err
		}
		if step.Kind == "if" {
			// An if-step produces no output of its own; it only decides
			// which of its tagged branch steps run.
			trace.Append(Event{Kind: EventStepEnd, StepID: step.ID})
			continue
		}

		rc.RecordOutput(step.ID, out)
		last = out
		trace.Append(Event{Kind: EventStepEnd, StepID: step.ID})
		trace.Finish(&StepRecord{StepID: step.ID, OutputType: outType, Status: string(StatePassed)})
	}

	trace.Append(Event{Kind: EventFlowEnd, StepID: flow.Name})

	if prog.Entrypoint.OutputTo != "" {
		if id, ok := nameToID[prog.Entrypoint.OutputTo]; ok {
			if v, ok := rc.Outputs[id]; ok {
				return v, nil
			}
		}
		return nil, newError(CodeRuntime, prog.Entrypoint.OutputTo, "output_to names a step with no recorded output")
	}
	return last, nil
}

func toolConfig(prog *ir.Program, name string) map[string]any {
	for _, d := range prog.Declarations {
		if d.Kind == "tool" && d.Name == name {
			return d.Fields
		}
	}
	return nil
}

func findFlow(prog *ir.Program, name string) *ir.Flow {
	for i := range prog.Flows {
		if prog.Flows[i].Name == name {
			return &prog.Flows[i]
		}
	}
	return nil
}

// executeStep dispatches a single step kind and runs the anchor/validate
// sequence around it. It returns the step's output value and rendered
// output-type string (empty for steps with no declared output).
func (e *Executor) executeStep(ctx context.Context, prog *ir.Program, flowName string, step ir.Step, rc *RuntimeContext, nameToID map[string]string, skip map[string]bool, trace *Trace) (any, string, error) {
	log := logging.Get(logging.CategoryExec)

	if step.Kind == "if" {
		cond := truthy(e.resolve(step.Config["condition"], rc, nameToID))
		branch := "else"
		if cond {
			branch = "then"
		}
		for _, other := range stepsOf(prog, flowName) {
			if other.ID == step.ID {
				continue
			}
			if dependsOn(other, step.ID) {
				if tag, _ := other.Config["branch"].(string); tag != "" && tag != branch {
					skip[other.ID] = true
				}
			}
		}
		return nil, "", nil
	}

	inputTags := inputTagsOf(step, rc)
	if violator, err := rc.Anchors.CheckPre(step.Name, inputTags); err != nil {
		trace.Append(Event{Kind: EventAnchorBreach, StepID: step.ID, Payload: violator.Name})
		return e.routeFailure(step.Name, violator, err, trace)
	}
	trace.Append(Event{Kind: EventAnchorCheck, StepID: step.ID})

	outputName, _ := step.Config["output"].(string)
	semType, typeDef := ResolveOutputType(prog, outputName)

	// run produces the step's decoded value (already coerced to semType's
	// shape when the model/tool layer only hands back text), not the raw
	// backend response: validation below always sees a typed candidate.
	var run func(ctx context.Context, prior *PriorAttempt) (any, *float64, int, error)

	switch step.Kind {
	case "step", "reason":
		run = func(ctx context.Context, prior *PriorAttempt) (any, *float64, int, error) {
			text, confidence, tokens, err := e.runReason(ctx, step, rc, nameToID, prior)
			return decodeOutput(text, semType), confidence, tokens, err
		}
	case "probe":
		run = func(ctx context.Context, prior *PriorAttempt) (any, *float64, int, error) {
			return e.runProbe(ctx, step, rc, nameToID)
		}
	case "weave":
		run = func(ctx context.Context, prior *PriorAttempt) (any, *float64, int, error) {
			text, confidence, tokens, err := e.runWeave(ctx, step, rc, nameToID)
			return decodeOutput(text, semType), confidence, tokens, err
		}
	case "use_tool":
		run = func(ctx context.Context, prior *PriorAttempt) (any, *float64, int, error) {
			return e.runUseTool(ctx, prog, step, rc, nameToID)
		}
	case "remember":
		return e.runRemember(ctx, step, rc, nameToID)
	case "recall":
		out, conf, tokens, err := e.runRecall(ctx, step, rc, nameToID)
		return e.finishWithValidation(step, rc, trace, log, semType, typeDef, outputName, out, conf, tokens, err)
	case "validate":
		return e.runValidate(ctx, step, rc, nameToID)
	case "refine":
		run = func(ctx context.Context, prior *PriorAttempt) (any, *float64, int, error) {
			text, confidence, tokens, err := e.runReason(ctx, step, rc, nameToID, prior)
			return decodeOutput(text, semType), confidence, tokens, err
		}
	default:
		return nil, "", newError(CodeRuntime, step.Name, "unknown step kind %q", step.Kind)
	}

	if step.Kind == "refine" {
		return e.runRefine(ctx, step, rc, trace, log, semType, typeDef, outputName, run)
	}

	value, confidence, tokens, err := run(ctx, nil)
	if err != nil {
		return e.routeRuntimeFailure(step.Name, err, trace)
	}
	return e.finishWithValidation(step, rc, trace, log, semType, typeDef, outputName, value, confidence, tokens, nil)
}

// decodeOutput coerces a model's raw text response into the shape its
// declared output type expects: a numeric string for a refined numeric
// type, a bare claim wrapped in a {"text": ...} envelope for an epistemic
// type, and everything else passed through unchanged (structural
// validation against a permissive schema then simply accepts it).
func decodeOutput(raw string, t *types.SemanticType) any {
	if t == nil {
		return raw
	}
	switch t.Kind {
	case types.KindEpistemic:
		return map[string]any{"text": raw}
	case types.KindNominal:
		if f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			return f
		}
		return raw
	default:
		switch t.Name {
		case "Int", "Float":
			if f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
				return f
			}
		case "Bool":
			if b, err := strconv.ParseBool(strings.TrimSpace(raw)); err == nil {
				return b
			}
		}
		return raw
	}
}

// finishWithValidation runs the post-execution anchor gate and semantic
// validation for a step that already produced a value, and records the
// per-step trace summary on success.
func (e *Executor) finishWithValidation(step ir.Step, rc *RuntimeContext, trace *Trace, log *zap.Logger, semType any, typeDef any, outputName string, value any, confidence *float64, tokens int, priorErr error) (any, string, error) {
	if priorErr != nil {
		return e.routeRuntimeFailure(step.Name, priorErr, trace)
	}

	resolved := rc.ResolveConfidence(confidence)
	rendered := renderText(value)
	if violator, err := rc.Anchors.CheckPost(step.Name, rendered, resolved); err != nil {
		trace.Append(Event{Kind: EventAnchorBreach, StepID: step.ID, Payload: violator.Name})
		return e.routeFailure(step.Name, violator, err, trace)
	}

	if t, def, ok := castSemType(semType, typeDef); ok {
		if err := e.Validator.ValidateStructured(step.Name, value, t, def); err != nil {
			trace.Append(Event{Kind: EventValidationFail, StepID: step.ID, Payload: err.Error()})
			return nil, "", err
		}
	}
	if err := e.Validator.ValidateConfidence(step.Name, confidence, rc.ConfidenceFloor()); err != nil {
		trace.Append(Event{Kind: EventValidationFail, StepID: step.ID, Payload: err.Error()})
		return nil, "", err
	}
	trace.Append(Event{Kind: EventValidationPass, StepID: step.ID})

	log.Debug("step passed", zap.String("step", step.Name), zap.String("kind", step.Kind))
	return value, outputName, nil
}

func castSemType(semType any, typeDef any) (*types.SemanticType, *ast.TypeDefinition, bool) {
	t, ok1 := semType.(*types.SemanticType)
	d, _ := typeDef.(*ast.TypeDefinition)
	return t, d, ok1 && t != nil
}

// routeFailure applies an anchor's own on_violation strategy (§4.8): warn
// and log are non-fatal (the step's value, if any, still commits); raise
// and escalate surface as errors; fallback substitutes a safe value.
func (e *Executor) routeFailure(step string, anchor *Anchor, err error, trace *Trace) (any, string, error) {
	switch anchor.OnViolation.Kind {
	case ViolationWarn, ViolationLog:
		trace.Append(Event{Kind: EventAnchorPass, StepID: step, Payload: "tolerated: " + err.Error()})
		return nil, "", nil
	case ViolationFallback:
		return anchor.OnViolation.Value, "", nil
	default:
		return nil, "", err
	}
}

// routeRuntimeFailure wraps a model/tool-layer error with the failing
// step id before it propagates, per §7.
func (e *Executor) routeRuntimeFailure(step string, err error, trace *Trace) (any, string, error) {
	if _, ok := err.(*Error); ok {
		return nil, "", err
	}
	return nil, "", RuntimeError(step, err)
}

// runRefine drives the refine retry state machine (§4.7), validating each
// attempt's output and feeding a validation failure back as the next
// attempt's rejection reason.
func (e *Executor) runRefine(ctx context.Context, step ir.Step, rc *RuntimeContext, trace *Trace, log *zap.Logger, semType any, typeDef any, outputName string, run func(ctx context.Context, prior *PriorAttempt) (any, *float64, int, error)) (any, string, error) {
	maxAttempts := 3
	if v, ok := step.Config["max_attempts"].(string); ok {
		if n, err := strconv.Atoi(v); err == nil {
			maxAttempts = n
		}
	}
	backoffSpelling, _ := step.Config["backoff"].(string)
	passFailCtx, _ := step.Config["pass_failure_context"].(bool)

	refiner := NewRefiner(RefineConfig{
		MaxAttempts: maxAttempts,
		Backoff:     ParseBackoff(backoffSpelling),
		PassFailCtx: passFailCtx,
	})

	var lastConfidence *float64
	var lastTokens int
	var lastValue any

	// retry.go's Attempt is fixed at func(ctx, prior) (string, error); the
	// decoded value is captured in lastValue and only its rendered form
	// crosses that boundary, for PriorAttempt.Output bookkeeping.
	attempt := func(ctx context.Context, prior *PriorAttempt) (string, error) {
		if prior != nil {
			trace.Append(Event{Kind: EventRetry, StepID: step.ID})
		}
		value, confidence, tokens, err := run(ctx, prior)
		if err != nil {
			return "", err
		}
		lastConfidence, lastTokens, lastValue = confidence, tokens, value
		rendered := renderText(value)

		t, def, ok := castSemType(semType, typeDef)
		if ok {
			if err := e.Validator.ValidateStructured(step.Name, value, t, def); err != nil {
				trace.Append(Event{Kind: EventRefineAttempt, StepID: step.ID, Payload: err.Error()})
				return rendered, err
			}
		}
		if err := e.Validator.ValidateConfidence(step.Name, confidence, rc.ConfidenceFloor()); err != nil {
			trace.Append(Event{Kind: EventRefineAttempt, StepID: step.ID, Payload: err.Error()})
			return rendered, err
		}
		return rendered, nil
	}

	_, err := refiner.Run(ctx, step.Name, attempt)
	if err != nil {
		trace.Append(Event{Kind: EventValidationFail, StepID: step.ID, Payload: err.Error()})
		return nil, "", err
	}

	resolved := rc.ResolveConfidence(lastConfidence)
	if violator, vErr := rc.Anchors.CheckPost(step.Name, renderText(lastValue), resolved); vErr != nil {
		return e.routeFailure(step.Name, violator, vErr, trace)
	}
	trace.Append(Event{Kind: EventValidationPass, StepID: step.ID})
	log.Debug("refine step committed", zap.String("step", step.Name), zap.Int("tokens", lastTokens))
	return lastValue, outputName, nil
}

// runReason calls the model client for a step/reason/refine step, folding
// the step's own fields into the user content and injecting the prior
// attempt's rejection context on a refine retry (§4.7).
func (e *Executor) runReason(ctx context.Context, step ir.Step, rc *RuntimeContext, nameToID map[string]string, prior *PriorAttempt) (string, *float64, int, error) {
	req := CompletionRequest{
		System:       renderSystem(rc),
		User:         renderUser(step, rc, nameToID),
		MaxTokens:    e.resolveMaxTokens(rc),
		PriorAttempt: prior,
	}
	resp, err := e.Model.Complete(ctx, req)
	if err != nil {
		return "", nil, 0, err
	}
	return resp.Output, resp.Confidence, resp.TokensUsed, nil
}

// runProbe inspects a target value's named fields (§4.2): no model call,
// pure structural projection of whatever the target resolves to. The
// projected map is returned as-is (not flattened to text) so a probe
// feeding a typed output still validates against its declared shape.
func (e *Executor) runProbe(ctx context.Context, step ir.Step, rc *RuntimeContext, nameToID map[string]string) (any, *float64, int, error) {
	target := e.resolve(step.Config["target"], rc, nameToID)
	fieldNames, _ := step.Config["fields"].([]string)
	if len(fieldNames) == 0 {
		return target, nil, 0, nil
	}
	m, ok := target.(map[string]any)
	if !ok {
		return nil, nil, 0, ValidationError(step.Name, "probe target has no structured fields to project")
	}
	out := make(map[string]any, len(fieldNames))
	for _, f := range fieldNames {
		out[f] = m[f]
	}
	return out, nil, 0, nil
}

// runWeave combines several source values into one structured output by
// merging their rendered text into the user content. The step's other
// fields and its target are not sent to the model.
func (e *Executor) runWeave(ctx context.Context, step ir.Step, rc *RuntimeContext, nameToID map[string]string) (string, *float64, int, error) {
	sources, _ := step.Config["sources"].([]any)
	parts := make([]string, 0, len(sources))
	for _, s := range sources {
		parts = append(parts, renderText(e.resolve(s, rc, nameToID)))
	}
	req := CompletionRequest{
		System:    renderSystem(rc),
		User:      strings.Join(parts, "\n---\n"),
		MaxTokens: e.resolveMaxTokens(rc),
	}
	resp, err := e.Model.Complete(ctx, req)
	if err != nil {
		return "", nil, 0, err
	}
	return resp.Output, resp.Confidence, resp.TokensUsed, nil
}

// runUseTool invokes a registered tool with the step's argument, enforcing
// the declared timeout (§4.9). The tool's config comes from its own `tool`
// declaration, not the use-site: a `use` expression only names the tool
// and supplies the call argument.
func (e *Executor) runUseTool(ctx context.Context, prog *ir.Program, step ir.Step, rc *RuntimeContext, nameToID map[string]string) (any, *float64, int, error) {
	toolName, _ := step.Config["tool"].(string)
	argument := e.resolve(step.Config["argument"], rc, nameToID)
	config := toolConfig(prog, toolName)

	timeout := e.cfg.DefaultTimeout
	if v, ok := config["timeout"].(string); ok {
		if d, err := time.ParseDuration(v); err == nil {
			timeout = d
		}
	}

	res, err := e.Tools.Invoke(ctx, step.Name, toolName, config, argument, timeout)
	if err != nil {
		return nil, nil, 0, err
	}
	if !res.OK {
		return nil, nil, 0, RuntimeError(step.Name, res.Err)
	}
	return res.Value, nil, 0, nil
}

// runRemember commits a value to a memory backend (§5: atomic step).
func (e *Executor) runRemember(ctx context.Context, step ir.Step, rc *RuntimeContext, nameToID map[string]string) (any, string, error) {
	memory, _ := step.Config["memory"].(string)
	value := e.resolve(step.Config["expr"], rc, nameToID)
	if err := e.Memory.Remember(ctx, memory, value); err != nil {
		return nil, "", RuntimeError(step.Name, err)
	}
	return value, "", nil
}

// runRecall fetches matching values from a memory backend.
func (e *Executor) runRecall(ctx context.Context, step ir.Step, rc *RuntimeContext, nameToID map[string]string) (string, *float64, int, error) {
	memory, _ := step.Config["memory"].(string)
	query := renderText(e.resolve(step.Config["query"], rc, nameToID))
	values, err := e.Memory.Recall(ctx, memory, query)
	if err != nil {
		return "", nil, 0, err
	}
	return renderText(values), nil, 0, nil
}

// runValidate evaluates a standalone `validate` step's expression against
// the current context (§4.3): a boolean structural check, not a model
// call. A false result is reported as a ValidationError naming the step.
func (e *Executor) runValidate(ctx context.Context, step ir.Step, rc *RuntimeContext, nameToID map[string]string) (any, string, error) {
	value := e.resolve(step.Config["expr"], rc, nameToID)
	ok, isBool := value.(bool)
	if !isBool {
		ok = truthy(value)
	}
	if !ok {
		return nil, "", ValidationError(step.Name, "validate expression evaluated to false")
	}
	return value, "", nil
}

func (e *Executor) resolveMaxTokens(rc *RuntimeContext) int {
	if rc.Context != nil && rc.Context.MaxTokens > 0 {
		return rc.Context.MaxTokens
	}
	return e.cfg.MaxTokens
}

// resolve dereferences a {"ref": "Step.field"} value against the flow's
// recorded step outputs (`Step.output` is the step's whole output; any
// other field is looked up in a map-shaped output), leaving any other JSON-shaped config value
// (string/number/list/map literal) untouched. Nested lists/maps are
// walked recursively so a ref buried inside a composite literal still
// resolves.
func (e *Executor) resolve(v any, rc *RuntimeContext, nameToID map[string]string) any {
	return resolveNested(v, rc, nameToID)
}

func resolveNested(v any, rc *RuntimeContext, nameToID map[string]string) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = resolveNested(e, rc, nameToID)
		}
		return out
	case map[string]any:
		if ref, ok := t["ref"].(string); ok && len(t) == 1 {
			parts := strings.SplitN(ref, ".", 2)
			id, ok := nameToID[parts[0]]
			if !ok {
				return nil
			}
			out, ok := rc.Outputs[id]
			if !ok {
				return nil
			}
			if len(parts) == 1 || parts[1] == "output" {
				return out
			}
			fields, ok := out.(map[string]any)
			if !ok {
				return nil
			}
			return fields[parts[1]]
		}
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = resolveNested(e, rc, nameToID)
		}
		return out
	default:
		return v
	}
}

func renderSystem(rc *RuntimeContext) string {
	var b strings.Builder
	if rc.Persona != nil {
		fmt.Fprintf(&b, "persona: %s (tone=%s, domain=%v)\n", rc.Persona.Name, rc.Persona.Tone, rc.Persona.Domain)
		if rc.Persona.Description != "" {
			b.WriteString(rc.Persona.Description + "\n")
		}
	}
	if rc.Context != nil {
		fmt.Fprintf(&b, "context: depth=%s language=%s\n", rc.Context.Depth, rc.Context.Language)
	}
	return b.String()
}

func renderUser(step ir.Step, rc *RuntimeContext, nameToID map[string]string) string {
	if prompt, ok := step.Config["prompt"]; ok {
		return renderText(resolveNested(prompt, rc, nameToID))
	}
	var parts []string
	for k, v := range step.Config {
		if k == "output" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", k, renderText(resolveNested(v, rc, nameToID))))
	}
	return strings.Join(parts, "\n")
}

func renderText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = renderText(e)
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprintf("%v", t)
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != "" && t != "false"
	default:
		return true
	}
}

func stepsOf(prog *ir.Program, flowName string) []ir.Step {
	f := findFlow(prog, flowName)
	if f == nil {
		return nil
	}
	return f.Steps
}

func dependsOn(s ir.Step, id string) bool {
	for _, d := range s.DependsOn {
		if d == id {
			return true
		}
	}
	return false
}

// inputTagsOf derives the set of tags a pre-execution anchor gate checks
// (§4.8 `requires`): the step's own config keys. Names of prior steps it
// reads from via a ref are not included.
func inputTagsOf(step ir.Step, rc *RuntimeContext) map[string]bool {
	tags := map[string]bool{}
	for k := range step.Config {
		tags[k] = true
	}
	return tags
}
