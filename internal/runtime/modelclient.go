package runtime

import (
	"context"
	"fmt"
)

// CompletionRequest is the structured prompt a model client receives for
// one step: system instructions derived from persona + context + anchors,
// user content derived from the step's own fields, the output schema the
// response must conform to, and a max-token budget (§6.4). PriorAttempt is
// non-nil only when this call is a refine retry.
type CompletionRequest struct {
	System       string
	User         string
	OutputSchema map[string]any
	MaxTokens    int
	PriorAttempt *PriorAttempt
}

// PriorAttempt carries the "previous_attempt + why_rejected" context a
// refine retry injects into the next completion request (§4.7).
type PriorAttempt struct {
	Output      string
	WhyRejected string
}

// CompletionResponse is what a model client returns for one step.
type CompletionResponse struct {
	Output     string
	Confidence *float64 // nil if the backend supplies none (§9 Open Question)
	TokensUsed int
}

// ModelClient is the executor's sole collaborator for `reason`/`refine`
// steps. Concrete provider adapters (Anthropic/OpenAI/Gemini/local) live
// outside this core; only a deterministic stub ships here.
type ModelClient interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// StubModelClient is a deterministic ModelClient used by tests and by
// `axon run`. It never calls out to a real backend: it returns a canned
// value keyed by the request's user content, or a generic placeholder.
type StubModelClient struct {
	// Responses maps a request's user content (CompletionRequest.User,
	// e.g. a reason step's prompt) to the literal output text Complete
	// returns. Missing entries get "stub-response-for(<user content>)".
	Responses map[string]string
	// Confidence, if non-nil, is returned for every call regardless of
	// request content.
	Confidence *float64
}

// NewStubModelClient builds an empty stub client.
func NewStubModelClient() *StubModelClient {
	return &StubModelClient{Responses: map[string]string{}}
}

func (s *StubModelClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	out, ok := s.Responses[req.User]
	if !ok {
		out = fmt.Sprintf("stub-response-for(%s)", req.User)
	}
	return &CompletionResponse{Output: out, Confidence: s.Confidence}, nil
}
