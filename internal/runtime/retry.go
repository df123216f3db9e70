package runtime

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"axon/internal/logging"
)

// RefineState is one state of a `refine` step's retry state machine
// (§4.7): Fresh -> Attempting -> (Passed | Failed) -> Refining(n) -> ...
// -> Exhausted.
type RefineState string

const (
	StateFresh      RefineState = "fresh"
	StateAttempting RefineState = "attempting"
	StatePassed     RefineState = "passed"
	StateFailed     RefineState = "failed"
	StateRefining   RefineState = "refining"
	StateExhausted  RefineState = "exhausted"
)

// Backoff computes the delay before attempt n (1-indexed: the delay
// before the *second* attempt, since the first never waits).
type Backoff interface {
	Delay(attempt int) time.Duration
}

type noBackoff struct{}

func (noBackoff) Delay(int) time.Duration { return 0 }

type linearBackoff struct{ step time.Duration }

func (b linearBackoff) Delay(attempt int) time.Duration { return time.Duration(attempt-1) * b.step }

type exponentialBackoff struct{ base float64 }

func (b exponentialBackoff) Delay(attempt int) time.Duration {
	mult := 1.0
	for i := 1; i < attempt; i++ {
		mult *= b.base
	}
	return time.Duration(mult * float64(time.Second))
}

// ParseBackoff decodes the canonical call-like spelling the parser emits
// for a backoff value (`none`, `linear(<duration>)`, `exponential(<base>)`)
// into a Backoff. Unrecognized spellings fall back to no backoff.
func ParseBackoff(spelling string) Backoff {
	spelling = strings.TrimSpace(spelling)
	switch {
	case spelling == "" || spelling == "none":
		return noBackoff{}
	case strings.HasPrefix(spelling, "linear("):
		arg := strings.TrimSuffix(strings.TrimPrefix(spelling, "linear("), ")")
		d, err := time.ParseDuration(arg)
		if err != nil {
			return noBackoff{}
		}
		return linearBackoff{step: d}
	case strings.HasPrefix(spelling, "exponential("):
		arg := strings.TrimSuffix(strings.TrimPrefix(spelling, "exponential("), ")")
		base, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return noBackoff{}
		}
		return exponentialBackoff{base: base}
	default:
		return noBackoff{}
	}
}

// RefineConfig configures one refine step's retry loop.
type RefineConfig struct {
	MaxAttempts int
	PerAttempt  time.Duration
	Backoff     Backoff
	PassFailCtx bool // whether to inject PriorAttempt context into retries
}

// Refiner runs the Fresh -> Attempting -> (Passed|Failed) -> Refining ->
// ... -> Exhausted state machine for one `refine` step, grounded on the
// teacher's GenerateAndValidate attempt loop: a per-attempt timeout, a
// failure-context-carrying prompt on retry, and exhaustion reported as a
// typed error rather than a bare "ran out of attempts".
type Refiner struct {
	cfg RefineConfig
}

// NewRefiner builds a Refiner for one refine step's configuration.
func NewRefiner(cfg RefineConfig) *Refiner {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff == nil {
		cfg.Backoff = noBackoff{}
	}
	return &Refiner{cfg: cfg}
}

// Attempt is invoked once per retry with the prior failure recorded (nil
// on the first attempt). It returns the candidate output and, on a
// non-nil error, the reason that attempt is rejected — the error becomes
// the next attempt's PriorAttempt.WhyRejected.
type Attempt func(ctx context.Context, prior *PriorAttempt) (string, error)

// Run drives the state machine to completion: Passed (returns the
// accepted output) or Exhausted (returns RefineExhausted wrapping the
// last rejection).
func (r *Refiner) Run(ctx context.Context, step string, attempt Attempt) (string, error) {
	log := logging.Get(logging.CategoryExec)
	var prior *PriorAttempt
	var lastErr error

	for n := 1; n <= r.cfg.MaxAttempts; n++ {
		if ctx.Err() != nil {
			return "", RuntimeError(step, ctx.Err())
		}

		if n > 1 {
			delay := r.cfg.Backoff.Delay(n)
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return "", RuntimeError(step, ctx.Err())
				}
			}
		}

		out, err := r.runAttempt(ctx, attempt, prior)

		if err == nil {
			log.Debug("refine step passed", zap.String("step", step), zap.Int("attempt", n))
			return out, nil
		}

		lastErr = err
		if errors.Is(err, context.DeadlineExceeded) {
			lastErr = TimeoutError(step, err)
		}
		log.Debug("refine attempt rejected", zap.String("step", step), zap.Int("attempt", n), zap.Error(err))

		if r.cfg.PassFailCtx {
			prior = &PriorAttempt{Output: out, WhyRejected: err.Error()}
		}
	}

	return "", RefineExhausted(step, r.cfg.MaxAttempts, lastErr)
}

// runAttempt bounds one attempt call against both the per-attempt timeout
// (if configured) and the parent context, via errgroup.WithContext: the
// group's derived context cancels as soon as either the timeout fires or
// attempt returns, and eg.Wait() surfaces attempt's own error without a
// separate done-channel/select.
func (r *Refiner) runAttempt(ctx context.Context, attempt Attempt, prior *PriorAttempt) (string, error) {
	attemptCtx := ctx
	if r.cfg.PerAttempt > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, r.cfg.PerAttempt)
		defer cancel()
	}

	eg, egCtx := errgroup.WithContext(attemptCtx)
	var out string
	eg.Go(func() error {
		o, err := attempt(egCtx, prior)
		out = o
		return err
	})
	if err := eg.Wait(); err != nil {
		return out, err
	}
	return out, nil
}
