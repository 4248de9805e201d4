package llm

import (
	"context"
	"strings"
	"time"

	"bloodwork-backend/internal/shared/metrics"
	"bloodwork-backend/internal/shared/telemetry"
)

// DefaultRetryDelay is the pause before the single retry.
const DefaultRetryDelay = 300 * time.Millisecond

type retrying struct {
	base  Client
	delay time.Duration
}

// WithRetry retries a transient failure exactly once after delay. A second
// transient failure is reported as permanent "retry_exhausted". Every error
// returned is an *InvocationError and a blank answer is "empty_response".
func WithRetry(base Client, delay time.Duration) Client {
	if base == nil {
		return nil
	}
	if delay < 0 {
		delay = 0
	}
	return retrying{base: base, delay: delay}
}

func (r retrying) Complete(ctx context.Context, prompt string) (string, error) {
	out, err := r.attempt(ctx, prompt)
	if err == nil || !IsTransient(err) {
		return out, err
	}

	metrics.IncLLMRetry()
	telemetry.Warn("llm.retry", map[string]any{
		"run_id":   RunIDFromContext(ctx),
		"attempt":  1,
		"delay_ms": r.delay.Milliseconds(),
		"error":    err.Error(),
	})

	timer := time.NewTimer(r.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return "", Permanent("retry_aborted", ctx.Err())
	}

	out, err = r.attempt(ctx, prompt)
	if err != nil && IsTransient(err) {
		return "", Permanent("retry_exhausted", err)
	}
	return out, err
}

func (r retrying) attempt(ctx context.Context, prompt string) (string, error) {
	out, err := r.base.Complete(ctx, prompt)
	if err != nil {
		return "", Classify(err)
	}
	if strings.TrimSpace(out) == "" {
		return "", Permanent("empty_response", nil)
	}
	return out, nil
}
