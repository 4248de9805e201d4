package llm

import (
	"context"
	"errors"
)

// Client sends one prompt to a generative model and returns its raw answer.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, prompt string) (string, error)

// Complete calls f.
func (f ClientFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// ErrNotConfigured is returned by the placeholder client.
var ErrNotConfigured = errors.New("no model provider configured")

// Placeholder stands in when no provider credentials are available.
type Placeholder struct{}

// Complete always fails permanently.
func (Placeholder) Complete(context.Context, string) (string, error) {
	return "", Permanent("not_configured", ErrNotConfigured)
}

type runIDKey struct{}

// WithRunID tags ctx with the pipeline run ID for provider logs.
func WithRunID(ctx context.Context, runID string) context.Context {
	if ctx == nil || runID == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext returns the run ID set by WithRunID.
func RunIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(runIDKey{}).(string); ok {
		return id
	}
	return ""
}
