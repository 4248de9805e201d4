package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// Kind separates failures worth one retry from those that are not.
type Kind string

const (
	KindTransient Kind = "transient"
	KindPermanent Kind = "permanent"
)

// InvocationError is the only error type a Client surfaces to the pipeline.
type InvocationError struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *InvocationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("model invocation failed (%s): %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("model invocation failed (%s): %s: %v", e.Kind, e.Reason, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// Transient builds a retryable failure.
func Transient(reason string, err error) *InvocationError {
	return &InvocationError{Kind: KindTransient, Reason: reason, Err: err}
}

// Permanent builds a non-retryable failure.
func Permanent(reason string, err error) *InvocationError {
	return &InvocationError{Kind: KindPermanent, Reason: reason, Err: err}
}

// IsTransient reports whether err carries a transient InvocationError.
func IsTransient(err error) bool {
	var inv *InvocationError
	return errors.As(err, &inv) && inv.Kind == KindTransient
}

// FromHTTPStatus classifies a non-2xx provider response.
func FromHTTPStatus(status int, err error) *InvocationError {
	reason := fmt.Sprintf("http_%d", status)
	switch {
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests, status >= 500:
		return Transient(reason, err)
	default:
		return Permanent(reason, err)
	}
}

// Classify maps a transport-level error onto an InvocationError. Errors that
// already are InvocationErrors pass through unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var inv *InvocationError
	if errors.As(err, &inv) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return Permanent("canceled", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Transient("timeout", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return Transient("timeout", err)
		}
		return Transient("transport", err)
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EPIPE) {
		return Transient("transport", err)
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection closed") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "tls handshake timeout") ||
		strings.Contains(msg, "client.timeout") {
		return Transient("transport", err)
	}
	return Permanent("unclassified", err)
}
