package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"testing"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		kind   Kind
		reason string
	}{
		{name: "deadline", err: fmt.Errorf("post: %w", context.DeadlineExceeded), kind: KindTransient, reason: "timeout"},
		{name: "canceled", err: context.Canceled, kind: KindPermanent, reason: "canceled"},
		{name: "net timeout", err: &net.OpError{Op: "read", Err: timeoutErr{}}, kind: KindTransient, reason: "timeout"},
		{name: "eof", err: fmt.Errorf("read body: %w", io.ErrUnexpectedEOF), kind: KindTransient, reason: "transport"},
		{name: "reset", err: fmt.Errorf("write: %w", syscall.ECONNRESET), kind: KindTransient, reason: "transport"},
		{name: "reset text", err: errors.New("read tcp: connection reset by peer"), kind: KindTransient, reason: "transport"},
		{name: "other", err: errors.New("json: cannot unmarshal"), kind: KindPermanent, reason: "unclassified"},
		{name: "passthrough", err: Permanent("empty_response", nil), kind: KindPermanent, reason: "empty_response"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			var inv *InvocationError
			if !errors.As(Classify(tt.err), &inv) {
				t.Fatalf("expected InvocationError")
			}
			if inv.Kind != tt.kind || inv.Reason != tt.reason {
				t.Fatalf("got %s/%s, want %s/%s", inv.Kind, inv.Reason, tt.kind, tt.reason)
			}
		})
	}

	if Classify(nil) != nil {
		t.Fatalf("nil should stay nil")
	}
}

func TestFromHTTPStatus(t *testing.T) {
	transient := []int{http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable}
	permanent := []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity}

	for _, code := range transient {
		if err := FromHTTPStatus(code, nil); err.Kind != KindTransient {
			t.Fatalf("status %d should be transient", code)
		}
	}
	for _, code := range permanent {
		if err := FromHTTPStatus(code, nil); err.Kind != KindPermanent {
			t.Fatalf("status %d should be permanent", code)
		}
	}
	if got := FromHTTPStatus(429, nil).Reason; got != "http_429" {
		t.Fatalf("unexpected reason %q", got)
	}
}

func TestInvocationErrorUnwraps(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("invoke: %w", Transient("transport", cause))
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable")
	}
	if !IsTransient(err) {
		t.Fatalf("expected transient")
	}
	if IsTransient(cause) {
		t.Fatalf("plain errors are not transient")
	}
}

func TestPlaceholderIsPermanent(t *testing.T) {
	_, err := Placeholder{}.Complete(context.Background(), "p")
	var inv *InvocationError
	if !errors.As(err, &inv) || inv.Kind != KindPermanent || !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("unexpected placeholder error %v", err)
	}
}
