package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"bloodwork-backend/internal/llm"
)

func TestIsGPT5(t *testing.T) {
	tests := []struct {
		name  string
		model string
		want  bool
	}{
		{name: "gpt5", model: "gpt-5", want: true},
		{name: "gpt5 variant", model: "gpt-5-mini", want: true},
		{name: "gpt5 uppercase", model: " GPT-5o ", want: true},
		{name: "gpt4", model: "gpt-4o", want: false},
		{name: "empty", model: "", want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := isGPT5(tt.model); got != tt.want {
				t.Fatalf("isGPT5(%q) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}

type recordedRequest struct {
	path   string
	auth   string
	body   map[string]any
	status int
}

func newServer(t *testing.T, responses []func(w http.ResponseWriter)) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var mu sync.Mutex
	var reqs []recordedRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		mu.Lock()
		idx := len(reqs)
		reqs = append(reqs, recordedRequest{path: r.URL.Path, auth: r.Header.Get("Authorization"), body: payload})
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if idx >= len(responses) {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		responses[idx](w)
	}))
	t.Cleanup(server.Close)
	return server, &reqs
}

func newTestClient(t *testing.T, baseURL, model string) *Client {
	t.Helper()
	client, err := NewClient(Config{APIKey: "test-key", Model: model, BaseURL: baseURL, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestCompleteSendsJSONModeRequest(t *testing.T) {
	server, reqs := newServer(t, []func(w http.ResponseWriter){
		func(w http.ResponseWriter) {
			_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" {\"findings\":[],\"summary\":\"ok\"} "},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`))
		},
	})

	out, err := newTestClient(t, server.URL, "gpt-4o-mini").Complete(context.Background(), "analyze this")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != `{"findings":[],"summary":"ok"}` {
		t.Fatalf("unexpected content %q", out)
	}

	got := (*reqs)[0]
	if got.path != "/chat/completions" {
		t.Fatalf("unexpected path %q", got.path)
	}
	if got.auth != "Bearer test-key" {
		t.Fatalf("unexpected auth header %q", got.auth)
	}
	if got.body["temperature"] != float64(0) {
		t.Fatalf("expected temperature 0, got %v", got.body["temperature"])
	}
	format, _ := got.body["response_format"].(map[string]any)
	if format["type"] != "json_object" {
		t.Fatalf("expected json_object response format, got %v", got.body["response_format"])
	}
	messages, _ := got.body["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("expected system and user messages, got %d", len(messages))
	}
	user, _ := messages[1].(map[string]any)
	if user["role"] != "user" || user["content"] != "analyze this" {
		t.Fatalf("unexpected user message %v", user)
	}
}

func TestCompleteOmitsTemperatureForGPT5(t *testing.T) {
	server, reqs := newServer(t, []func(w http.ResponseWriter){
		func(w http.ResponseWriter) {
			_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{}"}}]}`))
		},
	})

	if _, err := newTestClient(t, server.URL, "gpt-5-mini").Complete(context.Background(), "p"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if _, ok := (*reqs)[0].body["temperature"]; ok {
		t.Fatalf("expected temperature to be omitted for gpt-5 models")
	}
}

func TestCompleteRetriesWithoutTemperature(t *testing.T) {
	server, reqs := newServer(t, []func(w http.ResponseWriter){
		func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"Unsupported value: 'temperature' does not support 0 with this model.","type":"invalid_request_error"}}`))
		},
		func(w http.ResponseWriter) {
			_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{}"}}]}`))
		},
	})

	if _, err := newTestClient(t, server.URL, "o3-mini").Complete(context.Background(), "p"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if len(*reqs) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(*reqs))
	}
	if _, ok := (*reqs)[0].body["temperature"]; !ok {
		t.Fatalf("expected first request to include temperature")
	}
	if _, ok := (*reqs)[1].body["temperature"]; ok {
		t.Fatalf("expected retry request to omit temperature")
	}
}

func TestCompleteClassifiesFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   llm.Kind
		reason string
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{"error":{"message":"slow down","type":"rate_limit"}}`, kind: llm.KindTransient, reason: "http_429"},
		{name: "server error", status: http.StatusBadGateway, body: `bad gateway`, kind: llm.KindTransient, reason: "http_502"},
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"error":{"message":"bad key","type":"auth"}}`, kind: llm.KindPermanent, reason: "http_401"},
		{name: "empty content", status: http.StatusOK, body: `{"choices":[{"message":{"content":"   "}}]}`, kind: llm.KindPermanent, reason: "empty_response"},
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`, kind: llm.KindPermanent, reason: "malformed_response"},
		{name: "not json", status: http.StatusOK, body: `<html>`, kind: llm.KindPermanent, reason: "malformed_response"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newServer(t, []func(w http.ResponseWriter){
				func(w http.ResponseWriter) {
					w.WriteHeader(tt.status)
					_, _ = w.Write([]byte(tt.body))
				},
			})

			_, err := newTestClient(t, server.URL, "gpt-4o").Complete(context.Background(), "p")
			var inv *llm.InvocationError
			if !errors.As(err, &inv) {
				t.Fatalf("expected InvocationError, got %v", err)
			}
			if inv.Kind != tt.kind || inv.Reason != tt.reason {
				t.Fatalf("got %s/%s, want %s/%s", inv.Kind, inv.Reason, tt.kind, tt.reason)
			}
		})
	}
}

func TestCompleteTimeoutIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client, err := NewClient(Config{APIKey: "k", Model: "gpt-4o", BaseURL: server.URL, Timeout: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = client.Complete(context.Background(), "p")
	if !llm.IsTransient(err) {
		t.Fatalf("expected transient timeout, got %v", err)
	}
}

func TestNewClientValidates(t *testing.T) {
	if _, err := NewClient(Config{APIKey: "k"}); err == nil {
		t.Fatalf("expected model to be required")
	}
	if _, err := NewClient(Config{Model: "gpt-4o"}); err == nil {
		t.Fatalf("expected api key to be required")
	}
	c, err := NewClient(Config{APIKey: "k", Model: "gpt-4o", BaseURL: "https://example.test/v1/"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.url != "https://example.test/v1/chat/completions" {
		t.Fatalf("unexpected url %q", c.url)
	}
	if c.httpClient.Timeout != defaultTimeout {
		t.Fatalf("expected default timeout, got %s", c.httpClient.Timeout)
	}
}
