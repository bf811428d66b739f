package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

type mockProvider struct {
	name  string
	calls atomic.Int32
	fail  []error
	reply string
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	n := int(m.calls.Add(1))
	if n <= len(m.fail) {
		return nil, m.fail[n-1]
	}
	return &Response{Content: m.reply}, nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Default(); !errors.Is(err, ErrNoDefaultProvider) {
		t.Errorf("Default() on empty registry error = %v, want ErrNoDefaultProvider", err)
	}

	r.Register("openai", &mockProvider{name: "openai"})
	r.Register("claude", &mockProvider{name: "claude"})

	p, err := r.Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if p.Name() != "claude" {
		t.Errorf("auto default = %s, want claude (first by name)", p.Name())
	}

	if err := r.SetDefault("openai"); err != nil {
		t.Fatalf("SetDefault() error = %v", err)
	}
	if p, _ := r.Default(); p.Name() != "openai" {
		t.Errorf("Default() = %s, want openai", p.Name())
	}
	if err := r.SetDefault("missing"); !errors.Is(err, ErrProviderNotFound) {
		t.Errorf("SetDefault(missing) error = %v, want ErrProviderNotFound", err)
	}
	if _, err := r.Get("missing"); !errors.Is(err, ErrProviderNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrProviderNotFound", err)
	}

	got := r.List()
	if len(got) != 2 || got[0] != "claude" || got[1] != "openai" {
		t.Errorf("List() = %v, want [claude openai]", got)
	}
}

func TestClaudeProvider_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "key" {
			t.Errorf("x-api-key = %q", r.Header.Get("x-api-key"))
		}
		var in claudeRequest
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in.System != "be brief" || len(in.Messages) != 1 || in.Model != "m" {
			t.Errorf("request = %+v", in)
		}
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"Try "},{"type":"text","text":"a loop"}],"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":4}}`))
	}))
	defer srv.Close()

	p := NewClaudeProvider(ClaudeConfig{APIKey: "key", BaseURL: srv.URL, Model: "m"})
	resp, err := p.Generate(context.Background(), &Request{
		System:   "be brief",
		Messages: []Message{{Role: RoleUser, Content: "help"}},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Content != "Try a loop" || resp.Usage.OutputTokens != 4 {
		t.Errorf("Generate() = %+v", resp)
	}
}

func TestOpenAIProvider_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		var in openaiRequest
		_ = json.NewDecoder(r.Body).Decode(&in)
		if len(in.Messages) != 2 || in.Messages[0].Role != "system" {
			t.Errorf("messages = %+v, want system first", in.Messages)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Check the range"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "key", BaseURL: srv.URL})
	resp, err := p.Generate(context.Background(), &Request{
		System:   "sys",
		Messages: []Message{{Role: RoleUser, Content: "help"}},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Content != "Check the range" {
		t.Errorf("Content = %q", resp.Content)
	}
}

func TestOpenAIProvider_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIProvider(OpenAIConfig{BaseURL: srv.URL}).Generate(context.Background(), &Request{})
	if !errors.Is(err, ErrEmptyCompletion) {
		t.Errorf("Generate() error = %v, want ErrEmptyCompletion", err)
	}
}

func TestOllamaProvider_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var in ollamaRequest
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in.Stream {
			t.Error("stream should be off")
		}
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"Look at line 2"},"eval_count":5}`))
	}))
	defer srv.Close()

	resp, err := NewOllamaProvider(OllamaConfig{BaseURL: srv.URL}).Generate(context.Background(), &Request{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Content != "Look at line 2" || resp.FinishReason != "stop" {
		t.Errorf("Generate() = %+v", resp)
	}
}

func TestProvider_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("overloaded"))
	}))
	defer srv.Close()

	_, err := NewClaudeProvider(ClaudeConfig{BaseURL: srv.URL}).Generate(context.Background(), &Request{})
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("Generate() error = %v, want *StatusError", err)
	}
	if se.Status != http.StatusServiceUnavailable || se.Body != "overloaded" {
		t.Errorf("StatusError = %+v", se)
	}
	if !IsRetryable(err) {
		t.Error("503 should be retryable")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", &StatusError{Status: 429}, true},
		{"bad gateway", &StatusError{Status: 502}, true},
		{"unauthorized", &StatusError{Status: 401}, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRetryable(tc.err); got != tc.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestResilientProvider_RetriesTransientFailures(t *testing.T) {
	inner := &mockProvider{
		name:  "mock",
		fail:  []error{&StatusError{Status: 503}},
		reply: "ok",
	}
	cfg := DefaultResilientConfig()
	cfg.RetryDelay = 10 * time.Millisecond
	p := NewResilientProvider(inner, cfg)
	defer p.Close()

	resp, err := p.Generate(context.Background(), &Request{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("Content = %q", resp.Content)
	}
	if got := inner.calls.Load(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestResilientProvider_DoesNotRetryClientErrors(t *testing.T) {
	inner := &mockProvider{name: "mock", fail: []error{&StatusError{Status: 400}}}
	p := NewResilientProvider(inner, ResilientConfig{EnableRetry: true, RetryDelay: time.Millisecond})

	if _, err := p.Generate(context.Background(), &Request{}); err == nil {
		t.Fatal("Generate() should fail")
	}
	if got := inner.calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestResilientProvider_RateLimit(t *testing.T) {
	inner := &mockProvider{name: "mock", reply: "ok"}
	p := NewResilientProvider(inner, ResilientConfig{EnableRateLimit: true, RatePerSecond: 1})
	defer p.Close()

	var limited bool
	for i := 0; i < 5; i++ {
		if _, err := p.Generate(context.Background(), &Request{}); errors.Is(err, ErrRateLimited) {
			limited = true
			break
		}
	}
	if !limited {
		t.Error("expected the rate limiter to reject a burst of five calls at 1/s")
	}
}

func TestRegistry_Close(t *testing.T) {
	r := NewRegistry()
	r.Register("plain", &mockProvider{name: "plain"})
	r.Register("guarded", NewResilientProvider(&mockProvider{name: "g"}, DefaultResilientConfig()))
	if err := r.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
