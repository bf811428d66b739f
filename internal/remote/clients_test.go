package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func testConfig(url string) Config {
	return Config{BaseURL: url}
}

func serveJSON(t *testing.T, path string, status int, body any) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Path != path {
			t.Errorf("path = %q, want %q", r.URL.Path, path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func closedServerURL() string {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

func TestExecutionClient_Execute(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var got ExecuteRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&got)
			_ = json.NewEncoder(w).Encode(ExecuteResponse{Success: true, Output: "4\n"})
		}))
		defer srv.Close()

		resp, err := NewExecutionClient(testConfig(srv.URL)).Execute(context.Background(), ExecuteRequest{Code: "print(4)"})
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if resp.Output != "4\n" {
			t.Errorf("Output = %q, want %q", resp.Output, "4\n")
		}
		if got.Code != "print(4)" {
			t.Errorf("request code = %q, want %q", got.Code, "print(4)")
		}
	})

	t.Run("program failure is a service error", func(t *testing.T) {
		srv, _ := serveJSON(t, PathExecute, http.StatusOK, ExecuteResponse{Success: false, Output: "1\n", Error: "NameError: x"})

		resp, err := NewExecutionClient(testConfig(srv.URL)).Execute(context.Background(), ExecuteRequest{Code: "print(x)"})
		if !errors.Is(err, ErrService) {
			t.Fatalf("Execute() error = %v, want ErrService", err)
		}
		if Message(err) != "NameError: x" {
			t.Errorf("Message() = %q, want %q", Message(err), "NameError: x")
		}
		if resp == nil || resp.Output != "1\n" {
			t.Errorf("partial output should be returned, got %+v", resp)
		}
	})

	t.Run("server message surfaced verbatim", func(t *testing.T) {
		srv, _ := serveJSON(t, PathExecute, http.StatusBadRequest, map[string]any{"success": false, "message": "code too long"})

		_, err := NewExecutionClient(testConfig(srv.URL)).Execute(context.Background(), ExecuteRequest{Code: "x"})
		var re *Error
		if !errors.As(err, &re) {
			t.Fatalf("Execute() error = %v, want *Error", err)
		}
		if re.Message != "code too long" || re.Status != http.StatusBadRequest {
			t.Errorf("Error = %+v, want message 'code too long' status 400", re)
		}
	})

	t.Run("server error without message uses fallback", func(t *testing.T) {
		srv, _ := serveJSON(t, PathExecute, http.StatusInternalServerError, map[string]any{})

		_, err := NewExecutionClient(testConfig(srv.URL)).Execute(context.Background(), ExecuteRequest{Code: "x"})
		if !errors.Is(err, ErrService) || Message(err) != FallbackExecute {
			t.Errorf("Execute() error = %v, want service error with fallback", err)
		}
	})

	t.Run("transport failure", func(t *testing.T) {
		_, err := NewExecutionClient(testConfig(closedServerURL())).Execute(context.Background(), ExecuteRequest{Code: "x"})
		if !errors.Is(err, ErrTransport) {
			t.Fatalf("Execute() error = %v, want ErrTransport", err)
		}
		if Message(err) != FallbackExecute {
			t.Errorf("Message() = %q, want %q", Message(err), FallbackExecute)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>"))
		}))
		defer srv.Close()

		_, err := NewExecutionClient(testConfig(srv.URL)).Execute(context.Background(), ExecuteRequest{Code: "x"})
		if !errors.Is(err, ErrTransport) || Message(err) != FallbackUnexpected {
			t.Errorf("Execute() error = %v, want transport error with %q", err, FallbackUnexpected)
		}
	})

	t.Run("blank code fails fast", func(t *testing.T) {
		srv, calls := serveJSON(t, PathExecute, http.StatusOK, ExecuteResponse{Success: true})

		_, err := NewExecutionClient(testConfig(srv.URL)).Execute(context.Background(), ExecuteRequest{Code: "  \n"})
		if !errors.Is(err, ErrValidation) {
			t.Errorf("Execute() error = %v, want ErrValidation", err)
		}
		if atomic.LoadInt32(calls) != 0 {
			t.Errorf("calls = %d, want 0", atomic.LoadInt32(calls))
		}
	})
}

func TestExecutionClient_RetriesTransportFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			conn, _, err := w.(http.Hijacker).Hijack()
			if err != nil {
				t.Errorf("hijack: %v", err)
				return
			}
			conn.Close()
			return
		}
		_ = json.NewEncoder(w).Encode(ExecuteResponse{Success: true, Output: "ok"})
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Retry = true
	resp, err := NewExecutionClient(cfg).Execute(context.Background(), ExecuteRequest{Code: "print('ok')"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp.Output != "ok" {
		t.Errorf("Output = %q, want ok", resp.Output)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestHintClient_GenerateHint(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var got HintRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&got)
			_ = json.NewEncoder(w).Encode(HintResponse{Success: true, Hint: "Try a loop"})
		}))
		defer srv.Close()

		req := HintRequest{TemplateCode: "t", CurrentCode: "c", Question: "q"}
		resp, err := NewHintClient(testConfig(srv.URL)).GenerateHint(context.Background(), req)
		if err != nil {
			t.Fatalf("GenerateHint() error = %v", err)
		}
		if resp.Hint != "Try a loop" {
			t.Errorf("Hint = %q, want %q", resp.Hint, "Try a loop")
		}
		if got != req {
			t.Errorf("request = %+v, want %+v", got, req)
		}
	})

	t.Run("unsuccessful reply", func(t *testing.T) {
		srv, _ := serveJSON(t, PathHint, http.StatusOK, HintResponse{Success: false})
		_, err := NewHintClient(testConfig(srv.URL)).GenerateHint(context.Background(), HintRequest{CurrentCode: "x"})
		if !errors.Is(err, ErrService) || Message(err) != FallbackHint {
			t.Errorf("GenerateHint() error = %v, want service error %q", err, FallbackHint)
		}
	})

	t.Run("empty request is still sent", func(t *testing.T) {
		srv, calls := serveJSON(t, PathHint, http.StatusOK, HintResponse{Success: true, Hint: "Start with a loop"})
		resp, err := NewHintClient(testConfig(srv.URL)).GenerateHint(context.Background(), HintRequest{})
		if err != nil {
			t.Fatalf("GenerateHint() error = %v", err)
		}
		if resp.Hint != "Start with a loop" || atomic.LoadInt32(calls) != 1 {
			t.Errorf("hint = %q, calls = %d", resp.Hint, atomic.LoadInt32(calls))
		}
	})

	t.Run("transport failure", func(t *testing.T) {
		_, err := NewHintClient(testConfig(closedServerURL())).GenerateHint(context.Background(), HintRequest{CurrentCode: "x"})
		if !errors.Is(err, ErrTransport) || Message(err) != FallbackHint {
			t.Errorf("GenerateHint() error = %v, want transport error %q", err, FallbackHint)
		}
	})
}

func TestSubmissionClient_SubmitAnswer(t *testing.T) {
	valid := SubmitRequest{ExerciseID: "mcq-1", SelectedAnswer: "Paris", CorrectAnswer: "Paris", Username: "abc"}

	t.Run("success", func(t *testing.T) {
		var got SubmitRequest
		var auth string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth = r.Header.Get("Authorization")
			_ = json.NewDecoder(r.Body).Decode(&got)
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(SubmitResponse{Success: true, Message: "ok", SubmissionID: "s-1"})
		}))
		defer srv.Close()

		cfg := testConfig(srv.URL)
		cfg.Token = "tok"
		resp, err := NewSubmissionClient(cfg).SubmitAnswer(context.Background(), valid)
		if err != nil {
			t.Fatalf("SubmitAnswer() error = %v", err)
		}
		if resp.SubmissionID != "s-1" {
			t.Errorf("SubmissionID = %q, want s-1", resp.SubmissionID)
		}
		if got != valid {
			t.Errorf("request = %+v, want %+v", got, valid)
		}
		if auth != "Bearer tok" {
			t.Errorf("Authorization = %q, want %q", auth, "Bearer tok")
		}
	})

	t.Run("validation", func(t *testing.T) {
		tests := []struct {
			name string
			req  SubmitRequest
		}{
			{"no id", SubmitRequest{SelectedAnswer: "a", Username: "u"}},
			{"no selection", SubmitRequest{ExerciseID: "mcq-1", Username: "u"}},
			{"no correct answer", SubmitRequest{ExerciseID: "mcq-1", SelectedAnswer: "a", Username: "u"}},
			{"no username", SubmitRequest{ExerciseID: "mcq-1", SelectedAnswer: "a"}},
		}
		srv, calls := serveJSON(t, PathSubmit, http.StatusOK, SubmitResponse{Success: true})
		client := NewSubmissionClient(testConfig(srv.URL))
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := client.SubmitAnswer(context.Background(), tt.req)
				if !errors.Is(err, ErrValidation) {
					t.Errorf("SubmitAnswer() error = %v, want ErrValidation", err)
				}
			})
		}
		if atomic.LoadInt32(calls) != 0 {
			t.Errorf("calls = %d, want 0", atomic.LoadInt32(calls))
		}
	})

	t.Run("transport failure is not retried", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			conn, _, _ := w.(http.Hijacker).Hijack()
			conn.Close()
		}))
		defer srv.Close()

		cfg := testConfig(srv.URL)
		cfg.Retry = true
		_, err := NewSubmissionClient(cfg).SubmitAnswer(context.Background(), valid)
		if !errors.Is(err, ErrTransport) || Message(err) != FallbackSubmit {
			t.Errorf("SubmitAnswer() error = %v, want transport error %q", err, FallbackSubmit)
		}
		if got := atomic.LoadInt32(&calls); got != 1 {
			t.Errorf("calls = %d, want 1", got)
		}
	})
}

func TestMessage(t *testing.T) {
	if got := Message(errors.New("boom")); got != FallbackUnexpected {
		t.Errorf("Message() = %q, want %q", got, FallbackUnexpected)
	}
	err := &Error{Kind: ErrService, Message: "nope"}
	if got := Message(err); got != "nope" {
		t.Errorf("Message() = %q, want nope", got)
	}
	if !errors.Is(err, ErrService) || errors.Is(err, ErrTransport) {
		t.Error("Error should match only its own kind")
	}
}
