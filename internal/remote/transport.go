package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"
)

const maxResponseBytes = 4 << 20

// Config configures one client.
type Config struct {
	// BaseURL of the service (default: http://localhost:4000)
	BaseURL string

	// Timeout bounds one HTTP attempt (default: 60s)
	Timeout time.Duration

	// Token is sent as a bearer token when set.
	Token string

	// Retry re-sends idempotent calls after transport failures.
	Retry bool

	// RetryAttempts caps attempts when Retry is on (default: 3)
	RetryAttempts int

	// CircuitBreaker stops calling a service that keeps failing at the transport level.
	CircuitBreaker bool

	// HTTPClient overrides the default client.
	HTTPClient *http.Client

	// Logger for transport events (default: slog.Default())
	Logger *slog.Logger
}

// DefaultConfig returns the settings used by the CLI and the MCP server.
func DefaultConfig() Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		Timeout:        60 * time.Second,
		Retry:          true,
		RetryAttempts:  3,
		CircuitBreaker: true,
	}
}

// reply is a raw HTTP answer. Any answer, whatever its status, is a reply;
// only a missing answer is a transport error.
type reply struct {
	status int
	body   []byte
}

type transport struct {
	baseURL string
	token   string
	client  *http.Client
	breaker circuitbreaker.CircuitBreaker[*reply]
	retrier retry.Retry[*reply]
	logger  *slog.Logger
}

func newTransport(name string, cfg Config) *transport {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	t := &transport{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		client:  cfg.HTTPClient,
		logger:  logger.With("client", name),
	}
	if t.client == nil {
		t.client = newHTTPClient(cfg.Timeout)
	}

	if cfg.CircuitBreaker {
		t.breaker = circuitbreaker.New[*reply](circuitbreaker.Config{
			MaxRequests: 1,
			Interval:    30 * time.Second,
			Timeout:     15 * time.Second,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(from, to circuitbreaker.State) {
				t.logger.Warn("circuit breaker state change",
					"from", from.String(),
					"to", to.String())
			},
		})
	}

	if cfg.Retry {
		attempts := cfg.RetryAttempts
		if attempts <= 0 {
			attempts = 3
		}
		t.retrier = retry.New[*reply](retry.Config{
			MaxAttempts:   attempts,
			InitialDelay:  200 * time.Millisecond,
			MaxDelay:      2 * time.Second,
			Multiplier:    2.0,
			BackoffPolicy: retry.BackoffExponential,
			Jitter:        true,
			IsRetryable: func(err error) bool {
				return err != nil && !errors.Is(err, context.Canceled)
			},
		})
	}

	return t
}

func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 5,
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// call posts in as JSON and decodes a 2xx answer into out. Failures come back
// as *Error: ErrTransport when no usable answer arrived, ErrService when the
// service answered with a non-2xx status.
func (t *transport) call(ctx context.Context, op, path string, in, out any, fallback string, idempotent bool) error {
	body, err := json.Marshal(in)
	if err != nil {
		return &Error{Kind: ErrTransport, Op: op, Message: FallbackUnexpected, Err: fmt.Errorf("marshal request: %w", err)}
	}

	r, err := t.send(ctx, path, body, idempotent)
	if err != nil {
		t.logger.Warn("remote call failed", "op", op, "path", path, "error", err)
		return &Error{Kind: ErrTransport, Op: op, Message: fallback, Err: err}
	}

	if r.status < 200 || r.status >= 300 {
		var failure struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		_ = json.Unmarshal(r.body, &failure)
		msg := failure.Message
		if msg == "" {
			msg = failure.Error
		}
		if msg == "" {
			msg = fallback
		}
		t.logger.Debug("remote service error", "op", op, "status", r.status, "message", msg)
		return &Error{Kind: ErrService, Op: op, Status: r.status, Message: msg}
	}

	if err := json.Unmarshal(r.body, out); err != nil {
		return &Error{Kind: ErrTransport, Op: op, Status: r.status, Message: FallbackUnexpected, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (t *transport) send(ctx context.Context, path string, body []byte, idempotent bool) (*reply, error) {
	operation := func(ctx context.Context) (*reply, error) {
		return t.do(ctx, path, body)
	}

	if idempotent && t.retrier != nil {
		once := operation
		operation = func(ctx context.Context) (*reply, error) {
			return t.retrier.Do(ctx, once)
		}
	}

	if t.breaker != nil {
		return t.breaker.Execute(ctx, operation)
	}
	return operation(ctx)
}

func (t *transport) do(ctx context.Context, path string, body []byte) (*reply, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return &reply{status: resp.StatusCode, body: data}, nil
}
