package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/ratelimit"
	"github.com/felixgeelhaar/fortify/retry"
)

// ErrRateLimited is returned when the local rate limit rejects a call.
var ErrRateLimited = errors.New("rate limit exceeded")

// ResilientProvider guards a provider with fortify: rate limit, circuit
// breaker, retry and bulkhead, applied in that order from the outside in.
type ResilientProvider struct {
	provider Provider
	breaker  circuitbreaker.CircuitBreaker[*Response]
	retrier  retry.Retry[*Response]
	bulkhead bulkhead.Bulkhead[*Response]
	limiter  ratelimit.RateLimiter
	logger   *slog.Logger
}

// ResilientConfig selects which guards are active.
type ResilientConfig struct {
	EnableCircuitBreaker bool
	EnableRetry          bool
	EnableBulkhead       bool
	EnableRateLimit      bool

	// MaxConcurrent for bulkhead (default: 4)
	MaxConcurrent int

	// RatePerSecond for rate limiting (default: 5)
	RatePerSecond int

	// RetryDelay is the first backoff (default: 1s)
	RetryDelay time.Duration

	Logger *slog.Logger
}

// DefaultResilientConfig enables every guard. Hint requests are short and
// bursty, so the rate limit is looser than the bulkhead.
func DefaultResilientConfig() ResilientConfig {
	return ResilientConfig{
		EnableCircuitBreaker: true,
		EnableRetry:          true,
		EnableBulkhead:       true,
		EnableRateLimit:      true,
		MaxConcurrent:        4,
		RatePerSecond:        5,
		RetryDelay:           time.Second,
	}
}

// NewResilientProvider wraps provider.
func NewResilientProvider(provider Provider, cfg ResilientConfig) *ResilientProvider {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rp := &ResilientProvider{
		provider: provider,
		logger:   logger.With("provider", provider.Name()),
	}

	if cfg.EnableCircuitBreaker {
		rp.breaker = circuitbreaker.New[*Response](circuitbreaker.Config{
			MaxRequests: 1,
			Interval:    30 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(from, to circuitbreaker.State) {
				rp.logger.Warn("circuit breaker state change",
					"from", from.String(),
					"to", to.String())
			},
		})
	}

	if cfg.EnableRetry {
		delay := cfg.RetryDelay
		if delay <= 0 {
			delay = time.Second
		}
		rp.retrier = retry.New[*Response](retry.Config{
			MaxAttempts:   3,
			InitialDelay:  delay,
			MaxDelay:      10 * time.Second,
			Multiplier:    2.0,
			BackoffPolicy: retry.BackoffExponential,
			Jitter:        true,
			IsRetryable:   IsRetryable,
		})
	}

	if cfg.EnableBulkhead {
		maxConcurrent := cfg.MaxConcurrent
		if maxConcurrent <= 0 {
			maxConcurrent = 4
		}
		rp.bulkhead = bulkhead.New[*Response](bulkhead.Config{
			MaxConcurrent: maxConcurrent,
			MaxQueue:      maxConcurrent * 4,
			QueueTimeout:  15 * time.Second,
		})
	}

	if cfg.EnableRateLimit {
		rate := cfg.RatePerSecond
		if rate <= 0 {
			rate = 5
		}
		rp.limiter = ratelimit.New(&ratelimit.Config{
			Rate:     rate,
			Burst:    rate * 2,
			Interval: time.Second,
		})
	}

	return rp
}

func (p *ResilientProvider) Name() string {
	return p.provider.Name()
}

func (p *ResilientProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	if p.limiter != nil && !p.limiter.Allow(ctx, p.provider.Name()) {
		return nil, fmt.Errorf("%w for provider %s", ErrRateLimited, p.provider.Name())
	}

	call := func(ctx context.Context) (*Response, error) {
		return p.provider.Generate(ctx, req)
	}
	if p.bulkhead != nil {
		inner := call
		call = func(ctx context.Context) (*Response, error) {
			return p.bulkhead.Execute(ctx, inner)
		}
	}
	if p.retrier != nil {
		inner := call
		call = func(ctx context.Context) (*Response, error) {
			return p.retrier.Do(ctx, inner)
		}
	}
	if p.breaker != nil {
		return p.breaker.Execute(ctx, call)
	}
	return call(ctx)
}

// Close releases the rate limiter.
func (p *ResilientProvider) Close() error {
	if p.limiter != nil {
		return p.limiter.Close()
	}
	return nil
}

// IsRetryable reports throttling, 5xx answers and network timeouts.
func IsRetryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		switch se.Status {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
