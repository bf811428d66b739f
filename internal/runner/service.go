// Package runner is the backend of the code execution service: it runs
// Python programs locally or in Docker and shapes the outcome for clients.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEmptyCode    = errors.New("code is required")
	ErrCodeTooLarge = errors.New("code is too large")
	ErrRunNotFound  = errors.New("run not found")
)

// Config holds runner configuration
type Config struct {
	Timeout      time.Duration
	MaxCodeBytes int
	MaxOutput    int
}

// DefaultConfig returns default runner configuration
func DefaultConfig() Config {
	return Config{
		Timeout:      10 * time.Second,
		MaxCodeBytes: 64 << 10,
		MaxOutput:    64 << 10,
	}
}

// Outcome is what the execution endpoint reports for one run.
type Outcome struct {
	RunID    uuid.UUID     `json:"runId"`
	Success  bool          `json:"success"`
	Output   string        `json:"output"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Service tracks and executes runs.
type Service struct {
	config   Config
	executor Executor
	logger   *slog.Logger

	mu      sync.Mutex
	running map[uuid.UUID]*runState
}

type runState struct {
	started time.Time
	cancel  context.CancelFunc
	doneCh  chan struct{}
}

// NewService creates a new runner service
func NewService(cfg Config, executor Executor, logger *slog.Logger) *Service {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxCodeBytes <= 0 {
		cfg.MaxCodeBytes = def.MaxCodeBytes
	}
	if cfg.MaxOutput <= 0 {
		cfg.MaxOutput = def.MaxOutput
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		config:   cfg,
		executor: executor,
		logger:   logger,
		running:  make(map[uuid.UUID]*runState),
	}
}

// Execute runs code under the configured timeout. Program failures are an
// unsuccessful Outcome; only input and infrastructure problems are errors.
func (s *Service) Execute(ctx context.Context, code string) (*Outcome, error) {
	if strings.TrimSpace(code) == "" {
		return nil, ErrEmptyCode
	}
	if len(code) > s.config.MaxCodeBytes {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrCodeTooLarge, len(code), s.config.MaxCodeBytes)
	}

	runID := uuid.New()
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	state := &runState{started: time.Now(), cancel: cancel, doneCh: make(chan struct{})}
	s.mu.Lock()
	s.running[runID] = state
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.running, runID)
		s.mu.Unlock()
		close(state.doneCh)
	}()

	result, err := s.executor.Run(ctx, code)
	if err != nil {
		s.logger.Error("execution failed", "run_id", runID, "error", err)
		return nil, fmt.Errorf("execute: %w", err)
	}

	out := &Outcome{
		RunID:    runID,
		Success:  result.OK(),
		Output:   truncate(result.Stdout, s.config.MaxOutput),
		Duration: result.Duration,
	}
	switch {
	case result.TimedOut:
		out.Error = fmt.Sprintf("Execution timed out after %s", s.config.Timeout)
	case result.ExitCode != 0:
		out.Error = strings.TrimSpace(truncate(result.Stderr, s.config.MaxOutput))
		if out.Error == "" {
			out.Error = fmt.Sprintf("Process exited with code %d", result.ExitCode)
		}
	}

	s.logger.Debug("execution finished",
		"run_id", runID,
		"success", out.Success,
		"exit_code", result.ExitCode,
		"duration", result.Duration)
	return out, nil
}

// Cancel cancels a running execution
func (s *Service) Cancel(runID uuid.UUID) error {
	s.mu.Lock()
	state, ok := s.running[runID]
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	state.cancel()
	return nil
}

// CancelAll cancels every run in progress. Used on shutdown.
func (s *Service) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, state := range s.running {
		state.cancel()
	}
}

// Runs returns the ids of runs in progress.
func (s *Service) Runs() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(s.running))
	for id := range s.running {
		ids = append(ids, id)
	}
	return ids
}

// Running returns the number of runs in progress.
func (s *Service) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.running)
}

// IsRunning checks if a run is currently executing
func (s *Service) IsRunning(runID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[runID]
	return ok
}

// Wait waits for a run to complete
func (s *Service) Wait(ctx context.Context, runID uuid.UUID) error {
	s.mu.Lock()
	state, ok := s.running[runID]
	s.mu.Unlock()

	if !ok {
		return nil
	}

	select {
	case <-state.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "\n... output truncated"
}
