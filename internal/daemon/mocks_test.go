package daemon

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/document"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/hints"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/runner"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/submission"
)

var errNotImplemented = errors.New("mock: not implemented")

// mockExecutor implements runner.Executor
type mockExecutor struct {
	runFn func(ctx context.Context, code string) (*runner.Result, error)
}

func (m *mockExecutor) Run(ctx context.Context, code string) (*runner.Result, error) {
	if m.runFn != nil {
		return m.runFn(ctx, code)
	}
	return &runner.Result{Stdout: "", Duration: time.Millisecond}, nil
}

// mockHints implements hints.HintService
type mockHints struct {
	generateFn func(ctx context.Context, req hints.Request) (string, error)
}

func (m *mockHints) Generate(ctx context.Context, req hints.Request) (string, error) {
	if m.generateFn != nil {
		return m.generateFn(ctx, req)
	}
	return "", errNotImplemented
}

// mockSubmissions implements submission.SubmissionService
type mockSubmissions struct {
	submitFn func(ctx context.Context, in submission.Input) (*submission.Submission, error)
	getFn    func(ctx context.Context, id uuid.UUID) (*submission.Submission, error)
	statsFn  func(ctx context.Context, exerciseID string) (*submission.Stats, error)
}

func (m *mockSubmissions) Submit(ctx context.Context, in submission.Input) (*submission.Submission, error) {
	if m.submitFn != nil {
		return m.submitFn(ctx, in)
	}
	return nil, errNotImplemented
}

func (m *mockSubmissions) Get(ctx context.Context, id uuid.UUID) (*submission.Submission, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, errNotImplemented
}

func (m *mockSubmissions) Stats(ctx context.Context, exerciseID string) (*submission.Stats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx, exerciseID)
	}
	return nil, errNotImplemented
}

func (m *mockSubmissions) Apply(ctx context.Context, e *submission.Event) error {
	return nil
}

// memorySnapshots implements document.SnapshotStore
type memorySnapshots struct {
	mu    sync.Mutex
	snaps map[string]document.Snapshot
	saves int
	err   error
}

func newMemorySnapshots() *memorySnapshots {
	return &memorySnapshots{snaps: make(map[string]document.Snapshot)}
}

func (m *memorySnapshots) SaveSnapshot(ctx context.Context, s document.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.snaps[s.ID] = s
	m.saves++
	return nil
}

func (m *memorySnapshots) LoadSnapshot(ctx context.Context, id string) (document.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snaps[id]
	if !ok {
		return document.Snapshot{}, document.ErrSnapshotNotFound
	}
	return s, nil
}

func (m *memorySnapshots) get(id string) (document.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snaps[id]
	return s, ok
}
