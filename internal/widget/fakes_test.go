package widget

import (
	"context"
	"sync"

	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/remote"
)

type fakeSubmitter struct {
	mu      sync.Mutex
	calls   []remote.SubmitRequest
	err     error
	block   chan struct{}
	started chan struct{}
}

func (f *fakeSubmitter) SubmitAnswer(ctx context.Context, req remote.SubmitRequest) (*remote.SubmitResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	err, block, started := f.err, f.block, f.started
	f.mu.Unlock()

	if started != nil {
		close(started)
	}
	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	return &remote.SubmitResponse{Success: true, Message: "Answer submitted successfully", SubmissionID: "sub-1"}, nil
}

func (f *fakeSubmitter) Calls() []remote.SubmitRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]remote.SubmitRequest(nil), f.calls...)
}

type fakeExecutor struct {
	mu      sync.Mutex
	calls   []string
	resp    *remote.ExecuteResponse
	err     error
	block   chan struct{}
	started chan struct{}
}

func (f *fakeExecutor) Execute(ctx context.Context, req remote.ExecuteRequest) (*remote.ExecuteResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.Code)
	resp, err, block, started := f.resp, f.err, f.block, f.started
	f.mu.Unlock()

	if started != nil {
		close(started)
	}
	if block != nil {
		<-block
	}
	return resp, err
}

func (f *fakeExecutor) set(resp *remote.ExecuteResponse, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resp, f.err = resp, err
}

func (f *fakeExecutor) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeHints answers "hint for <code>". Calls whose code matches slow block
// until release is closed.
type fakeHints struct {
	mu      sync.Mutex
	calls   []remote.HintRequest
	err     error
	slow    string
	release chan struct{}
}

func (f *fakeHints) GenerateHint(ctx context.Context, req remote.HintRequest) (*remote.HintResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	err, slow, release := f.err, f.slow, f.release
	f.mu.Unlock()

	if release != nil && req.CurrentCode == slow {
		<-release
	}
	if err != nil {
		return nil, err
	}
	return &remote.HintResponse{Success: true, Hint: "hint for " + req.CurrentCode}, nil
}

func (f *fakeHints) Calls() []remote.HintRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]remote.HintRequest(nil), f.calls...)
}
