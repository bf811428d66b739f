package remote

import (
	"context"
	"strings"
)

// ExecutionClient talks to the code execution service.
type ExecutionClient struct {
	t *transport
}

// NewExecutionClient creates an execution client.
func NewExecutionClient(cfg Config) *ExecutionClient {
	return &ExecutionClient{t: newTransport("execute", cfg)}
}

// Execute runs req.Code. A program that ran but failed comes back with the
// response (its partial output included) and an ErrService error carrying
// the program error.
func (c *ExecutionClient) Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResponse, error) {
	const op = "execute"
	if strings.TrimSpace(req.Code) == "" {
		return nil, NewValidationError(op, "There is no code to run")
	}

	var resp ExecuteResponse
	if err := c.t.call(ctx, op, PathExecute, req, &resp, FallbackExecute, true); err != nil {
		return nil, err
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = FallbackExecute
		}
		return &resp, &Error{Kind: ErrService, Op: op, Message: msg}
	}
	return &resp, nil
}

// HintClient talks to the hint generation service.
type HintClient struct {
	t *transport
}

// NewHintClient creates a hint client.
func NewHintClient(cfg Config) *HintClient {
	return &HintClient{t: newTransport("hint", cfg)}
}

// GenerateHint asks for a fresh hint. Hints are never cached.
func (c *HintClient) GenerateHint(ctx context.Context, req HintRequest) (*HintResponse, error) {
	const op = "hint"

	var resp HintResponse
	if err := c.t.call(ctx, op, PathHint, req, &resp, FallbackHint, true); err != nil {
		return nil, err
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = FallbackHint
		}
		return nil, &Error{Kind: ErrService, Op: op, Message: msg}
	}
	return &resp, nil
}

// SubmissionClient talks to the answer submission service.
type SubmissionClient struct {
	t *transport
}

// NewSubmissionClient creates a submission client. Submissions are never
// retried: a lost reply could otherwise record the answer twice.
func NewSubmissionClient(cfg Config) *SubmissionClient {
	return &SubmissionClient{t: newTransport("submit", cfg)}
}

// SubmitAnswer records an answer.
func (c *SubmissionClient) SubmitAnswer(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	const op = "submit"
	switch {
	case req.ExerciseID == "":
		return nil, NewValidationError(op, "This question has no id yet")
	case req.SelectedAnswer == "":
		return nil, NewValidationError(op, "Select an answer before submitting")
	case req.CorrectAnswer == "":
		return nil, NewValidationError(op, "This question has no correct answer yet")
	case req.Username == "":
		return nil, NewValidationError(op, "A username is required to submit")
	}

	var resp SubmitResponse
	if err := c.t.call(ctx, op, PathSubmit, req, &resp, FallbackSubmit, false); err != nil {
		return nil, err
	}
	if !resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = FallbackSubmit
		}
		return nil, &Error{Kind: ErrService, Op: op, Message: msg}
	}
	return &resp, nil
}
