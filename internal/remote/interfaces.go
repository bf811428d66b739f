package remote

import "context"

// Executor runs code remotely.
type Executor interface {
	Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResponse, error)
}

// HintGenerator produces hints remotely.
type HintGenerator interface {
	GenerateHint(ctx context.Context, req HintRequest) (*HintResponse, error)
}

// AnswerSubmitter records question answers remotely.
type AnswerSubmitter interface {
	SubmitAnswer(ctx context.Context, req SubmitRequest) (*SubmitResponse, error)
}

// Ensure clients implement their interfaces
var (
	_ Executor        = (*ExecutionClient)(nil)
	_ HintGenerator   = (*HintClient)(nil)
	_ AnswerSubmitter = (*SubmissionClient)(nil)
)
