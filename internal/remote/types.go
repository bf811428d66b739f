package remote

// Service paths and defaults.
const (
	DefaultBaseURL  = "http://localhost:4000"
	DefaultUsername = "abc"

	PathExecute = "/api/python/execute"
	PathHint    = "/api/hint/generate"
	PathSubmit  = "/api/mcq/submit"
)

// ExecuteRequest asks the execution service to run code.
type ExecuteRequest struct {
	Code string `json:"code"`
}

// ExecuteResponse is the execution service reply.
type ExecuteResponse struct {
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HintRequest carries everything the hint service needs to produce a hint.
type HintRequest struct {
	TemplateCode string `json:"templateCode"`
	CurrentCode  string `json:"currentCode"`
	Question     string `json:"question"`
}

// HintResponse is the hint service reply.
type HintResponse struct {
	Success bool   `json:"success"`
	Hint    string `json:"hint,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SubmitRequest records an answer. Answers are sent as choice text, not
// indices.
type SubmitRequest struct {
	ExerciseID     string `json:"exerciseId"`
	SelectedAnswer string `json:"selectedAnswer"`
	CorrectAnswer  string `json:"correctAnswer"`
	Username       string `json:"username"`
}

// SubmitResponse is the submission service reply.
type SubmitResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	SubmissionID string `json:"submissionId,omitempty"`
}
