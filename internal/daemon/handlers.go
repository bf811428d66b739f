package daemon

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/hints"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/remote"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/runner"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/submission"
)

const (
	maxRequestBytes = 1 << 20

	msgExecuteFailed = "Failed to execute Python code"
	msgHintFailed    = "Failed to generate hint"
	msgSubmitFailed  = "Failed to submit MCQ answer"
	msgSubmitted     = "Answer submitted successfully"
)

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(v); err != nil {
		s.jsonError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// handleExecute runs the submitted program. A program that fails is still
// a 200 with success=false.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req remote.ExecuteRequest
	if !s.decode(w, r, &req) {
		return
	}

	out, err := s.runner.Execute(r.Context(), req.Code)
	switch {
	case errors.Is(err, runner.ErrEmptyCode):
		s.jsonError(w, http.StatusBadRequest, "Code is required", err)
		return
	case errors.Is(err, runner.ErrCodeTooLarge):
		s.jsonError(w, http.StatusRequestEntityTooLarge, "Code is too large", err)
		return
	case err != nil:
		s.jsonError(w, http.StatusInternalServerError, msgExecuteFailed, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, remote.ExecuteResponse{
		Success: out.Success,
		Output:  out.Output,
		Error:   out.Error,
	})
}

func (s *Server) handleHint(w http.ResponseWriter, r *http.Request) {
	var req remote.HintRequest
	if !s.decode(w, r, &req) {
		return
	}

	hint, err := s.hints.Generate(r.Context(), hints.Request{
		TemplateCode: req.TemplateCode,
		CurrentCode:  req.CurrentCode,
		Question:     req.Question,
	})
	if errors.Is(err, hints.ErrNothingToHint) {
		s.jsonError(w, http.StatusBadRequest, "Question or code is required", err)
		return
	}
	if err != nil {
		s.logger.Warn("hint generation failed",
			"correlation_id", GetCorrelationID(r.Context()),
			"error", err)
		s.jsonError(w, http.StatusBadGateway, msgHintFailed, nil)
		return
	}

	s.jsonResponse(w, http.StatusOK, remote.HintResponse{Success: true, Hint: hint})
}

// submitRequest accepts the exercise id as mcqId or exerciseId.
type submitRequest struct {
	MCQID          string `json:"mcqId"`
	ExerciseID     string `json:"exerciseId"`
	SelectedAnswer string `json:"selectedAnswer"`
	CorrectAnswer  string `json:"correctAnswer"`
	Username       string `json:"username"`
}

type submitResponse struct {
	remote.SubmitResponse
	IsCorrect bool `json:"isCorrect"`
}

// handleSubmit records an answer. A verified bearer token names the user;
// otherwise the body does, then the configured default.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !s.decode(w, r, &req) {
		return
	}

	exerciseID := req.MCQID
	if strings.TrimSpace(exerciseID) == "" {
		exerciseID = req.ExerciseID
	}
	username := GetUsername(r.Context())
	if username == "" {
		username = strings.TrimSpace(req.Username)
	}
	if username == "" {
		username = s.cfg.Auth.DefaultUsername
	}

	in := submission.Input{
		ExerciseID:     exerciseID,
		SelectedAnswer: req.SelectedAnswer,
		CorrectAnswer:  req.CorrectAnswer,
		Username:       username,
	}
	if id := GetCorrelationID(r.Context()); id != "" {
		in.Metadata = map[string]string{"correlation_id": id}
	}
	if err := in.Validate(); err != nil {
		s.jsonError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	sub, err := s.submissions.Submit(r.Context(), in)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, msgSubmitFailed, err)
		return
	}

	s.jsonResponse(w, http.StatusCreated, submitResponse{
		SubmitResponse: remote.SubmitResponse{
			Success:      true,
			Message:      msgSubmitted,
			SubmissionID: sub.ID.String(),
		},
		IsCorrect: sub.IsCorrect,
	})
}

func (s *Server) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, "Invalid submission id", err)
		return
	}
	sub, err := s.submissions.Get(r.Context(), id)
	if errors.Is(err, submission.ErrNotFound) {
		s.jsonError(w, http.StatusNotFound, "Submission not found", nil)
		return
	}
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "Failed to load submission", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, sub)
}

type statsResponse struct {
	Success bool `json:"success"`
	*submission.Stats
	Accuracy float64 `json:"accuracy"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		s.jsonError(w, http.StatusBadRequest, submission.ErrMissingExercise.Error(), nil)
		return
	}
	stats, err := s.submissions.Stats(r.Context(), id)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "Failed to load answer stats", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, statsResponse{
		Success:  true,
		Stats:    stats,
		Accuracy: stats.Accuracy(),
	})
}
