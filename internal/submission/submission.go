// Package submission records answers to multiple choice questions.
package submission

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrMissingExercise = errors.New("mcqId is required")
	ErrMissingSelected = errors.New("selectedAnswer is required")
	ErrMissingCorrect  = errors.New("correctAnswer is required")
	ErrNotFound        = errors.New("submission not found")
)

// DefaultUsername is used when neither the request nor a token names a user.
const DefaultUsername = "abc"

// Input is a submit request after transport decoding.
type Input struct {
	ExerciseID     string
	SelectedAnswer string
	CorrectAnswer  string
	Username       string
	Metadata       map[string]string
}

// Validate checks the required fields.
func (in Input) Validate() error {
	switch {
	case strings.TrimSpace(in.ExerciseID) == "":
		return ErrMissingExercise
	case strings.TrimSpace(in.SelectedAnswer) == "":
		return ErrMissingSelected
	case strings.TrimSpace(in.CorrectAnswer) == "":
		return ErrMissingCorrect
	}
	return nil
}

// Submission is one stored answer.
type Submission struct {
	ID             uuid.UUID         `json:"id"`
	ExerciseID     string            `json:"exerciseId"`
	SelectedAnswer string            `json:"selectedAnswer"`
	CorrectAnswer  string            `json:"correctAnswer"`
	Username       string            `json:"username"`
	IsCorrect      bool              `json:"isCorrect"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	SubmittedAt    time.Time         `json:"submittedAt"`
}

// IsCorrectAnswer compares answers by their text. Surrounding whitespace is
// ignored; case is not.
func IsCorrectAnswer(selected, correct string) bool {
	return strings.TrimSpace(selected) == strings.TrimSpace(correct)
}

// Stats aggregates the answers given to one exercise.
type Stats struct {
	ExerciseID string           `json:"exerciseId"`
	Total      int64            `json:"total"`
	Correct    int64            `json:"correct"`
	Answers    map[string]int64 `json:"answers"`
}

// Accuracy is Correct/Total, or 0 with no submissions.
func (s *Stats) Accuracy() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Total)
}

// EventSubmitted is the type of the event published after a save.
const EventSubmitted = "submission.created"

// Event is the message published for each stored submission.
type Event struct {
	Type           string    `json:"type"`
	SubmissionID   uuid.UUID `json:"submission_id"`
	ExerciseID     string    `json:"exercise_id"`
	SelectedAnswer string    `json:"selected_answer"`
	Username       string    `json:"username"`
	IsCorrect      bool      `json:"is_correct"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

// NewEvent builds the event for s.
func NewEvent(s *Submission) *Event {
	return &Event{
		Type:           EventSubmitted,
		SubmissionID:   s.ID,
		ExerciseID:     s.ExerciseID,
		SelectedAnswer: s.SelectedAnswer,
		Username:       s.Username,
		IsCorrect:      s.IsCorrect,
		SubmittedAt:    s.SubmittedAt,
	}
}
