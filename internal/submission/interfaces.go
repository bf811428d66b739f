package submission

import (
	"context"

	"github.com/google/uuid"
)

// Store persists submissions. The sqlite and postgres stores implement it.
type Store interface {
	Save(ctx context.Context, s *Submission) error
	Get(ctx context.Context, id uuid.UUID) (*Submission, error)
	ListByExercise(ctx context.Context, exerciseID string, limit int) ([]*Submission, error)
	Stats(ctx context.Context, exerciseID string) (*Stats, error)
}

// Publisher announces stored submissions.
type Publisher interface {
	PublishSubmission(ctx context.Context, e *Event) error
}

// Tally keeps fast per-exercise answer counters.
type Tally interface {
	Record(ctx context.Context, e *Event) error
	Stats(ctx context.Context, exerciseID string) (*Stats, error)
}

// SubmissionService is the surface the daemon calls.
type SubmissionService interface {
	Submit(ctx context.Context, in Input) (*Submission, error)
	Get(ctx context.Context, id uuid.UUID) (*Submission, error)
	Stats(ctx context.Context, exerciseID string) (*Stats, error)
	Apply(ctx context.Context, e *Event) error
}

var _ SubmissionService = (*Service)(nil)
