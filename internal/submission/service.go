package submission

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service validates, grades and stores submissions.
//
// With a Publisher the tally is updated by whoever consumes the events (see
// Apply); without one the service records the tally itself.
type Service struct {
	store     Store
	publisher Publisher
	tally     Tally
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithTally(t Tally) Option {
	return func(s *Service) { s.tally = t }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a submission service over store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit stores an answer. Publish and tally failures are logged; the
// submission itself is already durable at that point.
func (s *Service) Submit(ctx context.Context, in Input) (*Submission, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	username := strings.TrimSpace(in.Username)
	if username == "" {
		username = DefaultUsername
	}

	sub := &Submission{
		ID:             uuid.New(),
		ExerciseID:     strings.TrimSpace(in.ExerciseID),
		SelectedAnswer: in.SelectedAnswer,
		CorrectAnswer:  in.CorrectAnswer,
		Username:       username,
		IsCorrect:      IsCorrectAnswer(in.SelectedAnswer, in.CorrectAnswer),
		Metadata:       in.Metadata,
		SubmittedAt:    s.now().UTC(),
	}
	if err := s.store.Save(ctx, sub); err != nil {
		return nil, fmt.Errorf("save submission: %w", err)
	}

	event := NewEvent(sub)
	if s.publisher != nil {
		if err := s.publisher.PublishSubmission(ctx, event); err != nil {
			s.logger.Warn("failed to publish submission event",
				"submission_id", sub.ID,
				"error", err)
		}
	} else if err := s.Apply(ctx, event); err != nil {
		s.logger.Warn("failed to record answer tally",
			"submission_id", sub.ID,
			"error", err)
	}

	s.logger.Info("submission stored",
		"submission_id", sub.ID,
		"exercise_id", sub.ExerciseID,
		"username", sub.Username,
		"correct", sub.IsCorrect)
	return sub, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Submission, error) {
	return s.store.Get(ctx, id)
}

// Stats prefers the tally and falls back to the store when the tally is
// missing or failing.
func (s *Service) Stats(ctx context.Context, exerciseID string) (*Stats, error) {
	if s.tally != nil {
		stats, err := s.tally.Stats(ctx, exerciseID)
		if err == nil {
			return stats, nil
		}
		s.logger.Warn("tally unavailable, counting from store",
			"exercise_id", exerciseID,
			"error", err)
	}
	stats, err := s.store.Stats(ctx, exerciseID)
	if err != nil {
		return nil, fmt.Errorf("count submissions: %w", err)
	}
	return stats, nil
}

// Apply folds an event into the tally. It is a no-op without one.
func (s *Service) Apply(ctx context.Context, e *Event) error {
	if s.tally == nil {
		return nil
	}
	if err := s.tally.Record(ctx, e); err != nil {
		return fmt.Errorf("record tally: %w", err)
	}
	return nil
}
