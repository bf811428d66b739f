package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/submission"
)

// Publisher is the part of Connection the producer needs.
type Publisher interface {
	PublishJSON(ctx context.Context, queue string, data any) error
}

// Producer publishes submission events.
type Producer struct {
	pub Publisher
}

var _ submission.Publisher = (*Producer)(nil)

func NewProducer(pub Publisher) *Producer {
	return &Producer{pub: pub}
}

func (p *Producer) PublishSubmission(ctx context.Context, e *submission.Event) error {
	if e.Type == "" {
		e.Type = submission.EventSubmitted
	}
	if err := p.pub.PublishJSON(ctx, SubmissionQueueName, e); err != nil {
		return fmt.Errorf("failed to publish submission event: %w", err)
	}

	slog.Debug("published submission event",
		"submission_id", e.SubmissionID,
		"exercise_id", e.ExerciseID)
	return nil
}
