package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/submission"
)

// SubmissionStore implements submission.Store.
type SubmissionStore struct {
	db *DB
}

func NewSubmissionStore(db *DB) *SubmissionStore {
	return &SubmissionStore{db: db}
}

// Save inserts s. Submissions are immutable, so a repeated id is an error.
func (s *SubmissionStore) Save(ctx context.Context, sub *submission.Submission) error {
	var meta sql.NullString
	if len(sub.Metadata) > 0 {
		data, err := json.Marshal(sub.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		meta = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO submissions (id, exercise_id, selected_answer, correct_answer,
			username, is_correct, metadata, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID.String(), sub.ExerciseID, sub.SelectedAnswer, sub.CorrectAnswer,
		sub.Username, sub.IsCorrect, meta, sub.SubmittedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (s *SubmissionStore) Get(ctx context.Context, id uuid.UUID) (*submission.Submission, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, exercise_id, selected_answer, correct_answer, username,
			is_correct, metadata, submitted_at
		FROM submissions WHERE id = ?`, id.String())
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, submission.ErrNotFound
	}
	return sub, err
}

// ListByExercise returns the newest submissions first. limit <= 0 means all.
func (s *SubmissionStore) ListByExercise(ctx context.Context, exerciseID string, limit int) ([]*submission.Submission, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, exercise_id, selected_answer, correct_answer, username,
			is_correct, metadata, submitted_at
		FROM submissions WHERE exercise_id = ?
		ORDER BY submitted_at DESC LIMIT ?`, exerciseID, limit)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	var out []*submission.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *SubmissionStore) Stats(ctx context.Context, exerciseID string) (*submission.Stats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT selected_answer, COUNT(*), SUM(is_correct)
		FROM submissions WHERE exercise_id = ?
		GROUP BY selected_answer`, exerciseID)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	stats := &submission.Stats{ExerciseID: exerciseID, Answers: make(map[string]int64)}
	for rows.Next() {
		var (
			answer         string
			count, correct int64
		)
		if err := rows.Scan(&answer, &count, &correct); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		stats.Answers[answer] = count
		stats.Total += count
		stats.Correct += correct
	}
	return stats, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row scanner) (*submission.Submission, error) {
	var (
		sub         submission.Submission
		id          string
		meta        sql.NullString
		submittedAt time.Time
	)
	err := row.Scan(&id, &sub.ExerciseID, &sub.SelectedAnswer, &sub.CorrectAnswer,
		&sub.Username, &sub.IsCorrect, &meta, &submittedAt)
	if err != nil {
		return nil, err
	}
	if sub.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse submission id: %w", err)
	}
	if meta.Valid {
		if err := json.Unmarshal([]byte(meta.String), &sub.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	sub.SubmittedAt = submittedAt.UTC()
	return &sub, nil
}
