// Package postgres is the shared submissions store for a daemon serving
// many learners.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sqlc-dev/pqtype"

	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/submission"
)

//go:embed schema.sql
var schema string

// SubmissionRepository implements submission.Store on a pgx pool.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

var _ submission.Store = (*SubmissionRepository)(nil)

func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

// Connect opens a pool for url and verifies it.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// Migrate creates the submissions table when missing.
func (r *SubmissionRepository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (r *SubmissionRepository) Save(ctx context.Context, s *submission.Submission) error {
	meta, err := encodeMetadata(s.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO submissions (id, exercise_id, selected_answer, correct_answer,
			username, is_correct, metadata, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.pool.Exec(ctx, query,
		s.ID, s.ExerciseID, s.SelectedAnswer, s.CorrectAnswer,
		s.Username, s.IsCorrect, meta, s.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (r *SubmissionRepository) Get(ctx context.Context, id uuid.UUID) (*submission.Submission, error) {
	query := `
		SELECT id, exercise_id, selected_answer, correct_answer, username,
			is_correct, metadata, submitted_at
		FROM submissions WHERE id = $1
	`
	s, err := scanSubmission(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, submission.ErrNotFound
	}
	return s, err
}

func (r *SubmissionRepository) ListByExercise(ctx context.Context, exerciseID string, limit int) ([]*submission.Submission, error) {
	query := `
		SELECT id, exercise_id, selected_answer, correct_answer, username,
			is_correct, metadata, submitted_at
		FROM submissions WHERE exercise_id = $1
		ORDER BY submitted_at DESC
		LIMIT $2
	`
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := r.pool.Query(ctx, query, exerciseID, lim)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	var out []*submission.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SubmissionRepository) Stats(ctx context.Context, exerciseID string) (*submission.Stats, error) {
	query := `
		SELECT selected_answer, COUNT(*), COUNT(*) FILTER (WHERE is_correct)
		FROM submissions WHERE exercise_id = $1
		GROUP BY selected_answer
	`
	rows, err := r.pool.Query(ctx, query, exerciseID)
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

func scanSubmission(row pgx.Row) (*submission.Submission, error) {
	var (
		s    submission.Submission
		meta []byte
	)
	err := row.Scan(&s.ID, &s.ExerciseID, &s.SelectedAnswer, &s.CorrectAnswer,
		&s.Username, &s.IsCorrect, &meta, &s.SubmittedAt)
	if err != nil {
		return nil, err
	}
	if s.Metadata, err = decodeMetadata(pqtype.NullRawMessage{RawMessage: meta, Valid: meta != nil}); err != nil {
		return nil, err
	}
	s.SubmittedAt = s.SubmittedAt.UTC()
	return &s, nil
}

// encodeMetadata maps an empty map to SQL NULL.
func encodeMetadata(m map[string]string) (pqtype.NullRawMessage, error) {
	if len(m) == 0 {
		return pqtype.NullRawMessage{}, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return pqtype.NullRawMessage{}, fmt.Errorf("marshal metadata: %w", err)
	}
	return pqtype.NullRawMessage{RawMessage: data, Valid: true}, nil
}

func decodeMetadata(raw pqtype.NullRawMessage) (map[string]string, error) {
	if !raw.Valid || len(raw.RawMessage) == 0 {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal(raw.RawMessage, &m); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return m, nil
}
