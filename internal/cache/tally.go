// Package cache keeps per-question answer counters in Redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/submission"
)

// DefaultTTL keeps counters of an untouched question for a month.
const DefaultTTL = 30 * 24 * time.Hour

// AnswerTally implements submission.Tally.
type AnswerTally struct {
	client *redis.Client
	ttl    time.Duration
}

var _ submission.Tally = (*AnswerTally)(nil)

// NewClient connects to addr and pings it.
func NewClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func NewAnswerTally(client *redis.Client, ttl time.Duration) *AnswerTally {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &AnswerTally{client: client, ttl: ttl}
}

func totalKey(exerciseID string) string   { return fmt.Sprintf("mcq:%s:total", exerciseID) }
func correctKey(exerciseID string) string { return fmt.Sprintf("mcq:%s:correct", exerciseID) }
func answersKey(exerciseID string) string { return fmt.Sprintf("mcq:%s:answers", exerciseID) }
func seenKey(exerciseID string) string    { return fmt.Sprintf("mcq:%s:seen", exerciseID) }

// Record counts e once. A redelivered event with a known submission id is
// ignored.
func (t *AnswerTally) Record(ctx context.Context, e *submission.Event) error {
	added, err := t.client.SAdd(ctx, seenKey(e.ExerciseID), e.SubmissionID.String()).Result()
	if err != nil {
		return fmt.Errorf("mark submission seen: %w", err)
	}
	if added == 0 {
		return nil
	}

	_, err = t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, totalKey(e.ExerciseID))
		if e.IsCorrect {
			pipe.Incr(ctx, correctKey(e.ExerciseID))
		}
		pipe.HIncrBy(ctx, answersKey(e.ExerciseID), e.SelectedAnswer, 1)
		for _, key := range []string{totalKey(e.ExerciseID), correctKey(e.ExerciseID), answersKey(e.ExerciseID), seenKey(e.ExerciseID)} {
			pipe.Expire(ctx, key, t.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("increment tally: %w", err)
	}
	return nil
}

func (t *AnswerTally) Stats(ctx context.Context, exerciseID string) (*submission.Stats, error) {
	pipe := t.client.Pipeline()
	total := pipe.Get(ctx, totalKey(exerciseID))
	correct := pipe.Get(ctx, correctKey(exerciseID))
	answers := pipe.HGetAll(ctx, answersKey(exerciseID))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("read tally: %w", err)
	}

	stats := &submission.Stats{ExerciseID: exerciseID, Answers: make(map[string]int64)}
	var err error
	if stats.Total, err = counter(total); err != nil {
		return nil, err
	}
	if stats.Correct, err = counter(correct); err != nil {
		return nil, err
	}
	for answer, v := range answers.Val() {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse count for %q: %w", answer, err)
		}
		stats.Answers[answer] = n
	}
	return stats, nil
}

// Reset drops every counter of exerciseID.
func (t *AnswerTally) Reset(ctx context.Context, exerciseID string) error {
	return t.client.Del(ctx,
		totalKey(exerciseID), correctKey(exerciseID), answersKey(exerciseID), seenKey(exerciseID)).Err()
}

func counter(cmd *redis.StringCmd) (int64, error) {
	n, err := cmd.Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("parse counter: %w", err)
	}
	return n, nil
}
