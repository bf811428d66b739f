package submission

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps submissions in memory. It backs tests and a daemon
// started without a database.
type MemoryStore struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]*Submission
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subs: make(map[uuid.UUID]*Submission)}
}

func (m *MemoryStore) Save(ctx context.Context, s *Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.subs[s.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.subs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

// ListByExercise returns the newest submissions first.
func (m *MemoryStore) ListByExercise(ctx context.Context, exerciseID string, limit int) ([]*Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Submission
	for _, s := range m.subs {
		if s.ExerciseID == exerciseID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) Stats(ctx context.Context, exerciseID string) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &Stats{ExerciseID: exerciseID, Answers: make(map[string]int64)}
	for _, s := range m.subs {
		if s.ExerciseID != exerciseID {
			continue
		}
		stats.Total++
		if s.IsCorrect {
			stats.Correct++
		}
		stats.Answers[s.SelectedAnswer]++
	}
	return stats, nil
}

// MemoryTally counts events in memory.
type MemoryTally struct {
	mu    sync.Mutex
	stats map[string]*Stats
}

func NewMemoryTally() *MemoryTally {
	return &MemoryTally{stats: make(map[string]*Stats)}
}

func (t *MemoryTally) Record(ctx context.Context, e *Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.stats[e.ExerciseID]
	if !ok {
		st = &Stats{ExerciseID: e.ExerciseID, Answers: make(map[string]int64)}
		t.stats[e.ExerciseID] = st
	}
	st.Total++
	if e.IsCorrect {
		st.Correct++
	}
	st.Answers[e.SelectedAnswer]++
	return nil
}

func (t *MemoryTally) Stats(ctx context.Context, exerciseID string) (*Stats, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := &Stats{ExerciseID: exerciseID, Answers: make(map[string]int64)}
	if st, ok := t.stats[exerciseID]; ok {
		out.Total, out.Correct = st.Total, st.Correct
		for k, v := range st.Answers {
			out.Answers[k] = v
		}
	}
	return out, nil
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Tally = (*MemoryTally)(nil)
)
