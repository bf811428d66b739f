package widget

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/document"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/domain"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/orchestrator"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/remote"
)

// BackfillPolicy decides what happens to a question with no correct answer
// when the document locks.
type BackfillPolicy string

const (
	// BackfillNone leaves the correct answer unset.
	BackfillNone BackfillPolicy = "none"
	// BackfillFirstChoice marks the first choice correct.
	BackfillFirstChoice BackfillPolicy = "first-choice"
)

// ParseBackfillPolicy maps a config value to a policy. Unknown values fall
// back to BackfillNone.
func ParseBackfillPolicy(s string) BackfillPolicy {
	if BackfillPolicy(strings.ToLower(strings.TrimSpace(s))) == BackfillFirstChoice {
		return BackfillFirstChoice
	}
	return BackfillNone
}

// QuestionConfig configures a mounted question.
type QuestionConfig struct {
	Submitter remote.AnswerSubmitter
	Username  string
	Backfill  BackfillPolicy
	Logger    *slog.Logger
}

// QuestionState is the learner-side state of a question widget. It lives
// only in the widget, never in the document.
type QuestionState struct {
	Editable     bool   `json:"editable"`
	Submitting   bool   `json:"submitting"`
	Answered     bool   `json:"isAnswered"`
	Correct      bool   `json:"isCorrect"`
	SubmissionID string `json:"submissionId,omitempty"`
	Error        string `json:"error,omitempty"`
}

// QuestionWidget is one mounted question node.
type QuestionWidget struct {
	doc    *document.Document
	key    string
	cfg    QuestionConfig
	logger *slog.Logger
	ctl    *Controller
	gate   orchestrator.Gate

	mu    sync.Mutex
	state QuestionState
	epoch uint64
}

// MountQuestion attaches a widget to the question node at key.
func MountQuestion(doc *document.Document, key string, cfg QuestionConfig) (*QuestionWidget, error) {
	if _, err := doc.Question(key); err != nil {
		return nil, err
	}
	if cfg.Username == "" {
		cfg.Username = remote.DefaultUsername
	}
	if cfg.Backfill == "" {
		cfg.Backfill = BackfillNone
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	w := &QuestionWidget{
		doc:    doc,
		key:    key,
		cfg:    cfg,
		logger: logger.With("widget", "question", "key", key),
	}
	w.ctl = NewController(doc, Hooks{OnLock: w.onLock, OnUnlock: w.onUnlock})
	return w, nil
}

// Key returns the node key.
func (w *QuestionWidget) Key() string { return w.key }

// Node returns a copy of the persisted node.
func (w *QuestionWidget) Node() (*domain.QuestionNode, error) {
	return w.doc.Question(w.key)
}

// State returns a copy of the widget state.
func (w *QuestionWidget) State() QuestionState {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.state
	s.Editable = w.ctl.Editable()
	s.Submitting = w.gate.Busy()
	return s
}

// SetQuestion edits the prompt text. Author mode only.
func (w *QuestionWidget) SetQuestion(text string) error {
	return w.author(func(q *domain.QuestionNode) error {
		q.Question = text
		return nil
	})
}

// SetChoice edits one choice. Author mode only.
func (w *QuestionWidget) SetChoice(i int, text string) error {
	return w.author(func(q *domain.QuestionNode) error {
		return q.SetChoice(i, text)
	})
}

// AddChoice appends a default choice and returns its index. Author mode only.
func (w *QuestionWidget) AddChoice() (int, error) {
	idx := -1
	err := w.author(func(q *domain.QuestionNode) error {
		idx = q.AddChoice()
		return nil
	})
	return idx, err
}

// RemoveChoice removes choice i. Removing at the minimum count is a no-op
// that reports false. Author mode only.
func (w *QuestionWidget) RemoveChoice(i int) (bool, error) {
	var removed bool
	err := w.author(func(q *domain.QuestionNode) error {
		var err error
		removed, err = q.RemoveChoice(i)
		return err
	})
	return removed, err
}

// SetCorrect marks choice i correct. Author mode only.
func (w *QuestionWidget) SetCorrect(i int) error {
	return w.author(func(q *domain.QuestionNode) error {
		return q.SetCorrect(i)
	})
}

// Delete removes the node from the document and closes the widget. Author
// mode only.
func (w *QuestionWidget) Delete() error {
	err := w.ctl.Guard(true, func() error {
		return w.doc.DeleteNode(w.key)
	})
	if err == nil {
		w.Close()
	}
	return err
}

// Select records the learner's choice. Learner mode only. Changing the
// choice drops the answer state of an earlier submission.
func (w *QuestionWidget) Select(i int) error {
	changed := false
	err := w.ctl.Guard(false, func() error {
		return w.doc.UpdateQuestion(w.key, func(q *domain.QuestionNode) error {
			prev, ok := q.SelectedChoice.Get()
			if err := q.Select(i); err != nil {
				return err
			}
			changed = !ok || prev != i
			return nil
		})
	})
	if err == nil {
		w.mu.Lock()
		w.state.Error = ""
		if changed {
			w.state.Answered = false
			w.state.Correct = false
			w.state.SubmissionID = ""
		}
		w.mu.Unlock()
	}
	return err
}

// Submit sends the selected answer. A second call while one is in flight
// returns orchestrator.ErrBusy. On failure the previous answer state is kept
// and the error message is recorded.
func (w *QuestionWidget) Submit(ctx context.Context) (*remote.SubmitResponse, error) {
	var resp *remote.SubmitResponse
	err := w.ctl.Guard(false, func() error {
		return w.gate.Do(func() error {
			var err error
			resp, err = w.submit(ctx)
			return err
		})
	})
	return resp, err
}

func (w *QuestionWidget) submit(ctx context.Context) (*remote.SubmitResponse, error) {
	const op = "submit"

	q, err := w.doc.Question(w.key)
	if err != nil {
		return nil, err
	}
	selected, hasSelection := q.SelectedText()
	correct, hasCorrect := q.CorrectText()
	switch {
	case q.ID == "":
		return nil, w.fail(remote.NewValidationError(op, "This question has no id yet"))
	case !hasSelection:
		return nil, w.fail(remote.NewValidationError(op, "Select an answer before submitting"))
	case !hasCorrect:
		return nil, w.fail(remote.NewValidationError(op, "This question has no correct answer yet"))
	case w.cfg.Submitter == nil:
		return nil, w.fail(remote.NewValidationError(op, "Submissions are not configured"))
	}

	w.mu.Lock()
	epoch := w.epoch
	w.mu.Unlock()

	resp, err := w.cfg.Submitter.SubmitAnswer(ctx, remote.SubmitRequest{
		ExerciseID:     q.ID,
		SelectedAnswer: selected,
		CorrectAnswer:  correct,
		Username:       w.cfg.Username,
	})

	w.mu.Lock()
	defer w.mu.Unlock()
	if epoch != w.epoch {
		w.logger.Debug("dropping submission result after mode change")
		return resp, err
	}
	if err != nil {
		w.state.Error = remote.Message(err)
		w.logger.Warn("submission failed", "error", err)
		return nil, err
	}
	w.state.Answered = true
	w.state.Correct = q.IsSelectionCorrect()
	w.state.SubmissionID = resp.SubmissionID
	w.state.Error = ""
	return resp, nil
}

func (w *QuestionWidget) fail(err *remote.Error) error {
	w.mu.Lock()
	w.state.Error = err.Message
	w.mu.Unlock()
	return err
}

// Close unmounts the widget.
func (w *QuestionWidget) Close() {
	w.ctl.Close()
}

func (w *QuestionWidget) author(fn func(*domain.QuestionNode) error) error {
	return w.ctl.Guard(true, func() error {
		return w.doc.UpdateQuestion(w.key, fn)
	})
}

func (w *QuestionWidget) onLock() {
	if w.cfg.Backfill != BackfillFirstChoice {
		return
	}
	q, err := w.doc.Question(w.key)
	if err != nil || q.CorrectChoice.Valid() {
		return
	}
	err = w.doc.UpdateQuestion(w.key, func(q *domain.QuestionNode) error {
		return q.SetCorrect(0)
	})
	if err != nil {
		w.logger.Debug("backfill correct answer", "error", err)
	}
}

func (w *QuestionWidget) onUnlock() {
	w.mu.Lock()
	w.epoch++
	w.state = QuestionState{}
	w.mu.Unlock()

	q, err := w.doc.Question(w.key)
	if err != nil || !q.SelectedChoice.Valid() {
		return
	}
	err = w.doc.UpdateQuestion(w.key, func(q *domain.QuestionNode) error {
		q.ClearSelection()
		return nil
	})
	if err != nil {
		w.logger.Debug("clear selection", "error", err)
	}
}
