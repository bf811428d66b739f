package widget

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/document"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/domain"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/grading"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/orchestrator"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/remote"
)

// CodeConfig configures a mounted code exercise.
type CodeConfig struct {
	Executor remote.Executor
	Hints    remote.HintGenerator

	// HintDelay is the debounce window (default: orchestrator.DefaultHintDelay)
	HintDelay time.Duration

	Logger *slog.Logger
}

// CodeState is the transient state of a code widget.
type CodeState struct {
	Editable    bool                    `json:"editable"`
	Running     bool                    `json:"running"`
	Output      string                  `json:"output,omitempty"`
	Error       string                  `json:"error,omitempty"`
	Results     *grading.Verdict        `json:"results,omitempty"`
	HintLoading bool                    `json:"hintLoading"`
	HintVisible bool                    `json:"hintVisible"`
	HintError   string                  `json:"hintError,omitempty"`
	Snapshot    domain.Optional[string] `json:"snapshot"`
}

// CodeWidget is one mounted code node.
type CodeWidget struct {
	doc    *document.Document
	key    string
	cfg    CodeConfig
	logger *slog.Logger
	ctl    *Controller
	gate   orchestrator.Gate
	hints  *orchestrator.Debouncer

	// life ends on Close and cancels hint requests still being sent.
	life context.Context
	kill context.CancelFunc

	mu    sync.Mutex
	state CodeState
	epoch uint64
}

// MountCode attaches a widget to the code node at key.
func MountCode(doc *document.Document, key string, cfg CodeConfig) (*CodeWidget, error) {
	if _, err := doc.Code(key); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	w := &CodeWidget{
		doc:    doc,
		key:    key,
		cfg:    cfg,
		logger: logger.With("widget", "code", "key", key),
		hints:  orchestrator.NewDebouncer(cfg.HintDelay),
	}
	w.life, w.kill = context.WithCancel(context.Background())
	w.ctl = NewController(doc, Hooks{OnLock: w.onLock, OnUnlock: w.onUnlock})
	return w, nil
}

// Key returns the node key.
func (w *CodeWidget) Key() string { return w.key }

// Node returns a copy of the persisted node.
func (w *CodeWidget) Node() (*domain.CodeNode, error) {
	return w.doc.Code(w.key)
}

// State returns a copy of the widget state.
func (w *CodeWidget) State() CodeState {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.state
	if s.Results != nil {
		v := *s.Results
		v.Results = append([]grading.CaseResult(nil), v.Results...)
		s.Results = &v
	}
	s.Editable = w.ctl.Editable()
	s.Running = w.gate.Busy()
	return s
}

// SetCode replaces the working code. Allowed in both modes.
func (w *CodeWidget) SetCode(code string) error {
	if w.ctl.Closed() {
		return ErrClosed
	}
	return w.doc.UpdateCode(w.key, func(c *domain.CodeNode) error {
		c.Code = code
		return nil
	})
}

// SetQuestion edits the exercise prompt. Author mode only.
func (w *CodeWidget) SetQuestion(text string) error {
	return w.author(func(c *domain.CodeNode) error {
		c.Question = text
		return nil
	})
}

// SetTemplate sets or clears the starting code. Author mode only.
func (w *CodeWidget) SetTemplate(template domain.Optional[string]) error {
	return w.author(func(c *domain.CodeNode) error {
		c.Template = template
		return nil
	})
}

// AddTestCase appends a test case and returns its index. Author mode only.
func (w *CodeWidget) AddTestCase(tc domain.TestCase) (int, error) {
	idx := -1
	err := w.author(func(c *domain.CodeNode) error {
		idx = c.AddTestCase(tc)
		return nil
	})
	return idx, err
}

// SetTestCase replaces test case i. Author mode only.
func (w *CodeWidget) SetTestCase(i int, tc domain.TestCase) error {
	return w.author(func(c *domain.CodeNode) error {
		return c.SetTestCase(i, tc)
	})
}

// RemoveTestCase deletes test case i. Author mode only.
func (w *CodeWidget) RemoveTestCase(i int) error {
	return w.author(func(c *domain.CodeNode) error {
		return c.RemoveTestCase(i)
	})
}

// Delete removes the node and closes the widget. Author mode only.
func (w *CodeWidget) Delete() error {
	err := w.ctl.Guard(true, func() error {
		return w.doc.DeleteNode(w.key)
	})
	if err == nil {
		w.Close()
	}
	return err
}

// Reset restores the code to the lock-time snapshot, else the template, else
// the placeholder. Learner mode only.
func (w *CodeWidget) Reset() error {
	return w.ctl.Guard(false, func() error {
		w.mu.Lock()
		snapshot := w.state.Snapshot
		w.mu.Unlock()

		return w.doc.UpdateCode(w.key, func(c *domain.CodeNode) error {
			c.Code = c.ResetTarget(snapshot)
			return nil
		})
	})
}

// Run executes the current code and grades it when the node has test cases.
// A second call while one is in flight returns orchestrator.ErrBusy. Any
// failure clears the previous results.
func (w *CodeWidget) Run(ctx context.Context) (*grading.Verdict, error) {
	if w.ctl.Closed() {
		return nil, ErrClosed
	}
	var verdict *grading.Verdict
	err := w.gate.Do(func() error {
		var err error
		verdict, err = w.run(ctx)
		return err
	})
	return verdict, err
}

func (w *CodeWidget) run(ctx context.Context) (*grading.Verdict, error) {
	c, err := w.doc.Code(w.key)
	if err != nil {
		return nil, err
	}
	if w.cfg.Executor == nil {
		return nil, w.runFailed(nil, remote.NewValidationError("execute", "Code execution is not configured"))
	}

	w.mu.Lock()
	epoch := w.epoch
	w.mu.Unlock()

	resp, err := w.cfg.Executor.Execute(ctx, remote.ExecuteRequest{Code: c.Code})

	w.mu.Lock()
	stale := epoch != w.epoch
	w.mu.Unlock()
	if stale {
		w.logger.Debug("dropping run result after mode change")
		return nil, err
	}
	if err != nil {
		return nil, w.runFailed(resp, err)
	}

	var verdict *grading.Verdict
	if len(c.TestCases) > 0 {
		v := grading.Grade(resp.Output, c.TestCases)
		verdict = &v
	}

	w.mu.Lock()
	w.state.Output = resp.Output
	w.state.Error = ""
	w.state.Results = verdict
	w.mu.Unlock()
	return verdict, nil
}

func (w *CodeWidget) runFailed(resp *remote.ExecuteResponse, err error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state.Output = ""
	if resp != nil {
		w.state.Output = resp.Output
	}
	w.state.Error = remote.Message(err)
	w.state.Results = nil
	w.logger.Debug("run failed", "error", err)
	return err
}

// RequestHint schedules a hint request after the debounce window and returns
// its token. Only the newest request may write the hint; older results are
// dropped on arrival. The node is read when the request is sent, so the
// latest code and question are used.
func (w *CodeWidget) RequestHint(ctx context.Context) uint64 {
	if w.ctl.Closed() {
		return 0
	}
	w.mu.Lock()
	w.state.HintLoading = true
	w.state.HintError = ""
	w.mu.Unlock()

	token := w.hints.Trigger(func(token uint64) {
		w.fetchHint(ctx, token)
	})
	if token == 0 {
		w.mu.Lock()
		w.state.HintLoading = false
		w.mu.Unlock()
	}
	return token
}

func (w *CodeWidget) fetchHint(ctx context.Context, token uint64) {
	const op = "hint"

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer context.AfterFunc(w.life, cancel)()

	c, err := w.doc.Code(w.key)
	if err != nil {
		w.hintFailed(token, err)
		return
	}
	if w.cfg.Hints == nil {
		w.hintFailed(token, remote.NewValidationError(op, "Hints are not configured"))
		return
	}

	resp, err := w.cfg.Hints.GenerateHint(ctx, remote.HintRequest{
		TemplateCode: c.TemplateCode(),
		CurrentCode:  c.Code,
		Question:     c.Question,
	})
	if !w.hints.IsLatest(token) || w.ctl.Closed() {
		w.logger.Debug("dropping stale hint", "token", token)
		return
	}
	if err != nil {
		w.hintFailed(token, err)
		return
	}

	err = w.doc.UpdateCode(w.key, func(c *domain.CodeNode) error {
		c.Hint = resp.Hint
		return nil
	})
	if err != nil {
		w.hintFailed(token, err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.hints.IsLatest(token) {
		w.state.HintLoading = false
		w.state.HintVisible = true
		w.state.HintError = ""
	}
}

func (w *CodeWidget) hintFailed(token uint64, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.hints.IsLatest(token) {
		return
	}
	w.state.HintLoading = false
	w.state.HintVisible = false
	w.state.HintError = remote.Message(err)
	w.logger.Debug("hint failed", "error", err)
}

// HintCurrent reports whether token still belongs to the newest hint
// request. A mode change or Close makes every earlier token stale.
func (w *CodeWidget) HintCurrent(token uint64) bool {
	return w.hints.IsLatest(token)
}

// HideHint hides the hint without clearing the stored text.
func (w *CodeWidget) HideHint() {
	w.mu.Lock()
	w.state.HintVisible = false
	w.mu.Unlock()
}

// Close unmounts the widget and drops pending hint work. A hint request
// already being sent is cancelled and its result discarded. Close never
// blocks, so it may run from a document handler on the hint goroutine.
func (w *CodeWidget) Close() {
	w.ctl.Close()
	w.hints.Stop()
	w.kill()
}

func (w *CodeWidget) author(fn func(*domain.CodeNode) error) error {
	return w.ctl.Guard(true, func() error {
		return w.doc.UpdateCode(w.key, fn)
	})
}

func (w *CodeWidget) onLock() {
	c, err := w.doc.Code(w.key)
	if err != nil {
		return
	}
	w.mu.Lock()
	w.state.Snapshot = domain.Some(c.Code)
	w.mu.Unlock()
}

func (w *CodeWidget) onUnlock() {
	w.hints.Invalidate()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.epoch++
	snapshot := w.state.Snapshot
	w.state = CodeState{Snapshot: snapshot}
}
