// Package workbook hosts one document for a user: it mounts a widget for
// every exercise node, unmounts widgets whose nodes disappear, and owns the
// slash palette.
package workbook

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/commands"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/document"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/domain"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/remote"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/widget"
)

var (
	ErrClosed        = errors.New("session is closed")
	ErrUnknownWidget = errors.New("no widget for key")
	ErrUnknownCmd    = errors.New("unknown command")
)

// Config wires widgets to the remote services.
type Config struct {
	Executor  remote.Executor
	Hints     remote.HintGenerator
	Submitter remote.AnswerSubmitter

	Username  string
	Backfill  widget.BackfillPolicy
	HintDelay time.Duration

	Logger *slog.Logger
}

// Session is an open document with its mounted widgets.
type Session struct {
	doc     *document.Document
	cfg     Config
	logger  *slog.Logger
	palette *commands.Engine
	sub     *document.Subscription

	mu        sync.Mutex
	questions map[string]*widget.QuestionWidget
	codes     map[string]*widget.CodeWidget
	closed    bool
}

// Open mounts widgets for the nodes already in doc and follows later
// inserts and deletes.
func Open(doc *document.Document, cfg Config) (*Session, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		doc:       doc,
		cfg:       cfg,
		logger:    logger.With("document", doc.ID()),
		questions: make(map[string]*widget.QuestionWidget),
		codes:     make(map[string]*widget.CodeWidget),
	}
	s.palette = commands.NewEngine(doc, nil, s.logger)

	if err := s.reconcile(); err != nil {
		s.Close()
		return nil, err
	}
	s.sub = doc.On(document.EventTransaction, func() {
		if err := s.reconcile(); err != nil {
			s.logger.Warn("mount widgets", "error", err)
		}
	})
	return s, nil
}

// Document returns the hosted document.
func (s *Session) Document() *document.Document { return s.doc }

// Commands returns the slash palette.
func (s *Session) Commands() *commands.Engine { return s.palette }

// SetEditable flips the document mode.
func (s *Session) SetEditable(editable bool) bool {
	return s.doc.SetEditable(editable)
}

// Keys returns the keys of mounted widgets in document order.
func (s *Session) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []string
	for _, k := range s.doc.NodeKeys() {
		if s.questions[k] != nil || s.codes[k] != nil {
			keys = append(keys, k)
		}
	}
	return keys
}

// Question returns the question widget mounted at key.
func (s *Session) Question(key string) (*widget.QuestionWidget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	w, ok := s.questions[key]
	if !ok {
		return nil, fmt.Errorf("%w: question %s", ErrUnknownWidget, key)
	}
	return w, nil
}

// Code returns the code widget mounted at key.
func (s *Session) Code(key string) (*widget.CodeWidget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	w, ok := s.codes[key]
	if !ok {
		return nil, fmt.Errorf("%w: code %s", ErrUnknownWidget, key)
	}
	return w, nil
}

// RunCommand types the trigger and the first word of title at the end of
// text block block, picks the palette entry with that title and returns the
// key of the node it inserted, if any.
func (s *Session) RunCommand(block int, title string) (string, error) {
	if !s.doc.IsEditable() {
		return "", commands.ErrNotEditable
	}
	words := strings.Fields(title)
	if len(words) == 0 {
		return "", fmt.Errorf("%w: %q", ErrUnknownCmd, title)
	}
	blocks := s.doc.Blocks()
	if block < 0 || block >= len(blocks) {
		return "", fmt.Errorf("%w: block %d", document.ErrInvalidRange, block)
	}
	text := blocks[block].Text
	if text != "" && !strings.HasSuffix(text, " ") {
		text += " "
	}
	text += string(commands.TriggerChar) + words[0]
	if err := s.doc.SetText(block, text); err != nil {
		return "", err
	}

	if !s.palette.HandleInput(block, text, len(text)) {
		return "", commands.ErrInactive
	}
	idx := slices.IndexFunc(s.palette.Items(), func(c commands.Command) bool {
		return strings.EqualFold(c.Title, title)
	})
	if idx < 0 {
		s.palette.Exit()
		return "", fmt.Errorf("%w: %q", ErrUnknownCmd, title)
	}

	before := s.doc.NodeKeys()
	if err := s.palette.Select(idx); err != nil {
		return "", err
	}
	for _, k := range s.doc.NodeKeys() {
		if !slices.Contains(before, k) {
			return k, nil
		}
	}
	return "", nil
}

// Close unmounts every widget and stops following the document.
func (s *Session) Close() {
	s.sub.Unsubscribe()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	var closers []func()
	for _, w := range s.questions {
		closers = append(closers, w.Close)
	}
	for _, w := range s.codes {
		closers = append(closers, w.Close)
	}
	s.questions, s.codes = nil, nil
	s.mu.Unlock()

	for _, c := range closers {
		c()
	}
}

// reconcile mounts widgets for new nodes and unmounts the ones whose nodes
// are gone. Widgets are closed after the lock is released since closing
// unsubscribes from the document.
func (s *Session) reconcile() error {
	keys := s.doc.NodeKeys()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}

	var closers []func()
	for k, w := range s.questions {
		if !slices.Contains(keys, k) {
			closers = append(closers, w.Close)
			delete(s.questions, k)
		}
	}
	for k, w := range s.codes {
		if !slices.Contains(keys, k) {
			closers = append(closers, w.Close)
			delete(s.codes, k)
		}
	}

	var errs []error
	for _, k := range keys {
		if s.questions[k] != nil || s.codes[k] != nil {
			continue
		}
		if err := s.mount(k); err != nil && !errors.Is(err, document.ErrNodeNotFound) {
			errs = append(errs, err)
		}
	}
	s.mu.Unlock()

	for _, c := range closers {
		c()
	}
	return errors.Join(errs...)
}

func (s *Session) mount(key string) error {
	n, err := s.doc.Node(key)
	if err != nil {
		return err
	}
	switch n.Kind() {
	case domain.KindQuestion:
		w, err := widget.MountQuestion(s.doc, key, widget.QuestionConfig{
			Submitter: s.cfg.Submitter,
			Username:  s.cfg.Username,
			Backfill:  s.cfg.Backfill,
			Logger:    s.logger,
		})
		if err != nil {
			return fmt.Errorf("mount question %s: %w", key, err)
		}
		s.questions[key] = w
	case domain.KindCode:
		w, err := widget.MountCode(s.doc, key, widget.CodeConfig{
			Executor:  s.cfg.Executor,
			Hints:     s.cfg.Hints,
			HintDelay: s.cfg.HintDelay,
			Logger:    s.logger,
		})
		if err != nil {
			return fmt.Errorf("mount code %s: %w", key, err)
		}
		s.codes[key] = w
	default:
		return fmt.Errorf("%w: %s", domain.ErrUnknownNodeKind, n.Kind())
	}
	s.logger.Debug("mounted widget", "key", key, "kind", n.Kind())
	return nil
}
