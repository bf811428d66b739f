// Package mcp exposes exercise documents to agents as MCP tools: open a
// document, author exercises, switch modes and work through them as a
// learner.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mcp "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/server"

	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/document"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/domain"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/remote"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/widget"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/workbook"
)

var (
	ErrNotOpen       = errors.New("document is not open")
	ErrHintTimeout   = errors.New("hint did not arrive in time")
	ErrHintCancelled = errors.New("hint request was cancelled by a newer request or a mode change")
)

const hintPoll = 25 * time.Millisecond

// Server wraps the MCP server with exdoc functionality
type Server struct {
	mcpServer *server.Server
	cfg       Config
	logger    *slog.Logger

	mu       sync.Mutex
	sessions map[string]*workbook.Session
}

// Config contains configuration for the MCP server
type Config struct {
	// Remote services the widgets call. Nil services are built from Client.
	Executor  remote.Executor
	Hints     remote.HintGenerator
	Submitter remote.AnswerSubmitter
	Client    remote.Config

	// Store persists documents between tool calls. Nil keeps them in memory.
	Store document.SnapshotStore

	Username  string
	Backfill  widget.BackfillPolicy
	HintDelay time.Duration

	// HintWait bounds how long exdoc_hint waits (default: 90s)
	HintWait time.Duration

	Logger *slog.Logger
}

// NewServer creates a new MCP server for exdoc
func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Executor == nil {
		cfg.Executor = remote.NewExecutionClient(cfg.Client)
	}
	if cfg.Hints == nil {
		cfg.Hints = remote.NewHintClient(cfg.Client)
	}
	if cfg.Submitter == nil {
		cfg.Submitter = remote.NewSubmissionClient(cfg.Client)
	}
	if cfg.HintWait <= 0 {
		cfg.HintWait = 90 * time.Second
	}

	s := &Server{
		cfg:      cfg,
		logger:   cfg.Logger,
		sessions: make(map[string]*workbook.Session),
	}

	s.mcpServer = server.New(server.Info{
		Name:    "exdoc",
		Version: "0.1.0",
	}, server.WithInstructions(`
exdoc hosts documents with embedded exercises: multiple choice questions
and Python code exercises with expected-output test cases.

A document is in author mode (editable) or learner mode (locked).
Authors insert and edit exercises; learners answer, run and ask for hints.

Typical flow:
- exdoc_open: open or create a document
- exdoc_insert: insert "Quiz" or "Code Block" (author mode)
- exdoc_edit_question / exdoc_edit_code: fill in the exercise (author mode)
- exdoc_mode: switch to learner mode
- exdoc_select + exdoc_submit, or exdoc_set_code + exdoc_run / exdoc_hint
- exdoc_show: render the document and widget state
`))

	s.registerTools()

	return s
}

// registerTools registers all exdoc MCP tools
func (s *Server) registerTools() {
	s.mcpServer.Tool("exdoc_open").
		Description("Open a document by id, creating an empty one when it does not exist.").
		Handler(s.handleOpen)

	s.mcpServer.Tool("exdoc_show").
		Description("Render the document with the state of every exercise.").
		Handler(s.handleShow)

	s.mcpServer.Tool("exdoc_mode").
		Description("Switch between author mode (editable=true) and learner mode (editable=false).").
		Handler(s.handleMode)

	s.mcpServer.Tool("exdoc_append_text").
		Description("Append a text block (paragraph, heading1, heading2, bulletList, orderedList).").
		Handler(s.handleAppendText)

	s.mcpServer.Tool("exdoc_insert").
		Description("Run a slash command at the end of a text block, e.g. Quiz or Code Block.").
		Handler(s.handleInsert)

	s.mcpServer.Tool("exdoc_edit_question").
		Description("Set the question text, choices and correct choice of a quiz. Author mode only.").
		Handler(s.handleEditQuestion)

	s.mcpServer.Tool("exdoc_edit_code").
		Description("Set the prompt, template and test cases of a code exercise. Author mode only.").
		Handler(s.handleEditCode)

	s.mcpServer.Tool("exdoc_select").
		Description("Select a choice of a quiz. Learner mode only.").
		Handler(s.handleSelect)

	s.mcpServer.Tool("exdoc_submit").
		Description("Submit the selected choice of a quiz. Learner mode only.").
		Handler(s.handleSubmit)

	s.mcpServer.Tool("exdoc_set_code").
		Description("Replace the code of a code exercise.").
		Handler(s.handleSetCode)

	s.mcpServer.Tool("exdoc_run").
		Description("Run a code exercise and grade its output against the test cases.").
		Handler(s.handleRun)

	s.mcpServer.Tool("exdoc_hint").
		Description("Ask for a hint on a code exercise.").
		Handler(s.handleHint)

	s.mcpServer.Tool("exdoc_reset").
		Description("Reset a code exercise to its starting code. Learner mode only.").
		Handler(s.handleReset)

	s.mcpServer.Tool("exdoc_close").
		Description("Save and close a document.").
		Handler(s.handleClose)
}

// Input/Output types for tools

type DocumentInput struct {
	DocumentID string `json:"document_id" jsonschema:"description=Document id"`
}

type OpenOutput struct {
	DocumentID string   `json:"document_id"`
	Created    bool     `json:"created"`
	Editable   bool     `json:"editable"`
	Exercises  []string `json:"exercises"`
	View       string   `json:"view"`
}

type ShowOutput struct {
	View string `json:"view"`
}

type ModeInput struct {
	DocumentID string `json:"document_id" jsonschema:"description=Document id"`
	Editable   bool   `json:"editable" jsonschema:"description=true for author mode, false for learner mode"`
}

type ModeOutput struct {
	Editable bool `json:"editable"`
	Changed  bool `json:"changed"`
}

type AppendTextInput struct {
	DocumentID string `json:"document_id" jsonschema:"description=Document id"`
	Kind       string `json:"kind,omitempty" jsonschema:"description=Block kind (default: paragraph)"`
	Text       string `json:"text"`
}

type AppendTextOutput struct {
	Block int `json:"block"`
}

type InsertInput struct {
	DocumentID string `json:"document_id" jsonschema:"description=Document id"`
	Block      int    `json:"block" jsonschema:"description=Index of the text block to type the command into"`
	Command    string `json:"command" jsonschema:"description=Command title, e.g. Quiz, Code Block, Heading 1"`
}

type InsertOutput struct {
	Key     string `json:"key,omitempty"`
	Message string `json:"message"`
}

type EditQuestionInput struct {
	DocumentID string   `json:"document_id" jsonschema:"description=Document id"`
	Key        string   `json:"key" jsonschema:"description=Exercise key from exdoc_open or exdoc_insert"`
	Question   string   `json:"question,omitempty"`
	Choices    []string `json:"choices,omitempty" jsonschema:"description=Replaces all choices when set"`
	Correct    *int     `json:"correct,omitempty" jsonschema:"description=Index of the correct choice"`
}

type EditCodeInput struct {
	DocumentID string            `json:"document_id" jsonschema:"description=Document id"`
	Key        string            `json:"key" jsonschema:"description=Exercise key"`
	Question   string            `json:"question,omitempty"`
	Template   *string           `json:"template,omitempty" jsonschema:"description=Starting code; empty string clears it"`
	TestCases  []domain.TestCase `json:"test_cases,omitempty" jsonschema:"description=Replaces all test cases when set"`
}

type KeyInput struct {
	DocumentID string `json:"document_id" jsonschema:"description=Document id"`
	Key        string `json:"key" jsonschema:"description=Exercise key"`
}

type SelectInput struct {
	DocumentID string `json:"document_id" jsonschema:"description=Document id"`
	Key        string `json:"key" jsonschema:"description=Exercise key"`
	Choice     int    `json:"choice" jsonschema:"description=Index of the chosen answer"`
}

type SubmitOutput struct {
	SubmissionID string `json:"submission_id,omitempty"`
	Correct      bool   `json:"correct"`
	Message      string `json:"message"`
}

type SetCodeInput struct {
	DocumentID string `json:"document_id" jsonschema:"description=Document id"`
	Key        string `json:"key" jsonschema:"description=Exercise key"`
	Code       string `json:"code"`
}

type RunOutput struct {
	Output  string   `json:"output,omitempty"`
	Error   string   `json:"error,omitempty"`
	Summary string   `json:"summary,omitempty"`
	Failed  []string `json:"failed,omitempty"`
}

type HintOutput struct {
	Hint string `json:"hint"`
}

type MessageOutput struct {
	Message string `json:"message"`
}

// Tool handlers

func (s *Server) handleOpen(ctx context.Context, input DocumentInput) (OpenOutput, error) {
	id := strings.TrimSpace(input.DocumentID)
	if id == "" {
		return OpenOutput{}, errors.New("document_id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	created := false
	sess, ok := s.sessions[id]
	if !ok {
		doc, isNew, err := s.loadDocument(ctx, id)
		if err != nil {
			return OpenOutput{}, err
		}
		sess, err = workbook.Open(doc, workbook.Config{
			Executor:  s.cfg.Executor,
			Hints:     s.cfg.Hints,
			Submitter: s.cfg.Submitter,
			Username:  s.cfg.Username,
			Backfill:  s.cfg.Backfill,
			HintDelay: s.cfg.HintDelay,
			Logger:    s.logger,
		})
		if err != nil {
			doc.Close()
			return OpenOutput{}, fmt.Errorf("open document: %w", err)
		}
		s.sessions[id] = sess
		created = isNew
	}

	return OpenOutput{
		DocumentID: id,
		Created:    created,
		Editable:   sess.Document().IsEditable(),
		Exercises:  sess.Keys(),
		View:       sess.Render(),
	}, nil
}

// loadDocument reads id from the store, or starts a new editable document
// with one empty paragraph to type commands into.
func (s *Server) loadDocument(ctx context.Context, id string) (*document.Document, bool, error) {
	if s.cfg.Store != nil {
		snap, err := s.cfg.Store.LoadSnapshot(ctx, id)
		switch {
		case err == nil:
			snap.ID = id
			doc, err := document.FromSnapshot(snap)
			if err != nil {
				return nil, false, fmt.Errorf("load document: %w", err)
			}
			return doc, false, nil
		case !errors.Is(err, document.ErrSnapshotNotFound):
			return nil, false, fmt.Errorf("load document: %w", err)
		}
	}
	doc := document.New(id, true)
	if _, err := doc.AppendText(document.BlockParagraph, ""); err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

func (s *Server) session(id string) (*workbook.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s (call exdoc_open first)", ErrNotOpen, id)
	}
	return sess, nil
}

// save writes the document through to the store after an edit.
func (s *Server) save(ctx context.Context, sess *workbook.Session) error {
	if s.cfg.Store == nil {
		return nil
	}
	snap, err := sess.Document().Snapshot()
	if err != nil {
		return err
	}
	if err := s.cfg.Store.SaveSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

func (s *Server) handleShow(ctx context.Context, input DocumentInput) (ShowOutput, error) {
	sess, err := s.session(input.DocumentID)
	if err != nil {
		return ShowOutput{}, err
	}
	return ShowOutput{View: sess.Render()}, nil
}

func (s *Server) handleMode(ctx context.Context, input ModeInput) (ModeOutput, error) {
	sess, err := s.session(input.DocumentID)
	if err != nil {
		return ModeOutput{}, err
	}
	changed := sess.SetEditable(input.Editable)
	if changed {
		if err := s.save(ctx, sess); err != nil {
			return ModeOutput{}, err
		}
	}
	return ModeOutput{Editable: sess.Document().IsEditable(), Changed: changed}, nil
}

func (s *Server) handleAppendText(ctx context.Context, input AppendTextInput) (AppendTextOutput, error) {
	sess, err := s.session(input.DocumentID)
	if err != nil {
		return AppendTextOutput{}, err
	}
	if !sess.Document().IsEditable() {
		return AppendTextOutput{}, widget.ErrWrongMode
	}
	kind := document.BlockKind(input.Kind)
	if kind == "" {
		kind = document.BlockParagraph
	}
	if _, err := sess.Document().AppendText(kind, input.Text); err != nil {
		return AppendTextOutput{}, err
	}
	if err := s.save(ctx, sess); err != nil {
		return AppendTextOutput{}, err
	}
	return AppendTextOutput{Block: len(sess.Document().Blocks()) - 1}, nil
}

func (s *Server) handleInsert(ctx context.Context, input InsertInput) (InsertOutput, error) {
	sess, err := s.session(input.DocumentID)
	if err != nil {
		return InsertOutput{}, err
	}
	key, err := sess.RunCommand(input.Block, input.Command)
	if err != nil {
		return InsertOutput{}, fmt.Errorf("run command %q: %w", input.Command, err)
	}
	if err := s.save(ctx, sess); err != nil {
		return InsertOutput{}, err
	}
	if key == "" {
		return InsertOutput{Message: fmt.Sprintf("%s applied to block %d", input.Command, input.Block)}, nil
	}
	return InsertOutput{Key: key, Message: fmt.Sprintf("%s inserted", input.Command)}, nil
}

func (s *Server) handleEditQuestion(ctx context.Context, input EditQuestionInput) (MessageOutput, error) {
	sess, err := s.session(input.DocumentID)
	if err != nil {
		return MessageOutput{}, err
	}
	w, err := sess.Question(input.Key)
	if err != nil {
		return MessageOutput{}, err
	}

	if input.Question != "" {
		if err := w.SetQuestion(input.Question); err != nil {
			return MessageOutput{}, err
		}
	}
	if len(input.Choices) > 0 {
		if err := setChoices(w, input.Choices); err != nil {
			return MessageOutput{}, err
		}
	}
	if input.Correct != nil {
		if err := w.SetCorrect(*input.Correct); err != nil {
			return MessageOutput{}, err
		}
	}
	if err := s.save(ctx, sess); err != nil {
		return MessageOutput{}, err
	}
	return MessageOutput{Message: "Question updated"}, nil
}

// setChoices grows or shrinks the choice list to len(choices) and then
// writes every text.
func setChoices(w *widget.QuestionWidget, choices []string) error {
	if len(choices) < domain.MinChoices {
		return fmt.Errorf("%w: have %d", domain.ErrTooFewChoices, len(choices))
	}
	q, err := w.Node()
	if err != nil {
		return err
	}
	for n := len(q.Choices); n < len(choices); n++ {
		if _, err := w.AddChoice(); err != nil {
			return err
		}
	}
	for n := len(q.Choices); n > len(choices); n-- {
		if _, err := w.RemoveChoice(n - 1); err != nil {
			return err
		}
	}
	for i, text := range choices {
		if err := w.SetChoice(i, text); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) handleEditCode(ctx context.Context, input EditCodeInput) (MessageOutput, error) {
	sess, err := s.session(input.DocumentID)
	if err != nil {
		return MessageOutput{}, err
	}
	w, err := sess.Code(input.Key)
	if err != nil {
		return MessageOutput{}, err
	}

	if input.Question != "" {
		if err := w.SetQuestion(input.Question); err != nil {
			return MessageOutput{}, err
		}
	}
	if input.Template != nil {
		tmpl := domain.None[string]()
		if *input.Template != "" {
			tmpl = domain.Some(*input.Template)
		}
		if err := w.SetTemplate(tmpl); err != nil {
			return MessageOutput{}, err
		}
	}
	if input.TestCases != nil {
		node, err := w.Node()
		if err != nil {
			return MessageOutput{}, err
		}
		for i := len(node.TestCases) - 1; i >= 0; i-- {
			if err := w.RemoveTestCase(i); err != nil {
				return MessageOutput{}, err
			}
		}
		for _, tc := range input.TestCases {
			if _, err := w.AddTestCase(tc); err != nil {
				return MessageOutput{}, err
			}
		}
	}
	if err := s.save(ctx, sess); err != nil {
		return MessageOutput{}, err
	}
	return MessageOutput{Message: "Code exercise updated"}, nil
}

func (s *Server) handleSelect(ctx context.Context, input SelectInput) (MessageOutput, error) {
	sess, err := s.session(input.DocumentID)
	if err != nil {
		return MessageOutput{}, err
	}
	w, err := sess.Question(input.Key)
	if err != nil {
		return MessageOutput{}, err
	}
	if err := w.Select(input.Choice); err != nil {
		return MessageOutput{}, err
	}
	q, err := w.Node()
	if err != nil {
		return MessageOutput{}, err
	}
	return MessageOutput{Message: fmt.Sprintf("Selected %q", q.Choices[input.Choice])}, nil
}

func (s *Server) handleSubmit(ctx context.Context, input KeyInput) (SubmitOutput, error) {
	sess, err := s.session(input.DocumentID)
	if err != nil {
		return SubmitOutput{}, err
	}
	w, err := sess.Question(input.Key)
	if err != nil {
		return SubmitOutput{}, err
	}
	resp, err := w.Submit(ctx)
	if err != nil {
		return SubmitOutput{Message: remote.Message(err)}, err
	}
	st := w.State()
	return SubmitOutput{
		SubmissionID: resp.SubmissionID,
		Correct:      st.Correct,
		Message:      resp.Message,
	}, nil
}

func (s *Server) handleSetCode(ctx context.Context, input SetCodeInput) (MessageOutput, error) {
	sess, err := s.session(input.DocumentID)
	if err != nil {
		return MessageOutput{}, err
	}
	w, err := sess.Code(input.Key)
	if err != nil {
		return MessageOutput{}, err
	}
	if err := w.SetCode(input.Code); err != nil {
		return MessageOutput{}, err
	}
	return MessageOutput{Message: "Code updated"}, nil
}

func (s *Server) handleRun(ctx context.Context, input KeyInput) (RunOutput, error) {
	sess, err := s.session(input.DocumentID)
	if err != nil {
		return RunOutput{}, err
	}
	w, err := sess.Code(input.Key)
	if err != nil {
		return RunOutput{}, err
	}

	verdict, runErr := w.Run(ctx)
	st := w.State()
	out := RunOutput{Output: st.Output, Error: st.Error}
	if runErr != nil {
		// A failed run is reported in the output, not as a tool error.
		if out.Error == "" {
			out.Error = remote.Message(runErr)
		}
		return out, nil
	}
	if verdict != nil {
		out.Summary = verdict.Summary()
		for i, r := range verdict.Results {
			if !r.Passed {
				out.Failed = append(out.Failed, fmt.Sprintf("case %d: expected %q, got %q", i+1, r.Expected, r.Actual))
			}
		}
		if verdict.Mismatch != nil {
			out.Failed = append(out.Failed, verdict.Mismatch.String())
		}
	}
	return out, nil
}

// handleHint requests a hint and waits for the debounced request to finish.
func (s *Server) handleHint(ctx context.Context, input KeyInput) (HintOutput, error) {
	sess, err := s.session(input.DocumentID)
	if err != nil {
		return HintOutput{}, err
	}
	w, err := sess.Code(input.Key)
	if err != nil {
		return HintOutput{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.HintWait)
	defer cancel()

	token := w.RequestHint(ctx)
	if token == 0 {
		return HintOutput{}, widget.ErrClosed
	}

	ticker := time.NewTicker(hintPoll)
	defer ticker.Stop()
	for {
		if !w.HintCurrent(token) {
			return HintOutput{}, ErrHintCancelled
		}
		st := w.State()
		if !st.HintLoading {
			if st.HintError != "" {
				return HintOutput{}, errors.New(st.HintError)
			}
			node, err := w.Node()
			if err != nil {
				return HintOutput{}, err
			}
			return HintOutput{Hint: node.Hint}, nil
		}
		select {
		case <-ctx.Done():
			return HintOutput{}, ErrHintTimeout
		case <-ticker.C:
		}
	}
}

func (s *Server) handleReset(ctx context.Context, input KeyInput) (MessageOutput, error) {
	sess, err := s.session(input.DocumentID)
	if err != nil {
		return MessageOutput{}, err
	}
	w, err := sess.Code(input.Key)
	if err != nil {
		return MessageOutput{}, err
	}
	if err := w.Reset(); err != nil {
		return MessageOutput{}, err
	}
	return MessageOutput{Message: "Code reset"}, nil
}

func (s *Server) handleClose(ctx context.Context, input DocumentInput) (MessageOutput, error) {
	s.mu.Lock()
	sess, ok := s.sessions[input.DocumentID]
	delete(s.sessions, input.DocumentID)
	s.mu.Unlock()
	if !ok {
		return MessageOutput{}, fmt.Errorf("%w: %s", ErrNotOpen, input.DocumentID)
	}

	err := s.save(ctx, sess)
	sess.Close()
	sess.Document().Close()
	if err != nil {
		return MessageOutput{}, err
	}
	return MessageOutput{Message: "Document closed"}, nil
}

// Close saves and closes every open document.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*workbook.Session)
	s.mu.Unlock()

	var errs []error
	for _, sess := range sessions {
		errs = append(errs, s.save(ctx, sess))
		sess.Close()
		sess.Document().Close()
	}
	return errors.Join(errs...)
}

// ServeStdio starts the MCP server on stdio
func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

// ServeHTTP starts the MCP server on HTTP (alternative transport)
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	return mcp.ServeHTTP(ctx, s.mcpServer, addr)
}

// GetMCPServer returns the underlying MCP server (for testing)
func (s *Server) GetMCPServer() *server.Server {
	return s.mcpServer
}
