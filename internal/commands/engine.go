package commands

import (
	"errors"
	"log/slog"
	"slices"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/document"
)

// TriggerChar opens the palette.
const TriggerChar = '/'

// NoResults is shown when nothing matches the query.
const NoResults = "No results"

var (
	ErrInactive    = errors.New("command palette is not open")
	ErrNotEditable = errors.New("document is locked")
	ErrNoSelection = errors.New("no command selected")
)

// Key is a navigation key.
type Key string

const (
	KeyUp     Key = "ArrowUp"
	KeyDown   Key = "ArrowDown"
	KeyEnter  Key = "Enter"
	KeyEscape Key = "Escape"
)

// FindTrigger looks back from cursor for a trigger character that starts the
// text or follows whitespace. It returns the trigger offset and the query
// typed after it. Whitespace between the trigger and the cursor means there
// is no trigger.
func FindTrigger(text string, cursor int) (int, string, bool) {
	if cursor < 0 || cursor > len(text) {
		return 0, "", false
	}
	for i := cursor; i > 0; {
		r, size := utf8.DecodeLastRuneInString(text[:i])
		i -= size
		if unicode.IsSpace(r) {
			return 0, "", false
		}
		if r != TriggerChar {
			continue
		}
		if i == 0 {
			return i, text[i+size : cursor], true
		}
		prev, _ := utf8.DecodeLastRuneInString(text[:i])
		if unicode.IsSpace(prev) {
			return i, text[i+size : cursor], true
		}
		return 0, "", false
	}
	return 0, "", false
}

// Engine is the palette state for one document.
type Engine struct {
	doc     *document.Document
	catalog []Command
	logger  *slog.Logger

	mu       sync.Mutex
	active   bool
	block    int
	from     int
	cursor   int
	query    string
	items    []Command
	selected int
}

// NewEngine creates a closed palette over doc. A nil catalog uses
// DefaultCatalog.
func NewEngine(doc *document.Document, catalog []Command, logger *slog.Logger) *Engine {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{doc: doc, catalog: catalog, logger: logger}
}

// HandleInput is called after every keystroke with the text of the block
// holding the cursor. It opens, refilters or closes the palette and reports
// whether it is open afterwards.
func (e *Engine) HandleInput(block int, text string, cursor int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.doc.IsEditable() {
		e.closeLocked()
		return false
	}
	from, query, ok := FindTrigger(text, cursor)
	if !ok || (e.active && (block != e.block || from != e.from)) {
		e.closeLocked()
		if !ok {
			return false
		}
	}

	items := Filter(e.catalog, query)
	if !e.active || !sameTitles(items, e.items) {
		e.selected = 0
	}
	e.active = true
	e.block, e.from, e.cursor, e.query = block, from, cursor, query
	e.items = items
	return true
}

// Active reports whether the palette is open.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Query returns the text typed after the trigger.
func (e *Engine) Query() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.query
}

// Items returns the filtered entries.
func (e *Engine) Items() []Command {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.items)
}

// Selected returns the highlighted index.
func (e *Engine) Selected() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selected
}

// Empty reports an open palette with no matches. It stays open and shows
// NoResults.
func (e *Engine) Empty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active && len(e.items) == 0
}

// Range returns the text range the chosen command will replace.
func (e *Engine) Range() document.Range {
	e.mu.Lock()
	defer e.mu.Unlock()
	return document.Range{Block: e.block, From: e.from, To: e.cursor}
}

// KeyDown handles a navigation key. It reports whether the key was consumed.
func (e *Engine) KeyDown(k Key) (bool, error) {
	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return false, nil
	}
	n := len(e.items)
	switch k {
	case KeyUp:
		if n > 0 {
			e.selected = (e.selected - 1 + n) % n
		}
	case KeyDown:
		if n > 0 {
			e.selected = (e.selected + 1) % n
		}
	case KeyEscape:
		e.closeLocked()
	case KeyEnter:
		i := e.selected
		e.mu.Unlock()
		if n == 0 {
			return true, nil
		}
		return true, e.Select(i)
	default:
		e.mu.Unlock()
		return false, nil
	}
	e.mu.Unlock()
	return true, nil
}

// Select runs entry i against the trigger range and closes the palette.
func (e *Engine) Select(i int) error {
	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return ErrInactive
	}
	if i < 0 || i >= len(e.items) {
		e.mu.Unlock()
		return ErrNoSelection
	}
	cmd := e.items[i]
	r := document.Range{Block: e.block, From: e.from, To: e.cursor}
	e.closeLocked()
	e.mu.Unlock()

	if !e.doc.IsEditable() {
		return ErrNotEditable
	}
	if err := cmd.Action(e.doc, r); err != nil {
		e.logger.Warn("command failed", "command", cmd.Title, "error", err)
		return err
	}
	e.logger.Debug("command applied", "command", cmd.Title, "block", r.Block)
	return nil
}

// Exit closes the palette without inserting.
func (e *Engine) Exit() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closeLocked()
}

func (e *Engine) closeLocked() {
	e.active = false
	e.items = nil
	e.query = ""
	e.selected = 0
}

func sameTitles(a, b []Command) bool {
	return slices.EqualFunc(a, b, func(x, y Command) bool {
		return x.Title == y.Title
	})
}
