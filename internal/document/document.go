// Package document is the host document that exercise widgets live in: an
// ordered list of text blocks and embedded exercise nodes, the document-wide
// mode flag, and the two change channels widgets listen on.
package document

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/domain"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/mode"
)

var (
	ErrNodeNotFound  = errors.New("node not found")
	ErrWrongNodeKind = errors.New("node has a different kind")
	ErrInvalidRange  = errors.New("invalid range")
	ErrNotTextBlock  = errors.New("block is not a text block")
	ErrNilNode       = errors.New("node is nil")
)

// Event names a change channel.
type Event string

const (
	// EventTransaction fires after every applied mutation.
	EventTransaction Event = "transaction"
	// EventUpdate fires when content changed and when the mode flag changed.
	EventUpdate Event = "update"
)

// BlockKind is the type of a block.
type BlockKind string

const (
	BlockParagraph   BlockKind = "paragraph"
	BlockHeading1    BlockKind = "heading1"
	BlockHeading2    BlockKind = "heading2"
	BlockBulletList  BlockKind = "bulletList"
	BlockOrderedList BlockKind = "orderedList"
	BlockNode        BlockKind = "node"
)

// IsText reports whether k holds text rather than a node.
func (k BlockKind) IsText() bool {
	switch k {
	case BlockParagraph, BlockHeading1, BlockHeading2, BlockBulletList, BlockOrderedList:
		return true
	}
	return false
}

// Block is one entry of the document. Node is set only for BlockNode.
type Block struct {
	Key  string
	Kind BlockKind
	Text string
	Node domain.Node
}

func (b *Block) clone() Block {
	c := *b
	if b.Node != nil {
		c.Node = b.Node.Clone()
	}
	return c
}

// Range selects text inside one text block. From and To are byte offsets.
type Range struct {
	Block int
	From  int
	To    int
}

// Document is safe for concurrent use. Event handlers run on the goroutine
// that applied the change, after the document lock is released, so handlers
// may read and mutate the document.
type Document struct {
	id      string
	mode    *mode.Signal
	modeSub *mode.Subscription

	mu      sync.RWMutex
	blocks  []*Block
	version uint64

	hmu      sync.RWMutex
	handlers map[Event][]handler
	nextID   uint64
}

type handler struct {
	id uint64
	fn func()
}

// New creates an empty document.
func New(id string, editable bool) *Document {
	if id == "" {
		id = uuid.New().String()
	}
	d := &Document{
		id:       id,
		mode:     mode.NewSignal(editable),
		handlers: make(map[Event][]handler),
	}
	d.modeSub = d.mode.Subscribe(func(bool) {
		d.emit(EventUpdate)
	})
	return d
}

// ID returns the document id.
func (d *Document) ID() string {
	return d.id
}

// IsEditable reports the current mode: true for author mode, false for learner mode.
func (d *Document) IsEditable() bool {
	return d.mode.Editable()
}

// SetEditable flips the document mode. The document owner is the only writer.
func (d *Document) SetEditable(editable bool) bool {
	return d.mode.Set(editable)
}

// Version increments on every applied mutation.
func (d *Document) Version() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.version
}

// Close detaches the document from its mode signal and drops all handlers.
func (d *Document) Close() {
	d.modeSub.Unsubscribe()
	d.hmu.Lock()
	d.handlers = make(map[Event][]handler)
	d.hmu.Unlock()
}

// Blocks returns a deep copy of the block list.
func (d *Document) Blocks() []Block {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Block, len(d.blocks))
	for i, b := range d.blocks {
		out[i] = b.clone()
	}
	return out
}

// NodeKeys returns the keys of all node blocks in document order.
func (d *Document) NodeKeys() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var keys []string
	for _, b := range d.blocks {
		if b.Kind == BlockNode {
			keys = append(keys, b.Key)
		}
	}
	return keys
}

// AppendText adds a text block at the end and returns its key.
func (d *Document) AppendText(kind BlockKind, text string) (string, error) {
	if !kind.IsText() {
		return "", fmt.Errorf("%w: %s", ErrNotTextBlock, kind)
	}
	key := newKey()
	d.apply(func() {
		d.blocks = append(d.blocks, &Block{Key: key, Kind: kind, Text: text})
	})
	return key, nil
}

// AppendNode adds a node block at the end and returns its key.
func (d *Document) AppendNode(n domain.Node) (string, error) {
	if err := checkNode(n); err != nil {
		return "", err
	}
	key := newKey()
	d.apply(func() {
		d.blocks = append(d.blocks, &Block{Key: key, Kind: BlockNode, Node: n.Clone()})
	})
	return key, nil
}

// InsertNode replaces the text selected by r with n. Text left of the range
// stays in the original block, text right of it moves to a block after the
// node, and a block emptied by the replacement is dropped.
func (d *Document) InsertNode(r Range, n domain.Node) (string, error) {
	if err := checkNode(n); err != nil {
		return "", err
	}

	key := newKey()
	var err error
	d.applyIf(func() bool {
		var b *Block
		if b, err = d.textBlock(r); err != nil {
			return false
		}
		left, right := b.Text[:r.From], b.Text[r.To:]
		node := &Block{Key: key, Kind: BlockNode, Node: n.Clone()}

		var replacement []*Block
		switch {
		case left != "":
			b.Text = left
			replacement = append(replacement, b, node)
			if right != "" {
				replacement = append(replacement, &Block{Key: newKey(), Kind: b.Kind, Text: right})
			}
		case right != "":
			b.Text = right
			replacement = append(replacement, node, b)
		default:
			replacement = append(replacement, node)
		}
		d.splice(r.Block, replacement)
		return true
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

// SetBlockKind deletes the text selected by r and retypes its block.
func (d *Document) SetBlockKind(r Range, kind BlockKind) error {
	if !kind.IsText() {
		return fmt.Errorf("%w: %s", ErrNotTextBlock, kind)
	}
	var err error
	d.applyIf(func() bool {
		var b *Block
		if b, err = d.textBlock(r); err != nil {
			return false
		}
		b.Text = b.Text[:r.From] + b.Text[r.To:]
		b.Kind = kind
		return true
	})
	return err
}

// SetText replaces the text of a text block.
func (d *Document) SetText(block int, text string) error {
	var err error
	d.applyIf(func() bool {
		var b *Block
		if b, err = d.textBlock(Range{Block: block}); err != nil {
			return false
		}
		b.Text = text
		return true
	})
	return err
}

// Node returns a copy of the node stored under key.
func (d *Document) Node(key string) (domain.Node, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	b, _ := d.find(key)
	if b == nil {
		return nil, ErrNodeNotFound
	}
	return b.Node.Clone(), nil
}

// Question returns a copy of the question node stored under key.
func (d *Document) Question(key string) (*domain.QuestionNode, error) {
	n, err := d.Node(key)
	if err != nil {
		return nil, err
	}
	q, ok := n.(*domain.QuestionNode)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWrongNodeKind, n.Kind())
	}
	return q, nil
}

// Code returns a copy of the code node stored under key.
func (d *Document) Code(key string) (*domain.CodeNode, error) {
	n, err := d.Node(key)
	if err != nil {
		return nil, err
	}
	c, ok := n.(*domain.CodeNode)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWrongNodeKind, n.Kind())
	}
	return c, nil
}

// UpdateNode applies fn to a copy of the node and stores the copy when fn
// succeeds and the result validates. Nothing changes otherwise.
func (d *Document) UpdateNode(key string, fn func(domain.Node) error) error {
	var err error
	d.applyIf(func() bool {
		b, _ := d.find(key)
		if b == nil {
			err = ErrNodeNotFound
			return false
		}
		next := b.Node.Clone()
		if err = fn(next); err != nil {
			return false
		}
		if err = next.Validate(); err != nil {
			return false
		}
		b.Node = next
		return true
	})
	return err
}

// UpdateQuestion is UpdateNode for question nodes.
func (d *Document) UpdateQuestion(key string, fn func(*domain.QuestionNode) error) error {
	return d.UpdateNode(key, func(n domain.Node) error {
		q, ok := n.(*domain.QuestionNode)
		if !ok {
			return fmt.Errorf("%w: %s", ErrWrongNodeKind, n.Kind())
		}
		return fn(q)
	})
}

// UpdateCode is UpdateNode for code nodes.
func (d *Document) UpdateCode(key string, fn func(*domain.CodeNode) error) error {
	return d.UpdateNode(key, func(n domain.Node) error {
		c, ok := n.(*domain.CodeNode)
		if !ok {
			return fmt.Errorf("%w: %s", ErrWrongNodeKind, n.Kind())
		}
		return fn(c)
	})
}

// DeleteNode removes the node block stored under key.
func (d *Document) DeleteNode(key string) error {
	var err error
	d.applyIf(func() bool {
		_, i := d.find(key)
		if i < 0 {
			err = ErrNodeNotFound
			return false
		}
		d.blocks = append(d.blocks[:i], d.blocks[i+1:]...)
		return true
	})
	return err
}

// On registers fn for ev and returns the handle that releases it.
func (d *Document) On(ev Event, fn func()) *Subscription {
	d.hmu.Lock()
	defer d.hmu.Unlock()

	d.nextID++
	id := d.nextID
	d.handlers[ev] = append(d.handlers[ev], handler{id: id, fn: fn})
	return &Subscription{release: func() { d.off(ev, id) }}
}

// Listeners returns the number of handlers registered for ev.
func (d *Document) Listeners(ev Event) int {
	d.hmu.RLock()
	defer d.hmu.RUnlock()
	return len(d.handlers[ev])
}

func (d *Document) off(ev Event, id uint64) {
	d.hmu.Lock()
	defer d.hmu.Unlock()
	hs := d.handlers[ev]
	for i, h := range hs {
		if h.id == id {
			d.handlers[ev] = append(hs[:i:i], hs[i+1:]...)
			return
		}
	}
}

func (d *Document) emit(events ...Event) {
	for _, ev := range events {
		d.hmu.RLock()
		hs := append([]handler(nil), d.handlers[ev]...)
		d.hmu.RUnlock()
		for _, h := range hs {
			h.fn()
		}
	}
}

// apply runs an infallible mutation.
func (d *Document) apply(mutate func()) {
	d.applyIf(func() bool {
		mutate()
		return true
	})
}

// applyIf runs mutate under the write lock and, when it reports a change,
// bumps the version and notifies both channels after unlocking.
func (d *Document) applyIf(mutate func() bool) {
	d.mu.Lock()
	changed := mutate()
	if changed {
		d.version++
	}
	d.mu.Unlock()

	if changed {
		d.emit(EventTransaction, EventUpdate)
	}
}

func (d *Document) find(key string) (*Block, int) {
	for i, b := range d.blocks {
		if b.Key == key && b.Kind == BlockNode {
			return b, i
		}
	}
	return nil, -1
}

func (d *Document) textBlock(r Range) (*Block, error) {
	if r.Block < 0 || r.Block >= len(d.blocks) {
		return nil, fmt.Errorf("%w: block %d", ErrInvalidRange, r.Block)
	}
	b := d.blocks[r.Block]
	if !b.Kind.IsText() {
		return nil, ErrNotTextBlock
	}
	if r.From < 0 || r.From > r.To || r.To > len(b.Text) {
		return nil, fmt.Errorf("%w: [%d,%d) of %d", ErrInvalidRange, r.From, r.To, len(b.Text))
	}
	return b, nil
}

func (d *Document) splice(at int, replacement []*Block) {
	out := make([]*Block, 0, len(d.blocks)+len(replacement)-1)
	out = append(out, d.blocks[:at]...)
	out = append(out, replacement...)
	out = append(out, d.blocks[at+1:]...)
	d.blocks = out
}

func checkNode(n domain.Node) error {
	if n == nil {
		return ErrNilNode
	}
	return n.Validate()
}

func newKey() string {
	return uuid.New().String()
}

// Subscription releases one event handler.
type Subscription struct {
	once    sync.Once
	release func()
}

// Unsubscribe removes the handler. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(s.release)
}
