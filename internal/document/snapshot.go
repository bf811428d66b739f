package document

import (
	"encoding/json"
	"fmt"

	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/domain"
)

// Snapshot is the persisted form of a document.
type Snapshot struct {
	ID       string          `json:"id"`
	Editable bool            `json:"editable"`
	Blocks   []SnapshotBlock `json:"blocks"`
}

// SnapshotBlock stores either text (Type is a text block kind) or node
// attributes (Type is a node kind).
type SnapshotBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	Attrs json.RawMessage `json:"attrs,omitempty"`
}

// Snapshot captures the current document.
func (d *Document) Snapshot() (Snapshot, error) {
	s := Snapshot{ID: d.id, Editable: d.IsEditable()}
	for _, b := range d.Blocks() {
		if b.Kind != BlockNode {
			s.Blocks = append(s.Blocks, SnapshotBlock{Type: string(b.Kind), Text: b.Text})
			continue
		}
		attrs, err := json.Marshal(b.Node)
		if err != nil {
			return Snapshot{}, fmt.Errorf("marshal %s node: %w", b.Node.Kind(), err)
		}
		s.Blocks = append(s.Blocks, SnapshotBlock{Type: string(b.Node.Kind()), Attrs: attrs})
	}
	return s, nil
}

// FromSnapshot rebuilds a document. Question nodes saved without an id get
// one here and keep it from then on.
func FromSnapshot(s Snapshot) (*Document, error) {
	blocks, err := decodeBlocks(s.Blocks)
	if err != nil {
		return nil, err
	}
	d := New(s.ID, s.Editable)
	d.blocks = blocks
	return d, nil
}

// Restore replaces the content of d with the blocks of s. The mode is left
// alone; SetEditable stays its only writer. Existing node keys are not
// preserved.
func (d *Document) Restore(s Snapshot) error {
	blocks, err := decodeBlocks(s.Blocks)
	if err != nil {
		return err
	}
	d.apply(func() {
		d.blocks = blocks
	})
	return nil
}

func decodeBlocks(in []SnapshotBlock) ([]*Block, error) {
	blocks := make([]*Block, 0, len(in))
	for i, sb := range in {
		if kind := BlockKind(sb.Type); kind.IsText() {
			blocks = append(blocks, &Block{Key: newKey(), Kind: kind, Text: sb.Text})
			continue
		}
		n, err := decodeNode(domain.NodeKind(sb.Type), sb.Attrs)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		blocks = append(blocks, &Block{Key: newKey(), Kind: BlockNode, Node: n})
	}
	return blocks, nil
}

func decodeNode(kind domain.NodeKind, attrs json.RawMessage) (domain.Node, error) {
	var n domain.Node
	switch kind {
	case domain.KindQuestion:
		q := &domain.QuestionNode{}
		if err := json.Unmarshal(attrs, q); err != nil {
			return nil, fmt.Errorf("decode question: %w", err)
		}
		q.EnsureID()
		n = q
	case domain.KindCode:
		c := &domain.CodeNode{Language: domain.LanguagePython}
		if err := json.Unmarshal(attrs, c); err != nil {
			return nil, fmt.Errorf("decode code: %w", err)
		}
		n = c
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownNodeKind, kind)
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}

// MarshalJSON implements json.Marshaler
func (d *Document) MarshalJSON() ([]byte, error) {
	s, err := d.Snapshot()
	if err != nil {
		return nil, err
	}
	return json.Marshal(s)
}
