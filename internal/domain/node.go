package domain

// NodeKind names an embeddable exercise node type. The values double as the
// persisted type names in document snapshots.
type NodeKind string

const (
	KindQuestion NodeKind = "mcq"
	KindCode     NodeKind = "pythonCodeBlock"
)

// Node is an exercise node embedded in a document.
type Node interface {
	Kind() NodeKind
	// Clone returns a deep copy so callers never share attribute slices.
	Clone() Node
	// Validate checks the node invariants.
	Validate() error
}

// Ensure node types implement Node
var (
	_ Node = (*QuestionNode)(nil)
	_ Node = (*CodeNode)(nil)
)
