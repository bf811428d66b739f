// Package commands implements the slash palette: a fixed catalog of block
// insertion commands, prefix filtering, and a keyboard navigation state
// machine that turns the chosen entry into a document mutation.
package commands

import (
	"strings"

	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/document"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/domain"
)

// MaxResults caps the filtered list.
const MaxResults = 10

// Action replaces the text selected by r with a new block.
type Action func(doc *document.Document, r document.Range) error

// Command is one palette entry.
type Command struct {
	Title       string
	Description string
	Action      Action
}

// DefaultCatalog returns the built-in commands in display order.
func DefaultCatalog() []Command {
	return []Command{
		{Title: "Heading 1", Description: "Big section heading", Action: setKind(document.BlockHeading1)},
		{Title: "Heading 2", Description: "Medium section heading", Action: setKind(document.BlockHeading2)},
		{Title: "Bullet List", Description: "Create a simple bullet list", Action: setKind(document.BlockBulletList)},
		{Title: "Numbered List", Description: "Create a list with numbering", Action: setKind(document.BlockOrderedList)},
		{Title: "Code Block", Description: "Add a Python code exercise", Action: insert(func() domain.Node {
			return domain.NewCodeNode(domain.None[string]())
		})},
		{Title: "Quiz", Description: "Add a multiple choice question", Action: insert(func() domain.Node {
			return domain.NewQuestionNode()
		})},
	}
}

func setKind(kind document.BlockKind) Action {
	return func(doc *document.Document, r document.Range) error {
		return doc.SetBlockKind(r, kind)
	}
}

func insert(newNode func() domain.Node) Action {
	return func(doc *document.Document, r document.Range) error {
		_, err := doc.InsertNode(r, newNode())
		return err
	}
}

// Filter returns the entries whose title starts with query, ignoring case,
// in catalog order and capped at MaxResults.
func Filter(catalog []Command, query string) []Command {
	q := strings.ToLower(query)
	out := make([]Command, 0, min(len(catalog), MaxResults))
	for _, c := range catalog {
		if len(out) == MaxResults {
			break
		}
		if strings.HasPrefix(strings.ToLower(c.Title), q) {
			out = append(out, c)
		}
	}
	return out
}

// Find returns the entry with the given title, ignoring case.
func Find(catalog []Command, title string) (Command, bool) {
	for _, c := range catalog {
		if strings.EqualFold(c.Title, title) {
			return c, true
		}
	}
	return Command{}, false
}
