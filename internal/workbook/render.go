package workbook

import (
	"fmt"
	"strings"

	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/document"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/domain"
)

// Render returns a plain text view of the document and the state of every
// mounted widget.
func (s *Session) Render() string {
	var b strings.Builder

	mode := "learner"
	if s.doc.IsEditable() {
		mode = "author"
	}
	fmt.Fprintf(&b, "Document %s (%s mode)\n\n", s.doc.ID(), mode)

	for i, blk := range s.doc.Blocks() {
		switch blk.Kind {
		case document.BlockHeading1:
			fmt.Fprintf(&b, "[%d] # %s\n", i, blk.Text)
		case document.BlockHeading2:
			fmt.Fprintf(&b, "[%d] ## %s\n", i, blk.Text)
		case document.BlockBulletList:
			fmt.Fprintf(&b, "[%d] - %s\n", i, blk.Text)
		case document.BlockOrderedList:
			fmt.Fprintf(&b, "[%d] 1. %s\n", i, blk.Text)
		case document.BlockNode:
			s.renderNode(&b, i, blk)
		default:
			fmt.Fprintf(&b, "[%d] %s\n", i, blk.Text)
		}
	}
	return b.String()
}

func (s *Session) renderNode(b *strings.Builder, i int, blk document.Block) {
	switch n := blk.Node.(type) {
	case *domain.QuestionNode:
		fmt.Fprintf(b, "[%d] Quiz %s (key %s)\n    %s\n", i, n.ID, blk.Key, n.Question)
		for ci, choice := range n.Choices {
			marks := ""
			if v, ok := n.SelectedChoice.Get(); ok && v == ci {
				marks += " <selected>"
			}
			if v, ok := n.CorrectChoice.Get(); ok && v == ci && s.doc.IsEditable() {
				marks += " <correct>"
			}
			fmt.Fprintf(b, "    %d) %s%s\n", ci, choice, marks)
		}
		if w, err := s.Question(blk.Key); err == nil {
			st := w.State()
			switch {
			case st.Error != "":
				fmt.Fprintf(b, "    error: %s\n", st.Error)
			case st.Answered && st.Correct:
				b.WriteString("    answered: correct\n")
			case st.Answered:
				b.WriteString("    answered: incorrect\n")
			}
		}
	case *domain.CodeNode:
		fmt.Fprintf(b, "[%d] Code exercise (key %s)\n", i, blk.Key)
		if n.Question != "" {
			fmt.Fprintf(b, "    %s\n", n.Question)
		}
		for _, line := range strings.Split(strings.TrimRight(n.Code, "\n"), "\n") {
			fmt.Fprintf(b, "    | %s\n", line)
		}
		if len(n.TestCases) > 0 {
			fmt.Fprintf(b, "    %d test case(s)\n", len(n.TestCases))
		}
		w, err := s.Code(blk.Key)
		if err != nil {
			return
		}
		st := w.State()
		if st.Error != "" {
			fmt.Fprintf(b, "    error: %s\n", st.Error)
		} else if st.Output != "" {
			fmt.Fprintf(b, "    output: %q\n", st.Output)
		}
		if st.Results != nil {
			fmt.Fprintf(b, "    %s\n", st.Results.Summary())
			if st.Results.Mismatch != nil {
				fmt.Fprintf(b, "    %s\n", st.Results.Mismatch)
			}
		}
		if st.HintVisible && n.Hint != "" {
			fmt.Fprintf(b, "    hint: %s\n", n.Hint)
		}
	}
}
