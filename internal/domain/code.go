package domain

import "fmt"

const (
	// LanguagePython is the only language code nodes run.
	LanguagePython = "python"

	// DefaultCode is used when a code node has neither snapshot nor template.
	DefaultCode = "# Write your Python code here\n"
)

// TestCase is one expected output line. Input is persisted but reserved:
// grading never feeds it to the program.
type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
}

// CodeNode is an executable Python exercise persisted in the document.
type CodeNode struct {
	Language  string           `json:"language"`
	Code      string           `json:"code"`
	Template  Optional[string] `json:"template"`
	Question  string           `json:"question"`
	Hint      string           `json:"hint"`
	TestCases []TestCase       `json:"testCases"`
}

// NewCodeNode creates a code node whose code starts as the template, or the
// placeholder when there is no template.
func NewCodeNode(template Optional[string]) *CodeNode {
	return &CodeNode{
		Language: LanguagePython,
		Code:     template.OrElse(DefaultCode),
		Template: template,
	}
}

func (c *CodeNode) Kind() NodeKind {
	return KindCode
}

func (c *CodeNode) Clone() Node {
	cp := *c
	cp.TestCases = append([]TestCase(nil), c.TestCases...)
	return &cp
}

func (c *CodeNode) Validate() error {
	if c.Language != "" && c.Language != LanguagePython {
		return fmt.Errorf("%w: %s", ErrUnsupportedLanguage, c.Language)
	}
	return nil
}

// ResetTarget returns the code a learner reset restores: the snapshot when
// one exists, else the template, else DefaultCode.
func (c *CodeNode) ResetTarget(snapshot Optional[string]) string {
	if s, ok := snapshot.Get(); ok {
		return s
	}
	return c.Template.OrElse(DefaultCode)
}

// TemplateCode returns the template or an empty string.
func (c *CodeNode) TemplateCode() string {
	return c.Template.OrElse("")
}

// AddTestCase appends tc and returns its index.
func (c *CodeNode) AddTestCase(tc TestCase) int {
	c.TestCases = append(c.TestCases, tc)
	return len(c.TestCases) - 1
}

// SetTestCase replaces test case i.
func (c *CodeNode) SetTestCase(i int, tc TestCase) error {
	if i < 0 || i >= len(c.TestCases) {
		return ErrTestCaseOutOfRange
	}
	c.TestCases[i] = tc
	return nil
}

// RemoveTestCase deletes test case i.
func (c *CodeNode) RemoveTestCase(i int) error {
	if i < 0 || i >= len(c.TestCases) {
		return ErrTestCaseOutOfRange
	}
	c.TestCases = append(c.TestCases[:i], c.TestCases[i+1:]...)
	return nil
}
