// Package grading compares program output against expected test cases.
//
// Output is split into lines, every line is trimmed, and empty lines are
// dropped. The surviving lines pair positionally with the test cases: line i
// is checked against test case i. A case passes when its line exists and
// equals the trimmed expected output exactly. A line count that disagrees
// with the number of cases is reported as a Mismatch, never as an error, and
// the pairwise results are still produced.
package grading

import (
	"fmt"
	"strings"

	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/domain"
)

// CaseResult is the verdict for one test case.
type CaseResult struct {
	Passed   bool   `json:"passed"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// MismatchKind tells which way the line count is off.
type MismatchKind string

const (
	NotEnoughOutput MismatchKind = "not_enough_output"
	TooMuchOutput   MismatchKind = "too_many_output"
)

// Mismatch reports that the number of output lines differs from the number
// of test cases.
type Mismatch struct {
	Kind     MismatchKind `json:"kind"`
	Expected int          `json:"expected"`
	Actual   int          `json:"actual"`
}

func (m Mismatch) String() string {
	if m.Kind == NotEnoughOutput {
		return fmt.Sprintf("Not enough output lines. Expected %d, got %d", m.Expected, m.Actual)
	}
	return fmt.Sprintf("Too many output lines. Expected %d, got %d", m.Expected, m.Actual)
}

// Verdict is the result of grading one run.
type Verdict struct {
	Results  []CaseResult `json:"results"`
	Passed   int          `json:"passedCount"`
	Total    int          `json:"totalCount"`
	Mismatch *Mismatch    `json:"mismatch,omitempty"`
}

// AllPassed reports whether every case passed and the line count matched.
func (v Verdict) AllPassed() bool {
	return v.Passed == v.Total && v.Mismatch == nil
}

// Summary renders the pass count, e.g. "2/3 tests passed".
func (v Verdict) Summary() string {
	return fmt.Sprintf("%d/%d tests passed", v.Passed, v.Total)
}

// Normalize splits output into trimmed, non-empty lines.
func Normalize(output string) []string {
	raw := strings.Split(output, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// Grade checks output against cases.
func Grade(output string, cases []domain.TestCase) Verdict {
	lines := Normalize(output)

	v := Verdict{
		Results: make([]CaseResult, len(cases)),
		Total:   len(cases),
	}
	for i, tc := range cases {
		expected := strings.TrimSpace(tc.ExpectedOutput)
		var actual string
		if i < len(lines) {
			actual = lines[i]
		}
		passed := i < len(lines) && actual == expected
		if passed {
			v.Passed++
		}
		v.Results[i] = CaseResult{Passed: passed, Expected: expected, Actual: actual}
	}

	switch {
	case len(lines) < len(cases):
		v.Mismatch = &Mismatch{Kind: NotEnoughOutput, Expected: len(cases), Actual: len(lines)}
	case len(lines) > len(cases):
		v.Mismatch = &Mismatch{Kind: TooMuchOutput, Expected: len(cases), Actual: len(lines)}
	}
	return v
}
