package domain

import "fmt"

const (
	// DefaultQuestionText is the prompt a new question starts with.
	DefaultQuestionText = "Enter your question here"

	// MinChoices is the smallest number of choices a question may hold.
	MinChoices = 2
)

// QuestionNode is a multiple-choice question persisted in the document.
type QuestionNode struct {
	ID             string        `json:"id"`
	Question       string        `json:"question"`
	Choices        []string      `json:"choices"`
	CorrectChoice  Optional[int] `json:"correctChoiceIndex"`
	SelectedChoice Optional[int] `json:"selectedChoiceIndex"`
}

// NewQuestionNode creates a question with a fresh id and default choices.
func NewQuestionNode() *QuestionNode {
	return &QuestionNode{
		ID:       NewQuestionID(),
		Question: DefaultQuestionText,
		Choices:  []string{"Option 1", "Option 2"},
	}
}

func (q *QuestionNode) Kind() NodeKind {
	return KindQuestion
}

func (q *QuestionNode) Clone() Node {
	c := *q
	c.Choices = append([]string(nil), q.Choices...)
	return &c
}

// Validate checks the choice count and that both indices point into Choices.
func (q *QuestionNode) Validate() error {
	if len(q.Choices) < MinChoices {
		return fmt.Errorf("%w: have %d", ErrTooFewChoices, len(q.Choices))
	}
	if i, ok := q.CorrectChoice.Get(); ok && !q.inRange(i) {
		return fmt.Errorf("correct choice %d: %w", i, ErrChoiceOutOfRange)
	}
	if i, ok := q.SelectedChoice.Get(); ok && !q.inRange(i) {
		return fmt.Errorf("selected choice %d: %w", i, ErrChoiceOutOfRange)
	}
	return nil
}

// EnsureID assigns an id when the node has none. It reports whether one was
// assigned. Existing ids are never replaced.
func (q *QuestionNode) EnsureID() bool {
	if q.ID != "" {
		return false
	}
	q.ID = NewQuestionID()
	return true
}

// SetChoice replaces the text of choice i.
func (q *QuestionNode) SetChoice(i int, text string) error {
	if !q.inRange(i) {
		return ErrChoiceOutOfRange
	}
	q.Choices[i] = text
	return nil
}

// AddChoice appends a default-labelled choice and returns its index.
func (q *QuestionNode) AddChoice() int {
	q.Choices = append(q.Choices, fmt.Sprintf("Option %d", len(q.Choices)+1))
	return len(q.Choices) - 1
}

// RemoveChoice deletes choice i and keeps the correct and selected indices
// pointing at the same choices. Indices equal to i are cleared, indices past i
// shift down by one. Removing at MinChoices is a no-op and returns false.
func (q *QuestionNode) RemoveChoice(i int) (bool, error) {
	if !q.inRange(i) {
		return false, ErrChoiceOutOfRange
	}
	if len(q.Choices) <= MinChoices {
		return false, nil
	}

	q.Choices = append(q.Choices[:i], q.Choices[i+1:]...)
	q.CorrectChoice = shiftAfterRemoval(q.CorrectChoice, i)
	q.SelectedChoice = shiftAfterRemoval(q.SelectedChoice, i)
	return true, nil
}

// SetCorrect marks choice i as the correct answer.
func (q *QuestionNode) SetCorrect(i int) error {
	if !q.inRange(i) {
		return ErrChoiceOutOfRange
	}
	q.CorrectChoice = Some(i)
	return nil
}

// Select records the learner's choice.
func (q *QuestionNode) Select(i int) error {
	if !q.inRange(i) {
		return ErrChoiceOutOfRange
	}
	q.SelectedChoice = Some(i)
	return nil
}

// ClearSelection forgets the learner's choice.
func (q *QuestionNode) ClearSelection() {
	q.SelectedChoice = None[int]()
}

// SelectedText returns the text of the selected choice.
func (q *QuestionNode) SelectedText() (string, bool) {
	return q.choiceText(q.SelectedChoice)
}

// CorrectText returns the text of the correct choice.
func (q *QuestionNode) CorrectText() (string, bool) {
	return q.choiceText(q.CorrectChoice)
}

// IsSelectionCorrect reports whether a selection exists and equals the correct choice.
func (q *QuestionNode) IsSelectionCorrect() bool {
	sel, ok := q.SelectedChoice.Get()
	return ok && indexIs(q.CorrectChoice, sel)
}

func (q *QuestionNode) choiceText(o Optional[int]) (string, bool) {
	i, ok := o.Get()
	if !ok || !q.inRange(i) {
		return "", false
	}
	return q.Choices[i], true
}

func (q *QuestionNode) inRange(i int) bool {
	return i >= 0 && i < len(q.Choices)
}

func shiftAfterRemoval(o Optional[int], removed int) Optional[int] {
	i, ok := o.Get()
	switch {
	case !ok:
		return o
	case i == removed:
		return None[int]()
	case i > removed:
		return Some(i - 1)
	default:
		return o
	}
}
