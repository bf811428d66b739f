package hints

import (
	"fmt"
	"strings"
)

// maxCodeChars bounds each code section sent to the model.
const maxCodeChars = 6000

const systemPrompt = `You are a programming tutor helping a learner with a short Python exercise.
Your goal is to help them make progress, NOT to solve the exercise for them.

CONSTRAINTS:
- Give ONE hint of at most three sentences
- Point at the concept or the part of the code to look at
- Do NOT show corrected code or a full solution
- Do NOT repeat the exercise text back`

// Prompter builds hint prompts.
type Prompter struct{}

func NewPrompter() *Prompter {
	return &Prompter{}
}

// SystemPrompt returns the tutor instructions.
func (p *Prompter) SystemPrompt() string {
	return systemPrompt
}

// BuildPrompt renders the exercise and the learner's code. The starting
// template is included only when the learner has changed it, so the model
// can see what they wrote.
func (p *Prompter) BuildPrompt(req Request) string {
	var sb strings.Builder

	if q := strings.TrimSpace(req.Question); q != "" {
		sb.WriteString(fmt.Sprintf("## Exercise\n\n%s\n\n", q))
	}

	template := strings.TrimSpace(req.TemplateCode)
	current := strings.TrimSpace(req.CurrentCode)
	if template != "" && template != current {
		sb.WriteString(fmt.Sprintf("## Starting Template\n\n```python\n%s\n```\n\n", p.truncate(template, maxCodeChars)))
	}

	sb.WriteString("## Learner Code\n\n")
	if current == "" {
		sb.WriteString("(the learner has not written anything yet)\n\n")
	} else {
		sb.WriteString(fmt.Sprintf("```python\n%s\n```\n\n", p.truncate(current, maxCodeChars)))
	}

	sb.WriteString("## Task\n\n")
	if current == "" || current == template {
		sb.WriteString("Suggest a first step the learner could take.")
	} else {
		sb.WriteString("Give a hint about the most important problem or next step in the learner code.")
	}

	return sb.String()
}

func (p *Prompter) truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
