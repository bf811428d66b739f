// Package hints turns an exercise and the learner's code into a short hint.
package hints

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/llm"
)

var (
	ErrNothingToHint = errors.New("question or code is required")
	ErrEmptyHint     = errors.New("provider returned an empty hint")
)

// MaxHintChars caps the hint shown under a code exercise.
const MaxHintChars = 600

// Request mirrors the hint endpoint body.
type Request struct {
	TemplateCode string
	CurrentCode  string
	Question     string
}

// Service generates hints through the provider registry.
type Service struct {
	registry llm.LLMRegistry
	provider string
	prompter *Prompter
	logger   *slog.Logger
}

// NewService creates a hint service. An empty provider name uses the
// registry default.
func NewService(registry llm.LLMRegistry, provider string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		registry: registry,
		provider: provider,
		prompter: NewPrompter(),
		logger:   logger,
	}
}

// Generate returns a cleaned hint for req.
func (s *Service) Generate(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Question) == "" && strings.TrimSpace(req.CurrentCode) == "" {
		return "", ErrNothingToHint
	}

	provider, err := s.resolve()
	if err != nil {
		return "", fmt.Errorf("get LLM provider: %w", err)
	}

	resp, err := provider.Generate(ctx, &llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: s.prompter.BuildPrompt(req)},
		},
		System:      s.prompter.SystemPrompt(),
		MaxTokens:   256,
		Temperature: 0.4,
	})
	if err != nil {
		return "", fmt.Errorf("generate hint: %w", err)
	}

	hint := Clean(resp.Content)
	if hint == "" {
		return "", ErrEmptyHint
	}
	s.logger.Debug("hint generated",
		"provider", provider.Name(),
		"output_tokens", resp.Usage.OutputTokens)
	return hint, nil
}

func (s *Service) resolve() (llm.Provider, error) {
	if s.provider != "" && s.provider != "auto" {
		return s.registry.Get(s.provider)
	}
	return s.registry.Default()
}

var (
	hintPrefix = regexp.MustCompile(`(?i)^\s*(\*\*)?hint(\*\*)?\s*:\s*`)
	blankRuns  = regexp.MustCompile(`\n{3,}`)
)

// Clean strips a leading "Hint:" label, collapses runs of blank lines and
// caps the length at a word boundary.
func Clean(s string) string {
	s = strings.TrimSpace(s)
	s = hintPrefix.ReplaceAllString(s, "")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	s = strings.TrimSpace(s)

	if len(s) <= MaxHintChars {
		return s
	}
	cut := s[:MaxHintChars]
	if i := strings.LastIndexAny(cut, " \n"); i > MaxHintChars/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut) + "..."
}
