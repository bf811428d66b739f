package llm

// LLMRegistry is the registry surface the hint service and daemon use.
type LLMRegistry interface {
	List() []string
	Default() (Provider, error)
	Get(name string) (Provider, error)
	SetDefault(name string) error
	Register(name string, p Provider)
}

var (
	_ LLMRegistry = (*Registry)(nil)

	_ Provider = (*ClaudeProvider)(nil)
	_ Provider = (*OpenAIProvider)(nil)
	_ Provider = (*OllamaProvider)(nil)
	_ Provider = (*ResilientProvider)(nil)
)
