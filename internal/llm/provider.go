package llm

import (
	"fmt"

	"github.com/dialectic-sh/dialectic/internal/domain"
)

// Provider constants
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderOllama    = "ollama"
	ProviderMock      = "mock"
)

// Config carries provider connection settings. Zero values fall back to each
// provider's defaults; Ollama and mock need no API key.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// NewClient creates a generation client based on the provider name.
// Returns an error if the provider is unknown or a required API key is empty.
func NewClient(provider string, cfg Config) (domain.GenerationClient, error) {
	switch provider {
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for OpenAI provider")
		}
		return NewOpenAIClient(cfg.APIKey, cfg.Model, cfg.BaseURL), nil

	case ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for Anthropic provider")
		}
		return NewAnthropicClient(cfg.APIKey, cfg.Model), nil

	case ProviderGemini:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for Gemini provider")
		}
		return NewGeminiClient(cfg.APIKey, cfg.Model), nil

	case ProviderOllama:
		return NewOllamaClient(cfg.BaseURL, cfg.Model), nil

	case ProviderMock:
		return NewMockClient(), nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (valid options: openai, anthropic, gemini, ollama, mock)", provider)
	}
}
