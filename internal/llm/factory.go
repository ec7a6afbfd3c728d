package llm

import (
	"context"
	"fmt"
	"strings"
)

// NewOracle creates an oracle based on configuration.
// An empty provider returns nil: the oracle is disabled
func NewOracle(ctx context.Context, config Config) (Oracle, error) {
	provider := strings.ToLower(config.Provider)

	switch provider {
	case "openai":
		return NewOpenAIOracle(config)

	case "anthropic", "claude":
		return NewAnthropicOracle(config)

	case "ollama":
		return NewOllamaOracle(config)

	case "gemini", "google":
		return NewGeminiOracle(ctx, config)

	case "":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, anthropic, ollama, gemini)", config.Provider)
	}
}
