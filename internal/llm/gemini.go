package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GeminiOracle implements the Oracle interface for Google Gemini models
type GeminiOracle struct {
	client *genai.Client
	config Config
}

// NewGeminiOracle creates a Gemini client. Close releases it
func NewGeminiOracle(ctx context.Context, config Config) (*GeminiOracle, error) {
	if config.APIKey == "" {
		return nil, errors.New("Gemini API key is required")
	}

	opts := []option.ClientOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(config.BaseURL))
	}

	cl, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiOracle{client: cl, config: config}, nil
}

// Name returns the provider name
func (p *GeminiOracle) Name() string {
	return "gemini"
}

// Close releases the underlying client
func (p *GeminiOracle) Close() error {
	return p.client.Close()
}

// IsAvailable checks the configured model exists
func (p *GeminiOracle) IsAvailable(ctx context.Context) bool {
	name := resolveModel("", p.config.Model, "gemini-1.5-flash")
	if _, err := p.client.GenerativeModel(name).Info(ctx); err != nil {
		slog.Warn("Gemini API check failed", "model", name, "error", err)
		return false
	}
	return true
}

// Complete sends the prompt to GenerateContent
func (p *GeminiOracle) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	name := resolveModel(req.Model, p.config.Model, "gemini-1.5-flash")

	timeout := time.Duration(p.config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	m := p.client.GenerativeModel(name)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:     ptrFloat32(0),
		MaxOutputTokens: ptrInt32(int32(resolveMaxTokens(req.MaxTokens, p.config.MaxTokens))),
	}
	if req.JSON {
		m.GenerationConfig.ResponseMIMEType = "application/json"
	}
	if req.System != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.System)},
		}
	}

	resp, err := m.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		var gErr *googleapi.Error
		if errors.As(err, &gErr) {
			return nil, &APIError{Provider: "gemini", StatusCode: gErr.Code, Message: gErr.Message}
		}
		return nil, fmt.Errorf("gemini API error: %w", err)
	}

	txt := firstText(resp)
	if txt == "" {
		return nil, fmt.Errorf("gemini: empty response")
	}

	tokens := 0
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	return &CompletionResponse{
		Text:       strings.TrimSpace(txt),
		Model:      name,
		TokensUsed: tokens,
	}, nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }

func ptrInt32(v int32) *int32 { return &v }
