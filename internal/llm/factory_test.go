package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ppiankov/adjudex/internal/model"
)

func TestNewOracle_Disabled(t *testing.T) {
	oracle, err := NewOracle(context.Background(), Config{Provider: ""})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if oracle != nil {
		t.Errorf("Expected nil oracle when disabled")
	}
}

func TestNewOracle_Providers(t *testing.T) {
	tests := []struct {
		provider string
		config   Config
		wantName string
	}{
		{"openai", Config{Provider: "openai", APIKey: "k"}, "openai"},
		{"claude alias", Config{Provider: "Claude", APIKey: "k"}, "anthropic"},
		{"ollama", Config{Provider: "ollama", Model: "llama3.1"}, "ollama"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			oracle, err := NewOracle(context.Background(), tt.config)
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if oracle.Name() != tt.wantName {
				t.Errorf("Expected %s, got %s", tt.wantName, oracle.Name())
			}
		})
	}
}

func TestNewOracle_Unknown(t *testing.T) {
	if _, err := NewOracle(context.Background(), Config{Provider: "bard"}); err == nil {
		t.Fatal("Expected error for unknown provider")
	}
}

func TestNewOracle_GeminiNeedsKey(t *testing.T) {
	if _, err := NewOracle(context.Background(), Config{Provider: "gemini"}); err == nil {
		t.Fatal("Expected error for missing Gemini API key")
	}
}

func TestConfigFromModel(t *testing.T) {
	c := ConfigFromModel(model.OracleConfig{Provider: "openai", Model: "gpt-4o", Timeout: 12, MaxTokens: 500, HTTPSProxy: "http://proxy:3128"})
	if c.Provider != "openai" || c.Model != "gpt-4o" || c.Timeout != 12 || c.MaxTokens != 500 || c.HTTPSProxy != "http://proxy:3128" {
		t.Errorf("Unexpected config: %+v", c)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"wrapped canceled", fmt.Errorf("call: %w", context.Canceled), false},
		{"deadline", context.DeadlineExceeded, true},
		{"server error", &APIError{StatusCode: 503}, true},
		{"rate limited", fmt.Errorf("x: %w", &APIError{StatusCode: 429}), true},
		{"unauthorized", &APIError{StatusCode: 401}, false},
		{"network", errors.New("connection reset by peer"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n{}\n```":            `{}`,
		"  {\"b\":2}  ":           `{"b":2}`,
	}
	for in, want := range tests {
		if got := StripCodeFences(in); got != want {
			t.Errorf("StripCodeFences(%q) = %q, want %q", in, got, want)
		}
	}
}
