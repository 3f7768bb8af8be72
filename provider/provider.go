package provider

import (
	"context"
	"errors"

	"github.com/pressgen/pressgen/config"
	openai_provider "github.com/pressgen/pressgen/provider/openai"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI Client = "openai"
)

// Message is one turn of a chat conversation.
type Message = openai_provider.Message

// ErrNoAPIKey is returned when a completion is requested without credentials.
var ErrNoAPIKey = openai_provider.ErrNoAPIKey

// Provider is the interface all LLM implementations must satisfy
type Provider interface {
	ChatCompletion(ctx context.Context, messages []Message, model string, temperature float64) (string, error)
	Available() bool
}

// NewProvider creates a new LLM client based on the provided configuration
func NewProvider(client Client, cfg config.LLMConfig) (Provider, error) {
	switch client {
	case OpenAI:
		return openai_provider.NewOpenAIClient(cfg.APIKey, cfg.BaseURL, cfg.CompletionModel, cfg.Temperature, cfg.MaxTokens, cfg.Timeout), nil
	default:
		return nil, errors.New("unsupported llm provider")
	}
}
