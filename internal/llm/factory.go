package llm

import (
	"context"
	"fmt"
	"time"

	"maml/internal/config"
)

// Provider names a supported LLM backend.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

// NewClientFromConfig builds the configured transport and wraps it with metrics.
func NewClientFromConfig(ctx context.Context, cfg config.LLMConfig, timeout time.Duration) (Client, error) {
	var (
		client Client
		err    error
	)

	switch Provider(cfg.Provider) {
	case ProviderOpenAI:
		oc := DefaultOpenAIConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			oc.BaseURL = cfg.BaseURL
		}
		if cfg.Model != "" {
			oc.Model = cfg.Model
		}
		if cfg.MaxRetries > 0 {
			oc.MaxRetries = cfg.MaxRetries
		}
		oc.Temperature = cfg.Temperature
		oc.Timeout = timeout
		client = NewOpenAIClient(oc)
	case ProviderGemini:
		gc := DefaultGeminiConfig(cfg.APIKey)
		if cfg.Model != "" {
			gc.Model = cfg.Model
		}
		gc.Temperature = cfg.Temperature
		gc.Timeout = timeout
		client, err = NewGeminiClient(ctx, gc)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}

	return NewInstrumentedClient(client, cfg.Provider), nil
}
