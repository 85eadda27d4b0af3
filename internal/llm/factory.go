package llm

import (
	"context"
	"fmt"
	"net/http"

	"popsim/internal/config"
	"popsim/internal/logging"

	"go.uber.org/zap"
)

// NewGateway builds the gateway for the configured provider. An unknown
// provider or a hosted provider without an API key is a configuration error.
func NewGateway(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (Gateway, error) {
	httpClient := &http.Client{Timeout: cfg.Timeout()}
	model := cfg.ResolvedModel()

	if cfg.IsRemote() && cfg.APIKey == "" {
		return nil, fmt.Errorf("llm provider %s requires LLM_API_KEY", cfg.Provider)
	}

	var b backend
	switch cfg.Provider {
	case config.ProviderOllama, "":
		b = newOllamaBackend(cfg.ResolvedBaseURL(), model, httpClient)
	case config.ProviderOpenAI:
		b = newOpenAIBackend(cfg.APIKey, cfg.BaseURL, model, httpClient)
	case config.ProviderGemini:
		gb, err := newGeminiBackend(ctx, cfg.APIKey, model, httpClient)
		if err != nil {
			return nil, err
		}
		b = gb
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}

	return &gateway{
		backend: b,
		timeout: cfg.Timeout(),
		logger:  logging.OrNop(logger).Named("llm"),
	}, nil
}
