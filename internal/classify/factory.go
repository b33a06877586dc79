package classify

import (
	"context"
	"fmt"

	"cookiesentinel/internal/config"
)

// NewEscalatorFromConfig builds the escalation stack for the configured
// provider. When the classifier is unconfigured or disabled a client-less
// escalator is returned; it answers every call with the conservative
// fallback.
func NewEscalatorFromConfig(ctx context.Context, cfg config.ClassifierConfig, enabled bool) (*Escalator, error) {
	if !enabled || cfg.APIKey == "" {
		return NewEscalator(nil, cfg.Model, cfg.RateLimit), nil
	}

	switch cfg.Provider {
	case "groq", "openai", "":
		client := NewOpenAIClient(OpenAIConfig{
			APIKey:   cfg.APIKey,
			BaseURL:  cfg.BaseURL,
			Model:    cfg.Model,
			Provider: cfg.Provider,
			Timeout:  cfg.TimeoutDuration(),
		})
		return NewEscalator(client, cfg.Model, cfg.RateLimit), nil
	case "gemini":
		client, err := NewGenAIClient(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, err
		}
		return NewEscalator(client, cfg.Model, cfg.RateLimit), nil
	default:
		return nil, fmt.Errorf("unknown classifier provider %q", cfg.Provider)
	}
}
