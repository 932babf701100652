package llm

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/prospector/internal/common"
	"github.com/ternarybob/prospector/internal/interfaces"
)

// NewService builds the configured provider, falling back to the other
// one when the preferred provider has no API key.
func NewService(ctx context.Context, config *common.Config, logger arbor.ILogger) (interfaces.LLMService, error) {
	order := []string{config.LLM.Provider}
	if config.LLM.Provider == "gemini" {
		order = append(order, "claude")
	} else {
		order = append(order, "gemini")
	}

	var lastErr error
	for _, provider := range order {
		var svc interfaces.LLMService
		var err error
		switch provider {
		case "claude":
			svc, err = NewClaudeService(&config.Claude, logger)
		case "gemini":
			svc, err = NewGeminiService(ctx, &config.Gemini, logger)
		}
		if err == nil {
			if provider != config.LLM.Provider {
				logger.Warn().
					Str("configured", config.LLM.Provider).
					Str("using", provider).
					Msg("Configured LLM provider unavailable, using fallback")
			}
			return svc, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("no llm provider available: %w", lastErr)
}
