package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sozercan/code-analyzer/internal/config"
)

// New builds the provider named by cfg.Provider. An error means the gateway
// is unusable and the caller should run without it.
func New(ctx context.Context, cfg config.LLMConfig) (Provider, error) {
	opts := []Option{
		WithTemperature(cfg.Temperature),
		WithMaxTokens(cfg.MaxTokens),
		WithJSONMode(cfg.JSONMode),
	}

	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch name {
	case "", "gemini":
		g, err := NewGemini(ctx, cfg.Gemini, opts...)
		if err != nil {
			return nil, err
		}
		slog.Info("LLM initialized successfully", "provider", g.Name(), "model", g.opts.Model)
		return g, nil
	case "openai", "azure":
		o, err := NewOpenAI(cfg.OpenAI, name, opts...)
		if err != nil {
			return nil, err
		}
		slog.Info("LLM initialized successfully", "provider", o.Name(), "model", o.opts.Model)
		return o, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}
