// cmd/server/main.go
package main

import (
	"context"
	"log"
	"log/slog"

	"github.com/sozercan/code-analyzer/internal/analyzer"
	"github.com/sozercan/code-analyzer/internal/config"
	"github.com/sozercan/code-analyzer/internal/llm"
	"github.com/sozercan/code-analyzer/internal/logging"
	"github.com/sozercan/code-analyzer/internal/server"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func run(cfg *config.Config) error {
	logger, logCloser := logging.New(cfg.Log)
	defer logCloser.Close()
	slog.SetDefault(logger)

	// Without a provider the server still starts; /health reports it and
	// analysis requests fail with 500.
	var llmProvider llm.Provider
	if p, err := llm.New(context.Background(), cfg.LLM); err != nil {
		slog.Error("Failed to initialize LLM", "provider", cfg.LLM.Provider, "error", err)
	} else {
		llmProvider = p
		defer func() {
			if err := llm.Close(p); err != nil {
				slog.Warn("Failed to close LLM client", "error", err)
			}
		}()
	}

	a := analyzer.New(llmProvider)
	srv := server.New(*cfg, a)
	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"version", server.Version,
		"llm_available", a.Available(),
		"llm_provider", a.ProviderName(),
	)
	return srv.Run()
}
