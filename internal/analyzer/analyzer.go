package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sozercan/code-analyzer/apimodels"
	"github.com/sozercan/code-analyzer/internal/llm"
)

type Analyzer struct {
	llmProvider llm.Provider
}

// New returns an analyzer backed by llmProvider. A nil provider puts the
// analyzer in degraded mode: Analyze fails with ErrServiceUnavailable.
func New(llmProvider llm.Provider) *Analyzer {
	return &Analyzer{
		llmProvider: llmProvider,
	}
}

// Available reports whether the model gateway was initialized.
func (a *Analyzer) Available() bool {
	return a.llmProvider != nil
}

func (a *Analyzer) ProviderName() string {
	if a.llmProvider == nil {
		return ""
	}
	return a.llmProvider.Name()
}

// Analyze reviews req.Code with the model and returns a complete result.
// A model response that cannot be parsed is not an error; the result then
// explains the parse failure.
func (a *Analyzer) Analyze(ctx context.Context, req apimodels.AnalysisRequest) (*apimodels.AnalysisResult, error) {
	if !a.Available() {
		slog.Error("Analysis rejected", "category", Category(ErrServiceUnavailable))
		return nil, ErrServiceUnavailable
	}
	if strings.TrimSpace(req.Code) == "" {
		slog.Warn("Analysis rejected", "category", Category(ErrInvalidInput))
		return nil, ErrInvalidInput
	}

	slog.Info("Analyzing code snippet", "length", len(req.Code), "provider", a.llmProvider.Name())
	slog.Debug("Received code snippet", "code", req.Code)
	startTime := time.Now()

	raw, err := a.llmProvider.Invoke(ctx, SystemPrompt, req.Code)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrUpstream, err)
		slog.Error("LLM analysis failed", "category", Category(err), "error", err, "duration", time.Since(startTime))
		return nil, err
	}
	slog.Info("LLM response received", "length", len(raw), "duration", time.Since(startTime))

	candidate, err := ExtractCandidate(raw)
	if err != nil {
		slog.Warn("Failed to parse AI response", "error", err, "raw_output", raw)
	}
	result := ValidateCandidate(candidate)

	slog.Info("Code analysis completed successfully", "duration", time.Since(startTime))
	return &result, nil
}

// AnalyzeLegacy serves the deprecated entry point. It behaves exactly like
// Analyze and returns the result as a plain map.
func (a *Analyzer) AnalyzeLegacy(ctx context.Context, req apimodels.AnalysisRequest) (map[string]any, error) {
	result, err := a.Analyze(ctx, req)
	if err != nil {
		return nil, err
	}
	return result.AsMap(), nil
}
