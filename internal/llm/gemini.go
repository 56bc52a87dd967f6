package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/sozercan/code-analyzer/internal/config"
)

// Gemini talks to Google's generative language API. The client and base
// model are configured once; Invoke works on a copy of the model so the
// shared value is never mutated.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
	opts   Options
}

func NewGemini(ctx context.Context, cfg config.GeminiConfig, opts ...Option) (*Gemini, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini API key is not configured")
	}

	options := Options{Model: strings.TrimSpace(cfg.Model)}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Model == "" {
		return nil, errors.New("gemini model is not configured")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}
	return newGemini(client, options), nil
}

func newGemini(client *genai.Client, options Options) *Gemini {
	m := client.GenerativeModel(options.Model)
	m.SetTemperature(float32(options.Temperature))
	if options.MaxTokens > 0 {
		m.SetMaxOutputTokens(int32(options.MaxTokens))
	}
	if options.JSONMode {
		m.ResponseMIMEType = "application/json"
		m.ResponseSchema = resultSchema()
	}

	return &Gemini{
		client: client,
		model:  m,
		opts:   options,
	}
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) Invoke(ctx context.Context, systemPrompt, userContent string) (string, error) {
	m := *g.model
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}

	resp, err := m.GenerateContent(ctx, genai.Text(userContent))
	if err != nil {
		return "", fmt.Errorf("gemini generate content failed: %w", err)
	}

	if resp.UsageMetadata != nil {
		slog.Debug("LLM usage",
			"provider", "gemini",
			"model", g.opts.Model,
			"prompt_tokens", resp.UsageMetadata.PromptTokenCount,
			"completion_tokens", resp.UsageMetadata.CandidatesTokenCount,
			"total_tokens", resp.UsageMetadata.TotalTokenCount,
		)
	}

	txt := firstText(resp)
	if txt == "" {
		return "", errors.New("gemini returned an empty response")
	}
	return txt, nil
}

func (g *Gemini) Close() error {
	return g.client.Close()
}

func resultSchema() *genai.Schema {
	s := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(resultFields)),
	}
	for _, f := range resultFields {
		s.Properties[f.Name] = &genai.Schema{
			Type:        genai.TypeString,
			Description: f.Description,
		}
		s.Required = append(s.Required, f.Name)
	}
	return s
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String()
}
