package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"

	"github.com/sozercan/code-analyzer/internal/config"
)

// OpenAI client implementation, also used for Azure OpenAI deployments
type OpenAI struct {
	client   *openai.Client
	provider string
	opts     Options
}

func NewOpenAI(cfg config.OpenAIConfig, provider string, opts ...Option) (*OpenAI, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai API key is not configured")
	}

	var client *openai.Client
	switch provider {
	case "azure":
		client = openai.NewClient(
			azure.WithEndpoint(cfg.APIEndpoint, cfg.APIVersion),
			azure.WithAPIKey(cfg.APIKey),
			option.WithMaxRetries(0),
		)
	default: // "openai"
		client = openai.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithBaseURL(withTrailingSlash(cfg.APIEndpoint)),
			option.WithMaxRetries(0),
		)
		provider = "openai"
	}

	options := Options{Model: cfg.Model}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Model == "" {
		return nil, errors.New("openai model is not configured")
	}

	return &OpenAI{
		client:   client,
		provider: provider,
		opts:     options,
	}, nil
}

func (o *OpenAI) Name() string { return o.provider }

func (o *OpenAI) Invoke(ctx context.Context, systemPrompt, userContent string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.F(o.opts.Model),
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userContent),
		}),
		Temperature: openai.F(o.opts.Temperature),
	}
	if o.opts.MaxTokens > 0 {
		params.MaxTokens = openai.F(o.opts.MaxTokens)
	}
	if o.opts.JSONMode {
		params.ResponseFormat = openai.F[openai.ChatCompletionNewParamsResponseFormatUnion](
			openai.ResponseFormatJSONObjectParam{
				Type: openai.F(openai.ResponseFormatJSONObjectTypeJSONObject),
			},
		)
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%s chat completion failed: %w", o.provider, err)
	}

	slog.Debug("LLM usage",
		"provider", o.provider,
		"model", o.opts.Model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"total_tokens", resp.Usage.TotalTokens,
	)

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s returned no choices", o.provider)
	}
	return resp.Choices[0].Message.Content, nil
}

// option.WithBaseURL resolves request paths relative to the base, so a
// missing slash would drop the last path segment (e.g. /v1).
func withTrailingSlash(u string) string {
	if u == "" || strings.HasSuffix(u, "/") {
		return u
	}
	return u + "/"
}
