package llm

import (
	"context"
	"io"
)

// Provider is the boundary to the external generative model. Implementations
// are built once per process and must be safe for concurrent use.
type Provider interface {
	// Invoke sends the system instructions and user content and returns the
	// model's raw text. The text carries no structural guarantee.
	Invoke(ctx context.Context, systemPrompt, userContent string) (string, error)

	// Name identifies the provider in logs
	Name() string
}

type Option func(*Options)

type Options struct {
	Model       string
	MaxTokens   int64
	Temperature float64
	// JSONMode asks the provider for JSON-only output where supported
	JSONMode bool
}

func WithMaxTokens(n int64) Option {
	return func(o *Options) { o.MaxTokens = n }
}

func WithTemperature(t float64) Option {
	return func(o *Options) { o.Temperature = t }
}

func WithJSONMode(enabled bool) Option {
	return func(o *Options) { o.JSONMode = enabled }
}

// Close releases provider resources if the provider holds any.
func Close(p Provider) error {
	if c, ok := p.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// resultFields describes the record the model is asked to produce. It feeds
// provider-side response schemas.
var resultFields = []struct {
	Name        string
	Description string
}{
	{"Errors", "Bugs, logical errors and syntax issues found in the code, or a statement that the code looks correct."},
	{"Code", "The optimized or corrected version of the code."},
	{"Details", "Purpose of the code, use cases, advantages, disadvantages and other insights."},
}
