package llm

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/mailtriage/mailtriage/internal/analysis"
)

// Dialect captures how one provider wants to be spoken to: endpoint,
// model, sampling, output budget, and the content-cleaning policy for
// its token economy.
type Dialect struct {
	Provider        string
	BaseURL         string
	Model           string
	Temperature     float64
	MaxOutputTokens int64
	RetryCount      int
	Policy          analysis.Policy
}

// Provider presets. All of them ride the same OpenAI-compatible chat
// contract; Groq's smaller context window gets a tighter truncation cap
// and URL placeholders.
var presets = map[string]Dialect{
	"openai": {
		Provider:        "openai",
		Model:           "gpt-4o-mini",
		Temperature:     0.1,
		MaxOutputTokens: 1000,
		Policy:          analysis.DefaultPolicy(),
	},
	"groq": {
		Provider:        "groq",
		BaseURL:         "https://api.groq.com/openai/v1",
		Model:           "llama-3.3-70b-versatile",
		Temperature:     0.05,
		MaxOutputTokens: 1000,
		Policy:          groqPolicy(),
	},
}

func groqPolicy() analysis.Policy {
	p := analysis.DefaultPolicy()
	p.ReplaceURLs = true
	p.MaxLen = 3000
	return p
}

// Options override preset dialect fields from configuration. Zero values
// keep the preset.
type Options struct {
	APIKey          string
	BaseURL         string
	Model           string
	Temperature     float64
	MaxOutputTokens int64
	RetryCount      int
	TruncationLimit int
}

// NewGateway resolves a provider name to a configured gateway. Called
// once at startup; returns an error for unknown providers or missing
// credentials so the caller can run heuristic-only.
func NewGateway(provider string, opts Options, logger *log.Logger) (Gateway, error) {
	dialect, ok := presets[provider]
	if !ok {
		return nil, fmt.Errorf("unknown model provider %q", provider)
	}
	if opts.APIKey == "" {
		return nil, fmt.Errorf("provider %q: api key is required", provider)
	}

	if opts.BaseURL != "" {
		dialect.BaseURL = opts.BaseURL
	}
	if opts.Model != "" {
		dialect.Model = opts.Model
	}
	if opts.Temperature > 0 {
		dialect.Temperature = opts.Temperature
	}
	if opts.MaxOutputTokens > 0 {
		dialect.MaxOutputTokens = opts.MaxOutputTokens
	}
	if opts.RetryCount > 0 {
		dialect.RetryCount = opts.RetryCount
	}
	if opts.TruncationLimit > 0 {
		dialect.Policy.MaxLen = opts.TruncationLimit
	}

	return NewChatGateway(dialect, opts.APIKey, logger), nil
}

// Providers lists the known provider names.
func Providers() []string {
	return []string{"groq", "openai"}
}
