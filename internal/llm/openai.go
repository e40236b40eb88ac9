package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/mailtriage/mailtriage/internal/analysis"
)

const (
	defaultRetryCount    = 3
	retryBackoff         = 2 * time.Second
	rateLimitCooldown    = 10 * time.Second
	connectivityProbeMsg = "Hello, respond with just 'OK'"
)

// ChatGateway serves every OpenAI-compatible provider (OpenAI, Groq, any
// custom base URL) through one client. Provider differences are dialect
// config, not separate implementations.
type ChatGateway struct {
	client  openai.Client
	dialect Dialect
	logger  *log.Logger

	// Availability is probed once at Init and read-only afterwards.
	available bool
}

// NewChatGateway builds a gateway for the given dialect. The client's own
// retry loop is disabled; retry and backoff policy live here.
func NewChatGateway(dialect Dialect, apiKey string, logger *log.Logger) *ChatGateway {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if dialect.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(dialect.BaseURL))
	}

	return &ChatGateway{
		client:  openai.NewClient(opts...),
		dialect: dialect,
		logger:  logger.With("gateway", dialect.Provider),
	}
}

func (g *ChatGateway) Name() string { return g.dialect.Provider }

func (g *ChatGateway) Policy() analysis.Policy { return g.dialect.Policy }

// Init sends a trivial completion to verify credentials and connectivity.
// The result is recorded as process-wide state for this run.
func (g *ChatGateway) Init(ctx context.Context) error {
	_, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: g.dialect.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(connectivityProbeMsg),
		},
		MaxTokens:   openai.Int(10),
		Temperature: openai.Float(g.dialect.Temperature),
	})
	if err != nil {
		g.logger.Warn("connectivity probe failed, model path disabled for this run", "err", err)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	g.available = true
	g.logger.Info("gateway connected", "model", g.dialect.Model)
	return nil
}

// Call sends the prompt with low temperature and a bounded output budget.
// Transient failures retry with a short backoff; a rate-limit response
// gets one longer cooldown before the next attempt. Exhausted retries
// surface as ErrUnavailable.
func (g *ChatGateway) Call(ctx context.Context, prompt string) (string, error) {
	if !g.available {
		return "", ErrUnavailable
	}

	retries := g.dialect.RetryCount
	if retries <= 0 {
		retries = defaultRetryCount
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		text, err := g.complete(ctx, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		}

		wait := retryBackoff
		if isRateLimited(err) {
			wait = rateLimitCooldown
			g.logger.Warn("rate limited, cooling down", "wait", wait, "attempt", attempt)
		} else {
			g.logger.Debug("transient gateway failure", "err", err, "attempt", attempt)
		}

		if attempt < retries {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
			}
		}
	}

	return "", fmt.Errorf("%w: retries exhausted: %v", ErrUnavailable, lastErr)
}

func (g *ChatGateway) complete(ctx context.Context, prompt string) (string, error) {
	completion, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: g.dialect.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(analysis.SystemPrompt),
			openai.UserMessage(prompt),
		},
		MaxTokens:   openai.Int(g.dialect.MaxOutputTokens),
		Temperature: openai.Float(g.dialect.Temperature),
		TopP:        openai.Float(0.9),
	})
	if err != nil {
		return "", err
	}

	if len(completion.Choices) == 0 {
		return "", errors.New("provider returned no completion choices")
	}

	text := strings.TrimSpace(completion.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("provider returned an empty completion")
	}
	return text, nil
}

func isRateLimited(err error) bool {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return apierr.StatusCode == http.StatusTooManyRequests
	}
	return false
}
