// Package analysis turns raw email text into a structured classification.
// The pipeline per message is: normalize content, build a prompt, call the
// active model gateway, parse and repair the response; any failure at any
// stage degrades to the deterministic heuristic path, so every message
// always yields exactly one result.
package analysis

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"github.com/mailtriage/mailtriage/internal/mailbox"
)

// CallGateway is the slice of the model gateway the analyzer needs. The
// concrete gateways live in internal/llm; this local interface keeps the
// dependency pointing outward.
type CallGateway interface {
	Name() string
	Call(ctx context.Context, prompt string) (string, error)
	Policy() Policy
}

// ErrGatewayUnavailable must be returned (or wrapped) by gateways that
// cannot serve a call; it routes the message to the heuristic path.
var ErrGatewayUnavailable = errors.New("model gateway unavailable")

// Analyzer sequences the classification pipeline. It holds exactly one
// active gateway, selected at startup; a nil gateway means every message
// takes the heuristic path.
type Analyzer struct {
	gateway CallGateway
	policy  Policy
	logger  *log.Logger
	now     func() time.Time
}

// NewAnalyzer builds an analyzer around the given gateway (nil disables
// the model path for the run).
func NewAnalyzer(gateway CallGateway, logger *log.Logger) *Analyzer {
	policy := DefaultPolicy()
	if gateway != nil {
		policy = gateway.Policy()
	}
	return &Analyzer{
		gateway: gateway,
		policy:  policy,
		logger:  logger.With("component", "analyzer"),
		now:     time.Now,
	}
}

// Analyze runs one message through the pipeline and always returns a
// complete result. No failure here is fatal: the heuristic fallback
// guarantees totality.
func (a *Analyzer) Analyze(ctx context.Context, msg *mailbox.Message) Result {
	subject := msg.Subject
	body := Normalize(msg.BestBody(), a.policy)
	a.logger.Debug("normalized", "id", msg.ID, "chars", len(body))

	result, kind := a.modelPath(ctx, msg, subject, body)
	if result == nil {
		result = a.fallback(msg, subject, body, kind)
	}

	return *result
}

// modelPath attempts the LLM classification. A nil result with a failure
// kind means the caller must fall back.
func (a *Analyzer) modelPath(ctx context.Context, msg *mailbox.Message, subject, body string) (*Result, FailureKind) {
	if a.gateway == nil {
		return nil, FailureUnavailable
	}

	prompt := BuildPrompt(subject, body, &PromptMetadata{
		DateHeader: msg.DateHeader,
		Sender:     msg.SenderHeader,
	})

	raw, err := a.gateway.Call(ctx, prompt)
	if err != nil {
		kind := FailureCallError
		if errors.Is(err, ErrGatewayUnavailable) {
			kind = FailureUnavailable
		}
		a.logger.Warn("model call failed, falling back", "id", msg.ID, "kind", kind, "err", err)
		return nil, kind
	}

	result, err := ParseResponse(raw)
	if err != nil {
		kind := parseFailureKind(err)
		a.logger.Warn("unusable model response, falling back", "id", msg.ID, "kind", kind, "err", err)
		return nil, kind
	}

	result.Level = a.enforceTieBreak(result)
	a.logger.Debug("model classification", "id", msg.ID, "level", result.Level)
	return result, FailureNone
}

// enforceTieBreak applies the top-severity conjunction to model output:
// VERY_IMPORTANT stands only when the provider asserted a deadline under
// its own resolution. Urgency language alone never reaches the top level.
func (a *Analyzer) enforceTieBreak(r *Result) ImportanceLevel {
	return applyTieBreak(r.Level, r.HasDeadline || len(r.Deadlines) > 0, true)
}

func (a *Analyzer) fallback(msg *mailbox.Message, subject, body string, kind FailureKind) *Result {
	result := HeuristicResult(subject, body, kind)
	result.ImportantLinks = ExtractLinks(msg.BestBody(), msg.HTMLBody)
	a.logger.Debug("heuristic classification", "id", msg.ID, "level", result.Level)
	return &result
}

// AnalyzeRecord runs one message through the pipeline and flattens the
// outcome into a persistable record.
func (a *Analyzer) AnalyzeRecord(ctx context.Context, msg *mailbox.Message) Record {
	result := a.Analyze(ctx, msg)
	return Record{
		MessageID:   msg.ID,
		Subject:     msg.Subject,
		Sender:      msg.SenderHeader,
		DateHeader:  msg.DateHeader,
		Result:      result,
		IsImportant: result.Level == VeryImportant || result.Level == Important,
		ProcessedAt: a.now(),
	}
}

// AnalyzeBatch processes messages sequentially and returns one record per
// message. A single message's total failure degrades to heuristic output;
// the batch always continues.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, msgs []*mailbox.Message) []Record {
	records := make([]Record, 0, len(msgs))
	for _, msg := range msgs {
		records = append(records, a.AnalyzeRecord(ctx, msg))
	}
	return records
}

func parseFailureKind(err error) FailureKind {
	switch {
	case errors.Is(err, ErrNoJSON):
		return FailureNoJSON
	case errors.Is(err, ErrMissingFields):
		return FailureMissing
	default:
		return FailureMalformed
	}
}
