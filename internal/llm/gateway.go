package llm

import (
	"context"

	"github.com/mailtriage/mailtriage/internal/analysis"
)

// ErrUnavailable means the gateway cannot serve calls for this run: no
// credentials, failed connectivity probe, or retries exhausted. The
// analyzer treats it as "fall back", never as fatal. It aliases the
// analysis sentinel so errors.Is matches across the package boundary.
var ErrUnavailable = analysis.ErrGatewayUnavailable

// Gateway adapts one external model provider's call contract. Exactly one
// gateway is active per run, selected at startup; it is never switched
// mid-run.
type Gateway interface {
	// Name identifies the provider for logs and diagnostics.
	Name() string

	// Init probes connectivity once and records availability for the rest
	// of the run. It is never re-invoked mid-run.
	Init(ctx context.Context) error

	// Call sends a prompt and returns the raw text response. It owns its
	// retry policy and rate-limit backoff; after exhausting retries it
	// returns ErrUnavailable rather than a transport error.
	Call(ctx context.Context, prompt string) (string, error)

	// Policy is the content-normalization dialect this provider wants.
	Policy() analysis.Policy
}
