package analysis

import "time"

// ResultSource identifies which path produced a result
type ResultSource string

const (
	SourceModel     ResultSource = "model"     // Parsed from an LLM response
	SourceHeuristic ResultSource = "heuristic" // Deterministic keyword/regex fallback
)

// FailureKind records why the model path was abandoned for a message.
// Empty when the model path succeeded or was never attempted.
type FailureKind string

const (
	FailureNone        FailureKind = ""
	FailureUnavailable FailureKind = "gateway_unavailable"
	FailureCallError   FailureKind = "gateway_error"
	FailureNoJSON      FailureKind = "no_json_found"
	FailureMalformed   FailureKind = "malformed_json"
	FailureMissing     FailureKind = "missing_fields"
)

const maxDeadlines = 5

// Result is the analysis output for a single message. Constructed once by
// the analyzer and never mutated afterwards.
type Result struct {
	Level                ImportanceLevel `json:"importance_level"`
	Summary              string          `json:"summary"`
	Deadlines            []string        `json:"deadlines"`
	HasDeadline          bool            `json:"has_deadline"`
	Reasoning            string          `json:"reasoning,omitempty"`
	ImportantLinks       []string        `json:"important_links,omitempty"`
	AttachmentsMentioned []string        `json:"attachments_mentioned,omitempty"`

	// Diagnostics for operator visibility; never block progress.
	Source      ResultSource `json:"source"`
	FailureKind FailureKind  `json:"failure_kind,omitempty"`
}

// Record pairs a result with the message it was derived from, flattened
// for persistence and the web layer.
type Record struct {
	MessageID   string    `json:"id"`
	Subject     string    `json:"subject"`
	Sender      string    `json:"sender,omitempty"`
	DateHeader  string    `json:"date,omitempty"`
	Result      Result    `json:"result"`
	IsImportant bool      `json:"is_important"`
	ProcessedAt time.Time `json:"processed_at"`
}

// dedupeStrings keeps the first occurrence of each exact string, capped at
// max entries (0 = no cap). Dedup is format-level: "June 18" and
// "06/18/2025" are distinct even when they name the same day.
func dedupeStrings(in []string, max int) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out
}
