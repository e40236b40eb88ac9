package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Parser failure kinds. All of them trigger the heuristic fallback; none
// is fatal to the batch.
var (
	ErrNoJSON        = errors.New("no JSON object found in response")
	ErrMalformedJSON = errors.New("malformed JSON in response")
	ErrMissingFields = errors.New("response missing mandatory fields")
)

const rawSnippetLen = 200

var (
	// Spurious backslash escapes some providers emit inside JSON strings,
	// e.g. "importance\_level". Valid JSON escapes are left alone.
	spuriousEscapeRe = regexp.MustCompile(`\\([^"\\/bfnrtu])`)

	levelFieldRe = regexp.MustCompile(`"importance_?level"\s*:\s*"([^"]+)"`)
)

// modelResponse mirrors the schema the prompt demands. RawMessage on the
// mandatory fields distinguishes absent from zero-valued.
type modelResponse struct {
	ImportanceLevel      json.RawMessage `json:"importance_level"`
	Summary              json.RawMessage `json:"summary"`
	Deadlines            json.RawMessage `json:"deadlines"`
	HasDeadline          json.RawMessage `json:"has_deadline"`
	Reasoning            string          `json:"reasoning"`
	ImportantLinks       []string        `json:"important_links"`
	AttachmentsMentioned []string        `json:"attachments_mentioned"`
}

// ParseResponse extracts a structured Result from a raw model response
// that may contain leading/trailing prose, embedded newlines, or broken
// escapes. On total failure it attempts one manual field extraction
// before giving up.
func ParseResponse(raw string) (*Result, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("%w: %s", ErrNoJSON, snippet(raw))
	}

	cleaned := repairJSON(raw[start : end+1])

	var resp modelResponse
	if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		if r := extractLevelOnly(raw); r != nil {
			return r, nil
		}
		return nil, fmt.Errorf("%w: %v: %s", ErrMalformedJSON, err, snippet(raw))
	}

	missing := missingFields(&resp)
	if len(missing) > 0 {
		if r := extractLevelOnly(raw); r != nil {
			return r, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrMissingFields, strings.Join(missing, ", "))
	}

	result, err := buildResult(&resp)
	if err != nil {
		if r := extractLevelOnly(raw); r != nil {
			return r, nil
		}
		return nil, err
	}
	return result, nil
}

// repairJSON applies the repair passes before decoding: embedded newlines
// become spaces, whitespace runs collapse, and spurious escapes of
// ordinary characters are undone.
func repairJSON(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = spuriousEscapeRe.ReplaceAllString(s, "$1")
	return s
}

func missingFields(resp *modelResponse) []string {
	var missing []string
	if len(resp.ImportanceLevel) == 0 {
		missing = append(missing, "importance_level")
	}
	if len(resp.Summary) == 0 {
		missing = append(missing, "summary")
	}
	if len(resp.Deadlines) == 0 {
		missing = append(missing, "deadlines")
	}
	if len(resp.HasDeadline) == 0 {
		missing = append(missing, "has_deadline")
	}
	return missing
}

func buildResult(resp *modelResponse) (*Result, error) {
	var rawLevel string
	if err := json.Unmarshal(resp.ImportanceLevel, &rawLevel); err != nil {
		return nil, fmt.Errorf("%w: importance_level is not a string", ErrMalformedJSON)
	}
	level, ok := ParseLevel(rawLevel)
	if !ok {
		return nil, fmt.Errorf("%w: unknown importance_level %q", ErrMalformedJSON, rawLevel)
	}

	var summary string
	if err := json.Unmarshal(resp.Summary, &summary); err != nil {
		return nil, fmt.Errorf("%w: summary is not a string", ErrMalformedJSON)
	}

	var deadlines []string
	if err := json.Unmarshal(resp.Deadlines, &deadlines); err != nil {
		// A lone string instead of an array is a known provider slip.
		var single string
		if err2 := json.Unmarshal(resp.Deadlines, &single); err2 != nil {
			return nil, fmt.Errorf("%w: deadlines is not a string array", ErrMalformedJSON)
		}
		if single != "" {
			deadlines = []string{single}
		}
	}

	var hasDeadline bool
	if err := json.Unmarshal(resp.HasDeadline, &hasDeadline); err != nil {
		return nil, fmt.Errorf("%w: has_deadline is not a bool", ErrMalformedJSON)
	}

	deadlines = dedupeStrings(trimAll(deadlines), maxDeadlines)

	return &Result{
		Level:                level,
		Summary:              strings.TrimSpace(summary),
		Deadlines:            deadlines,
		HasDeadline:          hasDeadline || len(deadlines) > 0,
		Reasoning:            resp.Reasoning,
		ImportantLinks:       dedupeStrings(resp.ImportantLinks, 0),
		AttachmentsMentioned: dedupeStrings(resp.AttachmentsMentioned, 0),
		Source:               SourceModel,
	}, nil
}

// extractLevelOnly is the last-resort recovery: regex-search for the
// importance_level value alone and synthesize a minimal result around it.
func extractLevelOnly(raw string) *Result {
	m := levelFieldRe.FindStringSubmatch(repairJSON(raw))
	if m == nil {
		return nil
	}
	level, ok := ParseLevel(m[1])
	if !ok {
		return nil
	}
	return &Result{
		Level:       level,
		Summary:     "Summary unavailable (partial model response)",
		Deadlines:   nil,
		HasDeadline: false,
		Source:      SourceModel,
	}
}

func snippet(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) > rawSnippetLen {
		return raw[:rawSnippetLen] + truncationMarker
	}
	return raw
}
