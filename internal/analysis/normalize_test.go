package analysis

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNormalizeStripsMarkup(t *testing.T) {
	raw := `<style>.btn { color: red; }</style><p>Your order has <b>shipped</b>.</p>`
	got := Normalize(raw, DefaultPolicy())
	if !strings.Contains(got, "Your order has") || !strings.Contains(got, "shipped") {
		t.Errorf("text content lost: %q", got)
	}
	if strings.Contains(got, "<") || strings.Contains(got, "color: red") {
		t.Errorf("markup survived: %q", got)
	}
}

func TestNormalizeStripsQuotedReply(t *testing.T) {
	raw := "Sounds good, see you then.\n\nOn Mon, Jun 16, 2025 at 9:00 AM Alex Chen wrote:\n> Can we move the call to Tuesday?"
	got := Normalize(raw, DefaultPolicy())
	if !strings.Contains(got, "Sounds good") {
		t.Errorf("original text lost: %q", got)
	}
	if strings.Contains(got, "move the call") {
		t.Errorf("quoted reply survived: %q", got)
	}
}

func TestNormalizeStripsFooter(t *testing.T) {
	raw := "New features launched this week. Unsubscribe at any time by clicking the link below."
	got := Normalize(raw, DefaultPolicy())
	if !strings.Contains(got, "New features launched") {
		t.Errorf("original text lost: %q", got)
	}
	if strings.Contains(strings.ToLower(got), "unsubscribe") {
		t.Errorf("footer survived: %q", got)
	}
}

func TestNormalizeReplacesURLs(t *testing.T) {
	policy := DefaultPolicy()
	policy.ReplaceURLs = true
	got := Normalize("Full details at https://example.com/launch?utm=x today.", policy)
	if strings.Contains(got, "example.com") {
		t.Errorf("URL survived: %q", got)
	}
	if !strings.Contains(got, urlPlaceholder) {
		t.Errorf("placeholder missing: %q", got)
	}
}

func TestNormalizeCollapsesWhitespace(t *testing.T) {
	got := Normalize("line  one\n\n\n\tline   two", DefaultPolicy())
	if got != "line one line two" {
		t.Errorf("got %q, want %q", got, "line one line two")
	}
}

func TestNormalizeTruncates(t *testing.T) {
	policy := DefaultPolicy()
	policy.MaxLen = 20
	got := Normalize(strings.Repeat("word ", 20), policy)
	if !strings.HasSuffix(got, truncationMarker) {
		t.Errorf("missing truncation marker: %q", got)
	}
	if len(got) > policy.MaxLen+len(truncationMarker) {
		t.Errorf("truncated text too long: %d chars", len(got))
	}
}

func TestNormalizeTruncatesAtRuneBoundary(t *testing.T) {
	policy := Policy{MaxLen: 9}
	got := Normalize(strings.Repeat("é", 20), policy)
	if !utf8.ValidString(got) {
		t.Errorf("truncation split a rune: %q", got)
	}
	if !strings.HasSuffix(got, truncationMarker) {
		t.Errorf("missing truncation marker: %q", got)
	}
}

func TestNormalizeEmpty(t *testing.T) {
	if got := Normalize("", DefaultPolicy()); got != "" {
		t.Errorf("got %q, want empty", got)
	}
	if got := Normalize("   \n\t  ", DefaultPolicy()); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestNormalizeNoOpPolicy(t *testing.T) {
	raw := "plain text stays as-is"
	got := Normalize(raw, Policy{})
	if got != raw {
		t.Errorf("got %q, want %q", got, raw)
	}
}
