package analysis

import (
	"strings"
	"testing"
)

func TestBuildPromptIncludesContent(t *testing.T) {
	got := BuildPrompt("Flight confirmation", "Your flight departs June 18, 2025.", nil)
	if !strings.Contains(got, "Subject: Flight confirmation") {
		t.Error("subject missing from prompt")
	}
	if !strings.Contains(got, "Your flight departs June 18, 2025.") {
		t.Error("body missing from prompt")
	}
}

func TestBuildPromptMetadata(t *testing.T) {
	meta := &PromptMetadata{
		DateHeader: "Mon, 16 Jun 2025 09:00:00 +0000",
		Sender:     "bookings@example.com",
	}
	got := BuildPrompt("Subject", "Body", meta)
	if !strings.Contains(got, "Email Date: Mon, 16 Jun 2025 09:00:00 +0000") {
		t.Error("date header missing from prompt")
	}
	if !strings.Contains(got, "Sender: bookings@example.com") {
		t.Error("sender missing from prompt")
	}
}

func TestBuildPromptNilMetadata(t *testing.T) {
	got := BuildPrompt("Subject", "Body", nil)
	if strings.Contains(got, "Email Date:") || strings.Contains(got, "Sender:") {
		t.Errorf("metadata lines present without metadata: %q", got)
	}
}

func TestBuildPromptLiteralPercent(t *testing.T) {
	got := BuildPrompt("Subject", "Body", nil)
	if !strings.Contains(got, `"50% off sale"`) {
		t.Error("SPAM examples line lost its literal percent")
	}
	if strings.Contains(got, "(MISSING)") || strings.Contains(got, "%!") {
		t.Errorf("prompt contains a broken format verb: %q", got)
	}
}

func TestBuildPromptSchemaKeys(t *testing.T) {
	got := BuildPrompt("s", "b", nil)
	for _, key := range []string{
		`"importance_level"`, `"summary"`, `"deadlines"`,
		`"has_deadline"`, `"reasoning"`, `"important_links"`,
		`"attachments_mentioned"`,
	} {
		if !strings.Contains(got, key) {
			t.Errorf("schema key %s missing from prompt", key)
		}
	}
	for _, level := range []string{"VERY_IMPORTANT", "IMPORTANT", "UNIMPORTANT", "SPAM"} {
		if !strings.Contains(got, level) {
			t.Errorf("taxonomy level %s missing from prompt", level)
		}
	}
}
