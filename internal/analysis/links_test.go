package analysis

import (
	"fmt"
	"strings"
	"testing"
)

func TestExtractLinksFromHTML(t *testing.T) {
	html := `<html><body>
		<a href="https://example.com/meeting/join">Join meeting</a>
		<a href="https://mailer.example.com/unsubscribe?u=1">Unsubscribe</a>
		<a href="https://example.com/booking/ABC123">View booking</a>
		<img src="https://mailer.example.com/open.gif">
	</body></html>`

	got := ExtractLinks("", html)
	want := []string{
		"https://example.com/meeting/join",
		"https://example.com/booking/ABC123",
	}
	if len(got) != len(want) {
		t.Fatalf("got %d links, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("link %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestExtractLinksFromPlainText(t *testing.T) {
	body := "Confirm here: https://example.com/confirm/xyz. Thanks!"
	got := ExtractLinks(body, "")
	if len(got) != 1 {
		t.Fatalf("got %d links, want 1: %v", len(got), got)
	}
	if got[0] != "https://example.com/confirm/xyz" {
		t.Errorf("trailing punctuation not trimmed: %s", got[0])
	}
}

func TestExtractLinksIgnoresTrackingAndSocial(t *testing.T) {
	body := strings.Join([]string{
		"https://click.example.com/track/abc",
		"https://facebook.com/brandpage",
		"https://cdn.example.com/spacer.gif",
		"https://example.com/real-content",
	}, " ")

	got := ExtractLinks(body, "")
	if len(got) != 1 || got[0] != "https://example.com/real-content" {
		t.Errorf("got %v, want only the real content link", got)
	}
}

func TestExtractLinksRejectsNonHTTP(t *testing.T) {
	got := ExtractLinks("mailto:a@b.com and ftp://files.example.com", "")
	if len(got) != 0 {
		t.Errorf("got %v, want none", got)
	}
}

func TestExtractLinksCap(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < maxExtractedLinks+3; i++ {
		fmt.Fprintf(&sb, "https://example.com/page/%d ", i)
	}
	got := ExtractLinks(sb.String(), "")
	if len(got) != maxExtractedLinks {
		t.Errorf("got %d links, want %d", len(got), maxExtractedLinks)
	}
}

func TestExtractLinksDeduplicates(t *testing.T) {
	body := "https://example.com/a https://example.com/a https://example.com/b"
	got := ExtractLinks(body, "")
	if len(got) != 2 {
		t.Errorf("got %d links, want 2: %v", len(got), got)
	}
}
