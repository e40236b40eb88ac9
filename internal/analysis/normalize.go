package analysis

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/jaytaylor/html2text"
)

// Policy controls how aggressively a message body is cleaned before
// prompting. Providers differ: URL-sensitive models get placeholder tokens
// to save tokens, small-context models get a hard truncation cap.
type Policy struct {
	StripStyles        bool
	StripTags          bool
	StripQuotedReplies bool
	ReplaceURLs        bool
	StripFooter        bool
	CollapseWhitespace bool
	MaxLen             int // 0 = no truncation
}

// DefaultPolicy is the cleaning applied when a provider declares no
// dialect of its own.
func DefaultPolicy() Policy {
	return Policy{
		StripStyles:        true,
		StripTags:          true,
		StripQuotedReplies: true,
		StripFooter:        true,
		CollapseWhitespace: true,
		MaxLen:             3000,
	}
}

const (
	urlPlaceholder   = "[link]"
	truncationMarker = "..."
)

var (
	styleBlockRe  = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	inlineStyleRe = regexp.MustCompile(`(?i)style\s*=\s*["'][^"']*["']`)
	scriptBlockRe = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	tagRe         = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
	bodyURLRe     = regexp.MustCompile(`https?://[^\s<>"']+`)

	// Quoted-reply boilerplate: "On <date>, <name> wrote:" and forwarded
	// "From: ... Subject:" header blocks. Everything from the marker to the
	// end of the text is dropped.
	quotedReplyRe  = regexp.MustCompile(`(?is)\bOn\s+[^\n]{0,120}\bwrote:\s*.*$`)
	forwardBlockRe = regexp.MustCompile(`(?is)\bFrom:\s+[^\n]{0,200}\n[^\n]{0,200}\bSubject:.*$`)

	// Trailing unsubscribe/legal footers. Matched from the first
	// occurrence to the end of the text.
	footerRe = regexp.MustCompile(`(?is)\b(unsubscribe|manage\s+(your\s+)?(email\s+)?preferences|update\s+your\s+preferences|this\s+email\s+was\s+sent\s+to|you\s+(are\s+)?receiv(e|ed|ing)\s+this\s+(email|message)\s+because|view\s+(this\s+email\s+)?in\s+(your\s+)?browser|confidentiality\s+notice|this\s+message\s+contains\s+confidential)\b.*$`)
)

// Normalize cleans a raw message body according to policy. Pure transform:
// absence of matches is a no-op, and it never fails — on any conversion
// error the regex fallback path runs instead.
func Normalize(raw string, policy Policy) string {
	if raw == "" {
		return ""
	}
	text := raw

	if policy.StripStyles {
		text = styleBlockRe.ReplaceAllString(text, " ")
		text = inlineStyleRe.ReplaceAllString(text, "")
	}

	if policy.StripTags {
		text = stripMarkup(text)
	}

	if policy.StripQuotedReplies {
		text = quotedReplyRe.ReplaceAllString(text, " ")
		text = forwardBlockRe.ReplaceAllString(text, " ")
	}

	if policy.ReplaceURLs {
		text = bodyURLRe.ReplaceAllString(text, urlPlaceholder)
	}

	if policy.StripFooter {
		text = footerRe.ReplaceAllString(text, " ")
	}

	if policy.CollapseWhitespace {
		text = whitespaceRe.ReplaceAllString(text, " ")
	}
	text = strings.TrimSpace(text)

	if policy.MaxLen > 0 && len(text) > policy.MaxLen {
		text = truncate(text, policy.MaxLen)
	}

	return text
}

// truncate cuts s to at most max bytes, backing up so a multi-byte rune
// is never split, and appends the truncation marker.
func truncate(s string, max int) string {
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return strings.TrimSpace(s[:max]) + truncationMarker
}

// stripMarkup converts HTML to plain text, decoding entities. html2text
// chokes on some malformed fragments; the regex path covers those.
func stripMarkup(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}

	plain, err := html2text.FromString(s, html2text.Options{TextOnly: true})
	if err == nil && plain != "" {
		return plain
	}

	s = scriptBlockRe.ReplaceAllString(s, " ")
	s = tagRe.ReplaceAllString(s, " ")
	s = strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", "\"",
		"&#39;", "'",
	).Replace(s)
	return s
}
