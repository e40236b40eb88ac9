package analysis

import (
	"regexp"
	"strings"
)

// The heuristic path is the guaranteed fallback: pure, deterministic, no
// I/O, never fails. When every network call dies, these functions still
// produce a usable Result.

// Keyword sets evaluated in fixed priority order. Business terms come
// first so bookings and invoices are not misread as promotional by
// incidental keyword overlap; promotional intent is checked before urgency
// because marketing copy leans on urgency language ("respond today!") and
// promotional intent dominates.
var (
	businessKeywords = []string{
		"booking", "reservation", "itinerary", "flight", "invoice",
		"receipt", "statement", "confirmation number", "order confirmation",
		"meeting invitation", "interview", "appointment", "contract",
		"payment due", "account verification",
	}

	promoKeywords = []string{
		"sale", "% off", "discount", "offer", "deal", "promotion",
		"buy now", "limited time", "coupon", "free shipping",
		"new arrivals", "exclusive access", "flash sale", "clearance",
		"special price", "shop now",
	}

	urgencyKeywords = []string{
		"urgent", "asap", "immediately", "action required", "deadline",
		"critical", "emergency", "please respond", "please confirm",
		"respond by", "reply by", "needs your attention", "past due",
		"final notice", "expires",
	}

	infoKeywords = []string{
		"newsletter", "digest", "weekly update", "notification",
		"fyi", "announcement", "release notes", "changelog",
	}

	// Action-demanding phrases for the VERY_IMPORTANT tie-break. Urgency
	// language alone is not enough; the message must ask the recipient to
	// do something.
	actionPhrases = []string{
		"please respond", "please confirm", "please reply", "please review",
		"action required", "respond by", "reply by", "rsvp", "confirm attendance",
		"sign and return", "submit by", "complete by", "approve", "must be",
		"needs your attention", "respond immediately",
	}
)

// Deadline extraction patterns, applied in order. The concrete set matches
// resolvable calendar dates; the relative set matches terms like
// "tomorrow" only when a deadline-context word sits nearby. Only concrete
// matches satisfy the VERY_IMPORTANT deadline requirement.
var (
	concreteDeadlineRes = []*regexp.Regexp{
		// Numeric dates: 6/18/2025, 18-06-25, 2025-06-18
		regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`),
		regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
		// Month-name dates: June 18, June 18th 2025, Jun. 18
		regexp.MustCompile(`(?i)\b(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?\s+\d{1,2}(?:st|nd|rd|th)?(?:,?\s+\d{4})?\b`),
		// Day-first: 18 June, 18th of June 2025
		regexp.MustCompile(`(?i)\b\d{1,2}(?:st|nd|rd|th)?(?:\s+of)?\s+(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)(?:,?\s+\d{4})?\b`),
	}

	relativeDeadlineRe = regexp.MustCompile(`(?i)\b(today|tomorrow|tonight|end of (?:the )?(?:day|week|month)|eod|eow|next week|this week)\b`)

	// A relative term only counts near a deadline-context word.
	deadlineContextRe = regexp.MustCompile(`(?i)\b(due|deadline|by|before|until|expires?|submit|respond|reply|confirm|closes?)\b[^.!?\n]{0,40}$`)

	sentenceSplitRe = regexp.MustCompile(`[.!?]+\s+`)
)

const (
	summaryMaxLen       = 240
	noContentSummary    = "No content available"
	maxHeuristicMatches = maxDeadlines
)

// ExtractDeadlines pulls date/time strings out of a message. Exact-string
// dedup only: two formats of the same day both survive.
func ExtractDeadlines(subject, body string) []string {
	text := subject + " " + body

	var found []string
	for _, re := range concreteDeadlineRes {
		found = append(found, re.FindAllString(text, -1)...)
	}

	// Relative terms need a deadline-context word in the preceding span.
	for _, loc := range relativeDeadlineRe.FindAllStringIndex(text, -1) {
		prefix := text[:loc[0]]
		if deadlineContextRe.MatchString(prefix) {
			found = append(found, text[loc[0]:loc[1]])
		}
	}

	return dedupeStrings(trimAll(found), maxHeuristicMatches)
}

// HasConcreteDeadline reports whether the text names a resolvable calendar
// date. Relative terms like "tomorrow" do not qualify.
func HasConcreteDeadline(subject, body string) bool {
	text := subject + " " + body
	for _, re := range concreteDeadlineRes {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// HasActionPhrase reports whether the text demands action from the
// recipient.
func HasActionPhrase(subject, body string) bool {
	text := strings.ToLower(subject + " " + body)
	for _, phrase := range actionPhrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

// HeuristicClassify assigns an importance level from keyword sets alone.
// First matching set wins; default is UNIMPORTANT. The returned level is a
// candidate — the analyzer still applies the VERY_IMPORTANT tie-break.
func HeuristicClassify(subject, body string) ImportanceLevel {
	text := strings.ToLower(subject + " " + body)

	if matchesAny(text, businessKeywords) {
		return Important
	}
	// Promotional intent dominates urgency: marketing mail is SPAM even
	// when it shouts "respond today".
	if matchesAny(text, promoKeywords) {
		return Spam
	}
	if matchesAny(text, urgencyKeywords) || HasActionPhrase(subject, body) {
		return VeryImportant
	}
	if matchesAny(text, infoKeywords) {
		return Unimportant
	}
	return Unimportant
}

// HeuristicSummarize builds a summary from the first sentence, a
// keyword-bearing middle sentence when one exists, and the last sentence.
func HeuristicSummarize(body string) string {
	body = strings.TrimSpace(body)
	if body == "" {
		return noContentSummary
	}

	sentences := splitSentences(body)
	if len(sentences) == 0 {
		return noContentSummary
	}

	parts := []string{sentences[0]}

	if len(sentences) > 2 {
		for _, s := range sentences[1 : len(sentences)-1] {
			lower := strings.ToLower(s)
			if matchesAny(lower, urgencyKeywords) || matchesAny(lower, businessKeywords) {
				parts = append(parts, s)
				break
			}
		}
	}

	if len(sentences) > 1 {
		parts = append(parts, sentences[len(sentences)-1])
	}

	summary := strings.Join(parts, ". ")
	if len(summary) > summaryMaxLen {
		summary = truncate(summary, summaryMaxLen)
	}
	if summary == "" {
		return noContentSummary
	}
	return summary
}

// HeuristicResult assembles a complete fallback Result for a message.
func HeuristicResult(subject, body string, kind FailureKind) Result {
	deadlines := ExtractDeadlines(subject, body)
	level := applyTieBreak(HeuristicClassify(subject, body),
		HasConcreteDeadline(subject, body), HasActionPhrase(subject, body))

	return Result{
		Level:       level,
		Summary:     HeuristicSummarize(body),
		Deadlines:   deadlines,
		HasDeadline: len(deadlines) > 0,
		Source:      SourceHeuristic,
		FailureKind: kind,
	}
}

// applyTieBreak enforces the top-severity conjunction: VERY_IMPORTANT
// requires both a concrete deadline and an action-demanding phrase.
// Either alone caps the level at IMPORTANT.
func applyTieBreak(level ImportanceLevel, concreteDeadline, actionPhrase bool) ImportanceLevel {
	if level == VeryImportant && !(concreteDeadline && actionPhrase) {
		return Important
	}
	return level
}

func matchesAny(lowerText string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lowerText, kw) {
			return true
		}
	}
	return false
}

func splitSentences(text string) []string {
	raw := sentenceSplitRe.Split(text, -1)
	var out []string
	for _, s := range raw {
		s = strings.TrimSpace(strings.TrimRight(s, ".!? "))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func trimAll(in []string) []string {
	for i, s := range in {
		in[i] = strings.TrimSpace(s)
	}
	return in
}
