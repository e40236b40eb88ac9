package analysis

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Link extraction feeds the important_links field on the heuristic path.
// Tracking pixels, unsubscribe links, and social-media chrome are noise,
// not links the reader needs.

var (
	linkRe = regexp.MustCompile(`https?://[^\s<>"']+`)

	ignoredLinkPatterns = []string{
		"unsubscribe", "track", "pixel", "beacon",
		"open.gif", "spacer.gif", "1x1",
		"facebook.com", "twitter.com", "instagram.com", "linkedin.com",
		"email-preferences", "manage-preferences",
	}
)

const maxExtractedLinks = 5

// ExtractLinks pulls actionable URLs from a message, preferring HTML
// anchors and falling back to plain-text matches.
func ExtractLinks(plainBody, htmlBody string) []string {
	var raw []string

	if htmlBody != "" {
		raw = append(raw, linksFromHTML(htmlBody)...)
	}
	if plainBody != "" {
		raw = append(raw, linkRe.FindAllString(plainBody, -1)...)
	}

	var out []string
	for _, u := range raw {
		clean := cleanLink(u)
		if clean == "" || isIgnoredLink(clean) {
			continue
		}
		out = append(out, clean)
	}
	return dedupeStrings(out, maxExtractedLinks)
}

func linksFromHTML(html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return linkRe.FindAllString(html, -1)
	}

	var urls []string
	doc.Find("a[href]").Each(func(i int, sel *goquery.Selection) {
		if href, exists := sel.Attr("href"); exists {
			urls = append(urls, href)
		}
	})
	return urls
}

func cleanLink(raw string) string {
	raw = strings.TrimRight(raw, ".,;:!?)")

	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ""
	}
	if parsed.Host == "" {
		return ""
	}
	return parsed.String()
}

func isIgnoredLink(u string) bool {
	lower := strings.ToLower(u)
	for _, pattern := range ignoredLinkPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return strings.HasSuffix(lower, ".gif")
}
