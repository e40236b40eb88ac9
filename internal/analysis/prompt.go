package analysis

import (
	"fmt"
	"strings"
)

// PromptMetadata carries optional header context into the prompt.
type PromptMetadata struct {
	DateHeader string
	Sender     string
}

// SystemPrompt pins the model into classifier mode for every provider.
const SystemPrompt = "You are an expert email classifier. Always respond with valid JSON only. Be precise and consistent with classifications."

// taxonomyPrompt is the single shared instruction template. Provider
// differences live in gateway dialect config (model, temperature, token
// caps), never in copy-pasted prompt variants.
const taxonomyPrompt = `Analyze this email and provide a comprehensive classification. Be extremely strict with importance levels.

EMAIL TO ANALYZE:
Subject: %s
Content: %s%s

STRICT CLASSIFICATION RULES:

VERY_IMPORTANT (only if BOTH conditions are met):
1. Has a SPECIFIC DEADLINE (today, tomorrow, exact date/time)
2. AND requires CRITICAL ACTION from the recipient
Examples: "Meeting today at 2PM", "Payment due tomorrow", "Server down - fix now"
A deadline without a required action, or urgency language without a deadline, is at most IMPORTANT.

IMPORTANT (useful information you'll need later):
- Meeting invitations (future dates)
- Booking confirmations, travel details
- Work assignments, course materials
- Bills/invoices (not due immediately)
- Official communications
Examples: "Meeting next Monday", "Flight confirmation", "Invoice due in 30 days"

UNIMPORTANT (informational, no action needed):
- Newsletters, news updates
- Social media notifications
- System notifications (non-critical)
- Personal casual emails
Examples: "Weekly newsletter", "LinkedIn notification"

SPAM (marketing/promotional content):
- ALL marketing emails (even from known companies)
- Sales, promotions, discounts
- Unsolicited advertisements
Examples: "50%% off sale", "New products available", "Limited offer"
Marketing emails are always SPAM regardless of sender or urgency language.

RESPONSE FORMAT - Return ONLY valid JSON:
{
    "importance_level": "one of VERY_IMPORTANT, IMPORTANT, UNIMPORTANT, SPAM - exactly one value, never a combination",
    "summary": "Detailed summary with specific dates, times, numbers, IDs, and actionable information. Include exact details the user needs to know.",
    "deadlines": ["Extract specific dates/times only - use actual dates"],
    "has_deadline": true or false,
    "reasoning": "Brief explanation for the classification choice",
    "important_links": ["Meeting URLs, booking links, action URLs only"],
    "attachments_mentioned": ["Important files or documents mentioned in content"]
}

The fields importance_level, summary, deadlines, and has_deadline are mandatory.`

// BuildPrompt renders a normalized message into the instruction prompt.
// No network I/O happens here.
func BuildPrompt(subject, normalizedBody string, meta *PromptMetadata) string {
	var metaInfo strings.Builder
	if meta != nil {
		if meta.DateHeader != "" {
			fmt.Fprintf(&metaInfo, "\nEmail Date: %s", meta.DateHeader)
		}
		if meta.Sender != "" {
			fmt.Fprintf(&metaInfo, "\nSender: %s", meta.Sender)
		}
	}
	return fmt.Sprintf(taxonomyPrompt, subject, normalizedBody, metaInfo.String())
}
