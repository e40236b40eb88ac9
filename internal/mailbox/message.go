// Package mailbox provides read-only access to unread mail. It resolves
// transport details (OAuth, IMAP, base64, MIME part walking) so the
// analysis pipeline only ever sees plain Message records.
package mailbox

import (
	"context"
)

const defaultSubject = "No Subject"

// Ref is a lightweight handle to a message prior to a full fetch.
type Ref struct {
	ID string
}

// Message is a fetched email. Immutable once fetched.
type Message struct {
	ID           string
	Subject      string
	Body         string // Plain text after HTML/MIME reduction
	HTMLBody     string // Raw HTML part when present (for link extraction)
	Snippet      string // Provider-supplied preview, last-resort body
	SenderHeader string
	DateHeader   string
}

// BestBody returns the plain body, falling back to the snippet when the
// provider gave us nothing better.
func (m *Message) BestBody() string {
	if m.Body != "" {
		return m.Body
	}
	return m.Snippet
}

// Source is a mailbox capable of listing and fetching unread mail.
type Source interface {
	// ListUnread returns refs for at most max unread messages.
	ListUnread(ctx context.Context, max int) ([]Ref, error)

	// Fetch retrieves the full message by id.
	Fetch(ctx context.Context, id string) (*Message, error)

	// Close releases the underlying connection.
	Close() error
}
