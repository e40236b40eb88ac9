package mailbox

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
)

// IMAPConfig holds the connection settings for an IMAP mailbox.
type IMAPConfig struct {
	Server   string
	Port     int
	Email    string
	Password string
	Folder   string
}

// IMAPSource reads unread mail over IMAP for providers without a REST
// API. App passwords are expected; the main account password is not.
type IMAPSource struct {
	cfg    IMAPConfig
	client *client.Client
	logger *log.Logger
}

// NewIMAPSource connects and logs in. The caller owns Close.
func NewIMAPSource(cfg IMAPConfig, logger *log.Logger) (*IMAPSource, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Server, cfg.Port)

	c, err := client.DialTLS(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	if err := c.Login(cfg.Email, cfg.Password); err != nil {
		c.Logout()
		return nil, fmt.Errorf("failed to login: %w", err)
	}

	if cfg.Folder == "" {
		cfg.Folder = "INBOX"
	}

	return &IMAPSource{cfg: cfg, client: c, logger: logger.With("source", "imap")}, nil
}

func (s *IMAPSource) Close() error {
	if s.client != nil {
		return s.client.Logout()
	}
	return nil
}

// ListUnread searches the folder for unseen messages. Refs carry the IMAP
// UID as an opaque id.
func (s *IMAPSource) ListUnread(ctx context.Context, max int) ([]Ref, error) {
	mbox, err := s.client.Select(s.cfg.Folder, true)
	if err != nil {
		return nil, fmt.Errorf("failed to select mailbox %s: %w", s.cfg.Folder, err)
	}
	if mbox.Messages == 0 {
		return nil, nil
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}

	uids, err := s.client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search unread messages: %w", err)
	}

	// Newest first, bounded by max.
	if max > 0 && len(uids) > max {
		uids = uids[len(uids)-max:]
	}

	refs := make([]Ref, 0, len(uids))
	for i := len(uids) - 1; i >= 0; i-- {
		refs = append(refs, Ref{ID: strconv.FormatUint(uint64(uids[i]), 10)})
	}

	s.logger.Debug("listed unread messages", "count", len(refs))
	return refs, nil
}

func (s *IMAPSource) Fetch(ctx context.Context, id string) (*Message, error) {
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid IMAP uid %q: %w", id, err)
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uint32(uid))

	// Peek keeps the message unread.
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- s.client.UidFetch(seqSet, items, messages)
	}()

	var fetched *imap.Message
	for msg := range messages {
		fetched = msg
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch message %s: %w", id, err)
	}
	if fetched == nil {
		return nil, fmt.Errorf("message %s not found", id)
	}

	return s.parseMessage(fetched, section), nil
}

func (s *IMAPSource) parseMessage(msg *imap.Message, section *imap.BodySectionName) *Message {
	out := &Message{
		ID:      strconv.FormatUint(uint64(msg.Uid), 10),
		Subject: defaultSubject,
	}

	if msg.Envelope != nil {
		if msg.Envelope.Subject != "" {
			out.Subject = msg.Envelope.Subject
		}
		if !msg.Envelope.Date.IsZero() {
			out.DateHeader = msg.Envelope.Date.Format("Mon, 2 Jan 2006 15:04:05 -0700")
		}
		if len(msg.Envelope.From) > 0 {
			from := msg.Envelope.From[0]
			if from.PersonalName != "" {
				out.SenderHeader = fmt.Sprintf("%s <%s>", from.PersonalName, from.Address())
			} else {
				out.SenderHeader = from.Address()
			}
		}
	}

	r := msg.GetBody(section)
	if r == nil {
		return out
	}

	mr, err := mail.CreateReader(r)
	if err != nil {
		return out // Envelope-only on parse error
	}

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		if h, ok := p.Header.(*mail.InlineHeader); ok {
			ct, _, _ := h.ContentType()
			body, _ := io.ReadAll(p.Body)

			if strings.HasPrefix(ct, "text/plain") && out.Body == "" {
				out.Body = string(body)
			} else if strings.HasPrefix(ct, "text/html") && out.HTMLBody == "" {
				out.HTMLBody = string(body)
			}
		}
	}

	if out.Body == "" {
		out.Body = out.HTMLBody
	}
	return out
}
