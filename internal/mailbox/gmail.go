package mailbox

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const (
	gmailUser        = "me"
	gmailUnreadQuery = "is:unread in:inbox"
)

// GmailSource reads unread mail through the Gmail API.
type GmailSource struct {
	srv    *gmail.Service
	logger *log.Logger
}

// NewGmailSource authenticates against the Gmail API using a client
// secret file and a cached token. When no token is cached the OAuth
// device flow runs on stdin/stdout.
func NewGmailSource(ctx context.Context, credentialsFile, tokenFile string, logger *log.Logger) (*GmailSource, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}

	oauthConfig, err := google.ConfigFromJSON(b, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file: %w", err)
	}

	httpClient, err := oauthClient(ctx, oauthConfig, tokenFile)
	if err != nil {
		return nil, err
	}

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}

	return &GmailSource{srv: srv, logger: logger.With("source", "gmail")}, nil
}

func oauthClient(ctx context.Context, config *oauth2.Config, tokenFile string) (*http.Client, error) {
	tok, err := tokenFromFile(tokenFile)
	if err != nil {
		tok, err = tokenFromWeb(ctx, config)
		if err != nil {
			return nil, err
		}
		if err := saveToken(tokenFile, tok); err != nil {
			return nil, err
		}
	}
	return config.Client(ctx, tok), nil
}

func tokenFromWeb(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("Go to the following link in your browser then type the authorization code:\n%v\n", authURL)

	var authCode string
	if _, err := fmt.Scan(&authCode); err != nil {
		return nil, fmt.Errorf("unable to read authorization code: %w", err)
	}

	tok, err := config.Exchange(ctx, authCode)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve token from web: %w", err)
	}
	return tok, nil
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, err
	}
	return tok, nil
}

func saveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to save oauth token: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

func (g *GmailSource) ListUnread(ctx context.Context, max int) ([]Ref, error) {
	call := g.srv.Users.Messages.List(gmailUser).Q(gmailUnreadQuery)
	if max > 0 {
		call = call.MaxResults(int64(max))
	}

	list, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list unread messages: %w", err)
	}

	refs := make([]Ref, 0, len(list.Messages))
	for _, m := range list.Messages {
		refs = append(refs, Ref{ID: m.Id})
	}

	g.logger.Debug("listed unread messages", "count", len(refs))
	return refs, nil
}

func (g *GmailSource) Fetch(ctx context.Context, id string) (*Message, error) {
	full, err := g.srv.Users.Messages.Get(gmailUser, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch message %s: %w", id, err)
	}
	return parseGmailMessage(full), nil
}

func (g *GmailSource) Close() error { return nil }

func parseGmailMessage(msg *gmail.Message) *Message {
	out := &Message{
		ID:      msg.Id,
		Subject: defaultSubject,
		Snippet: msg.Snippet,
	}
	if msg.Payload == nil {
		return out
	}

	for _, header := range msg.Payload.Headers {
		switch strings.ToLower(header.Name) {
		case "subject":
			if header.Value != "" {
				out.Subject = header.Value
			}
		case "from":
			out.SenderHeader = header.Value
		case "date":
			out.DateHeader = header.Value
		}
	}

	out.Body = findPartBody(msg.Payload, "text/plain")
	out.HTMLBody = findPartBody(msg.Payload, "text/html")
	if out.Body == "" {
		out.Body = out.HTMLBody
	}
	return out
}

// findPartBody walks the MIME tree for the first part of the wanted type
// and decodes its base64url payload.
func findPartBody(part *gmail.MessagePart, mimeType string) string {
	if part == nil {
		return ""
	}

	if strings.EqualFold(part.MimeType, mimeType) && part.Body != nil && part.Body.Data != "" {
		data, err := base64.URLEncoding.DecodeString(part.Body.Data)
		if err == nil {
			return string(data)
		}
	}

	for _, child := range part.Parts {
		if body := findPartBody(child, mimeType); body != "" {
			return body
		}
	}
	return ""
}
