package config

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	if cfg.Model.MaxOutputTokens != defaultMaxOutputTokens {
		t.Errorf("max_output_tokens: got %d, want %d", cfg.Model.MaxOutputTokens, defaultMaxOutputTokens)
	}
	if cfg.Model.Temperature != defaultTemperature {
		t.Errorf("temperature: got %v, want %v", cfg.Model.Temperature, defaultTemperature)
	}
	if cfg.Model.TruncationLimit != defaultTruncationLimit {
		t.Errorf("truncation_limit: got %d, want %d", cfg.Model.TruncationLimit, defaultTruncationLimit)
	}
	if cfg.Mailbox.Source != "gmail" {
		t.Errorf("source: got %s, want gmail", cfg.Mailbox.Source)
	}
	if cfg.Mailbox.MaxEmails != defaultMaxEmails {
		t.Errorf("max_emails: got %d, want %d", cfg.Mailbox.MaxEmails, defaultMaxEmails)
	}
	if cfg.Mailbox.IMAP.Folder != "INBOX" {
		t.Errorf("folder: got %s, want INBOX", cfg.Mailbox.IMAP.Folder)
	}
	if cfg.Web.Port != defaultWebPort {
		t.Errorf("web port: got %d, want %d", cfg.Web.Port, defaultWebPort)
	}
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := Config{}
	cfg.Mailbox.MaxEmails = 50
	cfg.Model.Temperature = 0.7
	cfg.ApplyDefaults()

	if cfg.Mailbox.MaxEmails != 50 {
		t.Errorf("max_emails overwritten: got %d", cfg.Mailbox.MaxEmails)
	}
	if cfg.Model.Temperature != 0.7 {
		t.Errorf("temperature overwritten: got %v", cfg.Model.Temperature)
	}
}

func TestApplyDefaultsIMAPServer(t *testing.T) {
	cfg := Config{}
	cfg.Mailbox.Source = "imap"
	cfg.ApplyDefaults()

	if cfg.Mailbox.IMAP.Server != "imap.gmail.com" {
		t.Errorf("server: got %s, want imap.gmail.com", cfg.Mailbox.IMAP.Server)
	}
	if cfg.Mailbox.IMAP.Port != 993 {
		t.Errorf("port: got %d, want 993", cfg.Mailbox.IMAP.Port)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "gmail with credentials is valid",
			mutate: func(c *Config) {},
		},
		{
			name: "gmail without credentials",
			mutate: func(c *Config) {
				c.Mailbox.CredentialsFile = ""
			},
			wantErr: "credentials_file",
		},
		{
			name: "imap without email",
			mutate: func(c *Config) {
				c.Mailbox.Source = "imap"
				c.Mailbox.IMAP = IMAPConfig{Server: "imap.example.com", Port: 993, Password: "pw"}
			},
			wantErr: "email address",
		},
		{
			name: "imap without password",
			mutate: func(c *Config) {
				c.Mailbox.Source = "imap"
				c.Mailbox.IMAP = IMAPConfig{Server: "imap.example.com", Port: 993, Email: "a@b.com"}
			},
			wantErr: "password",
		},
		{
			name: "unknown source",
			mutate: func(c *Config) {
				c.Mailbox.Source = "pop3"
			},
			wantErr: "unknown source",
		},
		{
			name: "provider without api key",
			mutate: func(c *Config) {
				c.Model.Provider = "groq"
				c.Model.APIKey = ""
			},
			wantErr: "api_key",
		},
		{
			name: "no provider is heuristic-only and valid",
			mutate: func(c *Config) {
				c.Model.Provider = ""
				c.Model.APIKey = ""
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{}
			cfg.Mailbox.Source = "gmail"
			cfg.Mailbox.CredentialsFile = "/tmp/credentials.json"
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	want := Config{}
	want.Model.Provider = "groq"
	want.Model.APIKey = "gsk_test"
	want.Mailbox.Source = "imap"
	want.Mailbox.IMAP = IMAPConfig{
		Server:   "imap.example.com",
		Port:     993,
		Email:    "a@b.com",
		Password: "app-password",
		Folder:   "INBOX",
	}

	if err := Save(path, &want); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got.Model.Provider != "groq" || got.Model.APIKey != "gsk_test" {
		t.Errorf("model config lost: %+v", got.Model)
	}
	if got.Mailbox.IMAP.Server != "imap.example.com" {
		t.Errorf("imap config lost: %+v", got.Mailbox.IMAP)
	}
	// Load applies defaults on top of the stored values.
	if got.Mailbox.MaxEmails != defaultMaxEmails {
		t.Errorf("defaults not applied on load: max_emails=%d", got.Mailbox.MaxEmails)
	}
}
