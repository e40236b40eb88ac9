package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

const (
	defaultMaxEmails       = 10
	defaultRetryCount      = 3
	defaultMaxOutputTokens = 1000
	defaultTruncationLimit = 3000
	defaultTemperature     = 0.1
	defaultWebPort         = 8765
)

func checkFilePermissions(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if perm := info.Mode().Perm(); perm&0077 != 0 {
		return fmt.Errorf("config file %s has insecure permissions %04o; should be 0600", path, perm)
	}
	return nil
}

type Config struct {
	Model   ModelConfig   `yaml:"model"`
	Mailbox MailboxConfig `yaml:"mailbox"`
	Web     WebConfig     `yaml:"web,omitempty"`
}

// ModelConfig selects and tunes the active model gateway. The provider is
// resolved once at startup and never switched mid-run.
type ModelConfig struct {
	Provider        string  `yaml:"provider"` // "groq", "openai", or "" for heuristic-only
	APIKey          string  `yaml:"api_key"`
	BaseURL         string  `yaml:"base_url,omitempty"` // Override the provider endpoint
	Model           string  `yaml:"model,omitempty"`    // Override the preset model name
	MaxOutputTokens int64   `yaml:"max_output_tokens"`
	Temperature     float64 `yaml:"temperature"`
	RetryCount      int     `yaml:"retry_count"`
	TruncationLimit int     `yaml:"truncation_limit"` // Normalizer content cap, 0 = unlimited
}

// MailboxConfig selects the message source.
type MailboxConfig struct {
	Source          string     `yaml:"source"` // "gmail" or "imap"
	MaxEmails       int        `yaml:"max_emails"`
	CredentialsFile string     `yaml:"credentials_file,omitempty"` // Gmail OAuth client secret
	TokenFile       string     `yaml:"token_file,omitempty"`       // Cached Gmail OAuth token
	IMAP            IMAPConfig `yaml:"imap,omitempty"`
}

type IMAPConfig struct {
	Server   string `yaml:"server"`
	Port     int    `yaml:"port"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"` // App password, not the main password
	Folder   string `yaml:"folder"`
}

type WebConfig struct {
	Port int `yaml:"port"`
}

func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".mailtriage", "config.yaml")
}

// DataDir is where the results database and cached tokens live.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mailtriage"
	}
	return filepath.Join(home, ".mailtriage")
}

func Load(path string) (*Config, error) {
	if err := checkFilePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: %v\n", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Model.MaxOutputTokens == 0 {
		c.Model.MaxOutputTokens = defaultMaxOutputTokens
	}
	if c.Model.Temperature == 0 {
		c.Model.Temperature = defaultTemperature
	}
	if c.Model.RetryCount == 0 {
		c.Model.RetryCount = defaultRetryCount
	}
	if c.Model.TruncationLimit == 0 {
		c.Model.TruncationLimit = defaultTruncationLimit
	}

	if c.Mailbox.MaxEmails == 0 {
		c.Mailbox.MaxEmails = defaultMaxEmails
	}
	if c.Mailbox.Source == "" {
		c.Mailbox.Source = "gmail"
	}
	if c.Mailbox.CredentialsFile == "" {
		c.Mailbox.CredentialsFile = filepath.Join(DataDir(), "credentials.json")
	}
	if c.Mailbox.TokenFile == "" {
		c.Mailbox.TokenFile = filepath.Join(DataDir(), "token.json")
	}

	if c.Mailbox.IMAP.Folder == "" {
		c.Mailbox.IMAP.Folder = "INBOX"
	}
	if c.Mailbox.Source == "imap" && c.Mailbox.IMAP.Server == "" && c.Mailbox.IMAP.Port == 0 {
		c.Mailbox.IMAP.Server = "imap.gmail.com"
		c.Mailbox.IMAP.Port = 993
	}

	if c.Web.Port == 0 {
		c.Web.Port = defaultWebPort
	}
}

func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

func (c *Config) Validate() error {
	switch c.Mailbox.Source {
	case "gmail":
		if c.Mailbox.CredentialsFile == "" {
			return fmt.Errorf("mailbox: credentials_file is required for gmail")
		}
	case "imap":
		if c.Mailbox.IMAP.Email == "" {
			return fmt.Errorf("mailbox.imap: email address is required")
		}
		if c.Mailbox.IMAP.Password == "" {
			return fmt.Errorf("mailbox.imap: password (app password) is required")
		}
		if c.Mailbox.IMAP.Server == "" {
			return fmt.Errorf("mailbox.imap: server is required")
		}
		if c.Mailbox.IMAP.Port == 0 {
			return fmt.Errorf("mailbox.imap: port is required")
		}
	default:
		return fmt.Errorf("mailbox: unknown source %q (gmail or imap)", c.Mailbox.Source)
	}

	// No provider means heuristic-only operation, which is valid; a
	// provider without credentials is a config mistake.
	if c.Model.Provider != "" && c.Model.APIKey == "" {
		return fmt.Errorf("model: api_key is required when provider is set")
	}

	return nil
}
