package llm

import (
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

func TestNewGatewayUnknownProvider(t *testing.T) {
	_, err := NewGateway("claude", Options{APIKey: "k"}, testLogger())
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
	if !strings.Contains(err.Error(), "unknown model provider") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewGatewayMissingAPIKey(t *testing.T) {
	_, err := NewGateway("groq", Options{}, testLogger())
	if err == nil {
		t.Fatal("expected error for missing api key")
	}
	if !strings.Contains(err.Error(), "api key") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewGatewayPresets(t *testing.T) {
	for _, provider := range Providers() {
		t.Run(provider, func(t *testing.T) {
			gw, err := NewGateway(provider, Options{APIKey: "k"}, testLogger())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if gw.Name() != provider {
				t.Errorf("name: got %s, want %s", gw.Name(), provider)
			}
		})
	}
}

func TestNewGatewayOptionOverrides(t *testing.T) {
	gw, err := NewGateway("groq", Options{APIKey: "k", TruncationLimit: 1500}, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := gw.Policy().MaxLen; got != 1500 {
		t.Errorf("policy max len: got %d, want 1500", got)
	}
}

func TestNewGatewayZeroOptionsKeepPreset(t *testing.T) {
	gw, err := NewGateway("groq", Options{APIKey: "k"}, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	policy := gw.Policy()
	if policy.MaxLen != 3000 {
		t.Errorf("policy max len: got %d, want preset 3000", policy.MaxLen)
	}
	if !policy.ReplaceURLs {
		t.Error("groq preset should replace URLs")
	}
}
