package analysis

import (
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected ImportanceLevel
		ok       bool
	}{
		{
			name:     "exact level",
			raw:      "VERY_IMPORTANT",
			expected: VeryImportant,
			ok:       true,
		},
		{
			name:     "lowercase level",
			raw:      "spam",
			expected: Spam,
			ok:       true,
		},
		{
			name:     "surrounding whitespace",
			raw:      "  IMPORTANT  ",
			expected: Important,
			ok:       true,
		},
		{
			name:     "pipe compound collapses to highest severity",
			raw:      "VERY_IMPORTANT|IMPORTANT",
			expected: VeryImportant,
			ok:       true,
		},
		{
			name:     "comma compound",
			raw:      "UNIMPORTANT, SPAM",
			expected: Unimportant,
			ok:       true,
		},
		{
			name:     "slash compound reversed order",
			raw:      "IMPORTANT/VERY_IMPORTANT",
			expected: VeryImportant,
			ok:       true,
		},
		{
			name:     "literal or connector",
			raw:      "IMPORTANT or UNIMPORTANT",
			expected: Important,
			ok:       true,
		},
		{
			name:     "quoted member",
			raw:      `"SPAM"`,
			expected: Spam,
			ok:       true,
		},
		{
			name: "empty string",
			raw:  "",
			ok:   false,
		},
		{
			name: "unknown value",
			raw:  "CRITICAL",
			ok:   false,
		},
		{
			name: "compound of unknowns",
			raw:  "HIGH|LOW",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseLevel(tt.raw)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.expected {
				t.Errorf("got %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestSeverityOrdering(t *testing.T) {
	// SPAM ranks below UNIMPORTANT: it is terminal, not a milder grade.
	order := []ImportanceLevel{VeryImportant, Important, Unimportant, Spam}
	for i := 0; i < len(order)-1; i++ {
		if order[i].Severity() <= order[i+1].Severity() {
			t.Errorf("%s should rank above %s", order[i], order[i+1])
		}
	}

	if ImportanceLevel("BOGUS").Severity() != -1 {
		t.Errorf("unknown level should rank below everything")
	}
}
