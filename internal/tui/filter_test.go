package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsFilterExpression(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expected bool
	}{
		// Valid filter expressions
		{"window_equal", "window=main", true},
		{"window_not_equal", "window!=overlay", true},
		{"interface_contains", "interface~Alerts", true},
		{"interface_regex", "interface~=^Alexa\\.", true},
		{"lifespan_greater_eq", "lifespan>=long", true},
		{"lifespan_less", "lifespan<permanent", true},
		{"state_alias", "state=foreground", true},
		{"token", "token=3", true},
		{"at", "at<1h", true},
		{"short_aliases", "w=main,l=short", true},
		{"multiple", "window=main,state=background", true},

		// Not filter expressions (plain text search)
		{"plain_word", "alerts", false},
		{"plain_phrase", "now playing", false},
		{"email_address", "user@example.com", false},
		{"url", "https://example.com", false},
		{"unknown_field", "unknown=value", false},
		{"bad_state", "state=asleep", false},
		{"bad_token", "token=abc", false},
		{"just_equals", "=value", false},
		{"number", "12345", false},
		{"empty", "", false},

		// Edge cases
		{"partial_field", "win=main", false},
		{"case_insensitive_field", "WINDOW=main", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isFilterExpression(tt.query)
			assert.Equal(t, tt.expected, result, "query: %q", tt.query)
		})
	}
}
