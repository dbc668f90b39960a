// Package output provides output formatters for presentctl.
package output

import (
	"io"

	"github.com/jmylchreest/presentd/internal/model"
)

// Formatter formats journal entries for output.
type Formatter interface {
	// Format writes formatted entries to the writer.
	Format(w io.Writer, changes []model.StateChange) error
}

// FormatType represents an output format type.
type FormatType string

const (
	FormatLine  FormatType = "line"
	FormatJSON  FormatType = "json"
	FormatPlain FormatType = "plain"
	FormatIDs   FormatType = "ids"
)

// ParseFormat returns the format type for s, defaulting to plain.
func ParseFormat(s string) FormatType {
	switch FormatType(s) {
	case FormatLine, FormatJSON, FormatIDs:
		return FormatType(s)
	default:
		return FormatPlain
	}
}

// NewFormatter creates a formatter for the specified format type.
func NewFormatter(format FormatType, opts FormatterOptions) Formatter {
	switch format {
	case FormatJSON:
		return NewJSONFormatter(opts)
	case FormatLine:
		return NewLineFormatter(opts)
	case FormatIDs:
		return NewIDsFormatter()
	case FormatPlain:
		fallthrough
	default:
		return NewPlainFormatter(opts)
	}
}

// FormatterOptions configures formatter behavior.
type FormatterOptions struct {
	Template    string // Custom template for line/plain format
	ShowIndex   bool   // Show 1-based index prefix
	ShowTime    bool   // Show relative time
	ShowClient  bool   // Show the client id
	MetaMaxLen  int    // Maximum interface name length (0 = unlimited)
	Separator   string // Field separator for line format
	OutputField string // Field to output (for single-entry mode)
}

// DefaultFormatterOptions returns sensible defaults for terminal output.
func DefaultFormatterOptions() FormatterOptions {
	return FormatterOptions{
		ShowIndex:  true,
		ShowTime:   true,
		MetaMaxLen: 40,
		Separator:  " | ",
	}
}
