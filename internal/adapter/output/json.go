package output

import (
	"encoding/json"
	"io"

	"github.com/jmylchreest/presentd/internal/model"
)

// JSONFormatter formats journal entries as JSON.
type JSONFormatter struct {
	opts FormatterOptions
}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter(opts FormatterOptions) *JSONFormatter {
	return &JSONFormatter{opts: opts}
}

// Format writes entries as a JSON array.
func (f *JSONFormatter) Format(w io.Writer, changes []model.StateChange) error {
	if changes == nil {
		changes = []model.StateChange{}
	}
	return writeJSON(w, changes)
}

// FormatSingle writes a single entry as JSON.
func (f *JSONFormatter) FormatSingle(w io.Writer, c *model.StateChange) error {
	return writeJSON(w, c)
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
