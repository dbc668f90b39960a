package output

import (
	"fmt"
	"io"

	"github.com/jmylchreest/presentd/internal/model"
)

// IDsFormatter outputs just the journal ids, one per line.
// Useful for piping to other commands.
type IDsFormatter struct{}

// NewIDsFormatter creates a new IDs formatter.
func NewIDsFormatter() *IDsFormatter {
	return &IDsFormatter{}
}

// Format writes journal ids to the writer, one per line.
func (f *IDsFormatter) Format(w io.Writer, changes []model.StateChange) error {
	for _, c := range changes {
		if _, err := fmt.Fprintln(w, c.ID); err != nil {
			return err
		}
	}
	return nil
}
