package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/template"

	"github.com/jmylchreest/presentd/internal/model"
)

// PlainFormatter formats journal entries as plain text.
type PlainFormatter struct {
	opts     FormatterOptions
	template *template.Template
}

// NewPlainFormatter creates a new plain text formatter.
func NewPlainFormatter(opts FormatterOptions) *PlainFormatter {
	f := &PlainFormatter{opts: opts}

	if opts.Template != "" {
		tmpl, err := template.New("plain").Funcs(templateFuncs()).Parse(opts.Template)
		if err == nil {
			f.template = tmpl
		}
	}

	return f
}

// Format writes entries as plain text.
func (f *PlainFormatter) Format(w io.Writer, changes []model.StateChange) error {
	for i := range changes {
		if err := f.formatChange(w, i+1, &changes[i]); err != nil {
			return err
		}
	}
	return nil
}

func (f *PlainFormatter) formatChange(w io.Writer, index int, c *model.StateChange) error {
	if f.template != nil {
		data := templateData{
			Index:        index,
			Change:       c,
			RelativeTime: relativeTime(c.At),
		}
		return f.template.Execute(w, data)
	}

	var sb strings.Builder

	if f.opts.ShowIndex {
		fmt.Fprintf(&sb, "[%d] ", index)
	}

	fmt.Fprintf(&sb, "%s token %d: %s -> %s", c.WindowID, c.Token, c.From, c.To)

	if f.opts.ShowTime {
		fmt.Fprintf(&sb, " (%s)", relativeTime(c.At))
	}

	sb.WriteString("\n")

	detail := []string{"lifespan=" + c.Lifespan.String()}
	if c.InterfaceName != "" {
		detail = append(detail, "interface="+truncate(c.InterfaceName, f.opts.MetaMaxLen))
	}
	if f.opts.ShowClient && c.ClientID != "" {
		detail = append(detail, "client="+c.ClientID)
	}
	sb.WriteString("    " + strings.Join(detail, " ") + "\n")

	_, err := w.Write([]byte(sb.String()))
	return err
}

// FormatField outputs a specific field from an entry.
func FormatField(c *model.StateChange, field string) string {
	switch strings.ToLower(field) {
	case "id":
		return c.ID
	case "window", "window_id":
		return c.WindowID
	case "token":
		return strconv.FormatUint(uint64(c.Token), 10)
	case "interface":
		return c.InterfaceName
	case "client", "client_id":
		return c.ClientID
	case "lifespan":
		return c.Lifespan.String()
	case "from":
		return c.From.String()
	case "to", "state":
		return c.To.String()
	case "all", "full":
		return fmt.Sprintf("%s#%d %s -> %s", c.WindowID, c.Token, c.From, c.To)
	default:
		return c.To.String()
	}
}
