package output

import (
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/presentd/internal/model"
)

// LineFormatter writes one line per entry, suited to dmenu, fzf and grep.
type LineFormatter struct {
	opts     FormatterOptions
	template *template.Template
}

// NewLineFormatter creates a new line formatter.
func NewLineFormatter(opts FormatterOptions) *LineFormatter {
	f := &LineFormatter{opts: opts}

	if opts.Template != "" {
		tmpl, err := template.New("line").Funcs(templateFuncs()).Parse(opts.Template)
		if err == nil {
			f.template = tmpl
		}
	}

	return f
}

// Format writes entries one per line.
func (f *LineFormatter) Format(w io.Writer, changes []model.StateChange) error {
	for i := range changes {
		line := f.formatLine(i+1, &changes[i])
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func (f *LineFormatter) formatLine(index int, c *model.StateChange) string {
	if f.template != nil {
		var buf strings.Builder
		data := templateData{
			Index:        index,
			Change:       c,
			RelativeTime: relativeTime(c.At),
		}
		if err := f.template.Execute(&buf, data); err == nil {
			return buf.String()
		}
	}

	// Default format: index | age | window#token | from -> to | interface
	var parts []string
	sep := f.opts.Separator
	if sep == "" {
		sep = " | "
	}

	if f.opts.ShowIndex {
		parts = append(parts, fmt.Sprintf("%d", index))
	}
	if f.opts.ShowTime {
		parts = append(parts, shortAge(c.At))
	}
	if f.opts.ShowClient && c.ClientID != "" {
		parts = append(parts, c.ClientID)
	}

	parts = append(parts,
		fmt.Sprintf("%s#%d", c.WindowID, c.Token),
		fmt.Sprintf("%s -> %s", c.From, c.To),
	)
	if c.InterfaceName != "" {
		parts = append(parts, truncate(c.InterfaceName, f.opts.MetaMaxLen))
	}

	return strings.Join(parts, sep)
}

// templateData provides data for custom templates.
type templateData struct {
	Index        int
	Change       *model.StateChange
	RelativeTime string
}

// templateFuncs returns template helper functions.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"truncate": truncate,
		"reltime":  relativeTime,
		"stateIcon": func(s model.State) string {
			switch s {
			case model.StateForeground:
				return "*"
			case model.StateForegroundUnfocused:
				return "o"
			case model.StateBackground:
				return "-"
			default:
				return "x"
			}
		},
	}
}

func truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// relativeTime returns a human-readable relative time string.
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return humanize.Time(t)
}

// shortAge is the compact form of relativeTime used in line output.
func shortAge(t time.Time) string {
	if t.IsZero() {
		return "?"
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	default:
		return fmt.Sprintf("%dw", int(d.Hours()/24/7))
	}
}
