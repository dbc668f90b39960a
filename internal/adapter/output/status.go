package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/presentd/internal/core"
	"github.com/jmylchreest/presentd/internal/dbus"
	"github.com/jmylchreest/presentd/internal/scenario"
)

// FormatWaybar is the Waybar custom module format. Only status output
// supports it.
const FormatWaybar FormatType = "waybar"

// WaybarStatus represents the Waybar custom module JSON format.
type WaybarStatus struct {
	Text       string `json:"text"`
	Alt        string `json:"alt,omitempty"`
	Tooltip    string `json:"tooltip,omitempty"`
	Class      string `json:"class,omitempty"`
	Percentage int    `json:"percentage,omitempty"`
}

// NewWaybarStatus summarises a daemon status for Waybar. The text is the
// number of visible presentations; the class is the state of the focused
// window's top presentation.
func NewWaybarStatus(status *dbus.Status) WaybarStatus {
	visible := 0
	var lines []string
	class := "empty"

	for _, w := range status.Client.Windows {
		top, ok := w.Top()
		if !ok {
			continue
		}
		if top.State.IsVisible() {
			visible++
		}
		if w.Window.ID == status.Client.FocusedWindow {
			class = top.State.String()
		}
		lines = append(lines, fmt.Sprintf("%s: %s (%s, %d stacked)",
			w.Window.ID, top.InterfaceName, top.State, len(w.Presentations)))
	}

	if visible == 0 && len(lines) == 0 {
		return WaybarStatus{Alt: "empty", Class: "empty"}
	}

	return WaybarStatus{
		Text:       fmt.Sprintf("%d", visible),
		Alt:        class,
		Tooltip:    strings.Join(lines, "\n"),
		Class:      class,
		Percentage: min(visible*100/max(len(status.Client.Windows), 1), 100),
	}
}

// WriteStatus writes a daemon status in the given format.
func WriteStatus(w io.Writer, status *dbus.Status, format FormatType) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, status)
	case FormatWaybar:
		return writeJSON(w, NewWaybarStatus(status))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "presentd %s, up %s\n", status.Version, span(status.Uptime()))
	fmt.Fprintf(&sb, "client %s", status.Client.ClientID)
	if status.Client.FocusedWindow != "" {
		fmt.Fprintf(&sb, ", focused %s", status.Client.FocusedWindow)
	}
	fmt.Fprintf(&sb, ", %d journal entries, %d dropped requests\n",
		status.JournalEntries, status.DroppedRequests)
	if len(status.BusPresentations) > 0 {
		tokens := make([]string, len(status.BusPresentations))
		for i, bp := range status.BusPresentations {
			tokens[i] = fmt.Sprintf("%s#%d", bp.WindowID, bp.Token)
		}
		fmt.Fprintf(&sb, "bus: %d presentations, %d visible: %s\n",
			len(status.BusPresentations), status.BusVisible, strings.Join(tokens, " "))
	}

	holders := make(map[string]int, len(status.Windows))
	for _, ws := range status.Windows {
		holders[ws.Window.ID] = len(ws.Holders)
	}

	for _, win := range status.Client.Windows {
		fmt.Fprintf(&sb, "\n%s (z=%d, %s)", win.Window.ID, win.Window.ZOrderIndex,
			strings.Join(win.Window.SupportedInterfaces, ", "))
		if win.Window.ID == status.Client.FocusedWindow {
			sb.WriteString(" focused")
		}
		if n := holders[win.Window.ID]; n > 0 {
			fmt.Fprintf(&sb, " held by %d", n)
		}
		sb.WriteString("\n")

		if len(win.Presentations) == 0 {
			sb.WriteString("    (empty)\n")
			continue
		}
		for _, p := range win.Presentations {
			fmt.Fprintf(&sb, "    %-4d %-20s %-9s timeout=%s %s (%s)\n",
				p.Token, p.State, p.Lifespan, p.Timeout, p.InterfaceName, relativeTime(p.CreatedAt))
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// WriteResult writes a scenario result in the given format.
func WriteResult(w io.Writer, result *scenario.Result, format FormatType, verbose bool) error {
	if format == FormatJSON {
		return writeJSON(w, result)
	}

	var sb strings.Builder
	verdict := "PASS"
	if !result.Passed {
		verdict = "FAIL"
	}
	fmt.Fprintf(&sb, "%s %s (%d steps, %s virtual, %d transitions, %d dropped)\n",
		verdict, result.Name, len(result.Steps), result.Elapsed, len(result.Changes), result.Dropped)

	for _, step := range result.Steps {
		if !verbose && step.Passed() {
			continue
		}
		mark := "ok"
		if !step.Passed() {
			mark = "FAIL"
		}
		fmt.Fprintf(&sb, "  %3d %-4s %s", step.Index, mark, step.Action)
		if step.Detail != "" {
			fmt.Fprintf(&sb, " %s", step.Detail)
		}
		sb.WriteString("\n")
		for _, f := range step.Failures {
			fmt.Fprintf(&sb, "           %s\n", f)
		}
	}

	if verbose {
		for _, c := range result.Changes {
			fmt.Fprintf(&sb, "  %s#%d %s -> %s (%s)\n", c.WindowID, c.Token, c.From, c.To, c.Lifespan)
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// WriteLifecycles writes one summary line per presentation.
func WriteLifecycles(w io.Writer, lifecycles []core.Lifecycle, format FormatType) error {
	if format == FormatJSON {
		if lifecycles == nil {
			lifecycles = []core.Lifecycle{}
		}
		return writeJSON(w, lifecycles)
	}

	now := time.Now()
	for _, l := range lifecycles {
		verb := "alive for"
		if !l.EndedAt.IsZero() {
			verb = "lived"
		}
		if _, err := fmt.Fprintf(w, "%s#%d %-9s %-20s %s %s, %d transitions, %s\n",
			l.WindowID, l.Token, l.Lifespan, l.State, verb, span(l.Duration(now)),
			l.Transitions, l.InterfaceName); err != nil {
			return err
		}
	}
	return nil
}

// span renders a duration the way humanize renders relative times.
func span(d time.Duration) string {
	var zero time.Time
	return strings.TrimSpace(humanize.RelTime(zero, zero.Add(d), "", ""))
}
