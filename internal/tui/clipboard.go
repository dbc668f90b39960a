package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/presentd/internal/dbus"
	"github.com/jmylchreest/presentd/internal/orchestrator"
)

// clipboardCandidates are tried in order when no command is configured.
var clipboardCandidates = [][]string{
	{"wl-copy", "--type", "text/plain"},
	{"xclip", "-selection", "clipboard"},
	{"xsel", "--clipboard", "--input"},
}

const clipboardTimeout = 5 * time.Second

// clipboardWriter pipes text into the clipboard.
type clipboardWriter func(ctx context.Context, text string) error

// newClipboardWriter resolves the clipboard command once. A configured
// command wins over detection. Nil means no clipboard is available.
func newClipboardWriter(configured string, lookPath func(string) (string, error)) clipboardWriter {
	argv := strings.Fields(configured)
	if len(argv) == 0 {
		for _, candidate := range clipboardCandidates {
			if _, err := lookPath(candidate[0]); err == nil {
				argv = candidate
				break
			}
		}
	}
	if len(argv) == 0 {
		return nil
	}

	return func(ctx context.Context, text string) error {
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		cmd.Stdin = strings.NewReader(text)
		if out, err := cmd.CombinedOutput(); err != nil {
			if msg := strings.TrimSpace(string(out)); msg != "" {
				return fmt.Errorf("%s: %w: %s", argv[0], err, msg)
			}
			return fmt.Errorf("%s: %w", argv[0], err)
		}
		return nil
	}
}

// copyFormat is the encoding of copied values.
type copyFormat int

const (
	copyAsJSON copyFormat = iota
	copyAsYAML
)

func (f copyFormat) String() string {
	if f == copyAsYAML {
		return "YAML"
	}
	return "JSON"
}

func (f copyFormat) encode(v any) (string, error) {
	if f == copyAsYAML {
		data, err := yaml.Marshal(v)
		return string(data), err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	return string(data), err
}

// presentationExport is the copied form of one presentation. It adds the
// presentation's place in its window to the snapshot.
type presentationExport struct {
	Token     uint64    `json:"token" yaml:"token"`
	WindowID  string    `json:"window_id" yaml:"window_id"`
	Interface string    `json:"interface" yaml:"interface"`
	Lifespan  string    `json:"lifespan" yaml:"lifespan"`
	State     string    `json:"state" yaml:"state"`
	Timeout   string    `json:"timeout" yaml:"timeout"`
	Metadata  string    `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	// Depth is 0 for the window's top presentation.
	Depth     int  `json:"depth" yaml:"depth"`
	StackSize int  `json:"stack_size" yaml:"stack_size"`
	Focused   bool `json:"focused" yaml:"focused"`
}

// exportPresentation places p within status. A presentation missing from
// status is exported with depth -1.
func exportPresentation(status *dbus.Status, p orchestrator.PresentationSnapshot) presentationExport {
	e := presentationExport{
		Token:     uint64(p.Token),
		WindowID:  p.WindowID,
		Interface: p.InterfaceName,
		Lifespan:  p.Lifespan.String(),
		State:     p.State.String(),
		Timeout:   p.Timeout,
		Metadata:  p.Metadata,
		CreatedAt: p.CreatedAt,
		Depth:     -1,
	}
	if status == nil {
		return e
	}

	for _, w := range status.Client.Windows {
		if w.Window.ID != p.WindowID {
			continue
		}
		e.StackSize = len(w.Presentations)
		for i, sp := range w.Presentations {
			if sp.Token == p.Token {
				e.Depth = i
				break
			}
		}
	}
	e.Focused = e.Depth == 0 && status.Client.FocusedWindow == p.WindowID
	return e
}

type copyResultMsg struct {
	what string
	err  error
}

// copyValue encodes v and copies it, reporting what was copied.
func (m Model) copyValue(what string, v any, format copyFormat) tea.Cmd {
	if m.clipboard == nil {
		return statusCmd("No clipboard command available", true)
	}
	text, err := format.encode(v)
	if err != nil {
		return statusCmd(fmt.Sprintf("Failed to encode %s: %v", format, err), true)
	}

	write := m.clipboard
	label := fmt.Sprintf("%s as %s", what, format)
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), clipboardTimeout)
		defer cancel()
		return copyResultMsg{what: label, err: write(ctx, text)}
	}
}

// copyPresentation copies p with its stack position.
func (m Model) copyPresentation(p orchestrator.PresentationSnapshot, format copyFormat) tea.Cmd {
	what := fmt.Sprintf("%s#%d", p.WindowID, p.Token)
	return m.copyValue(what, exportPresentation(m.status, p), format)
}

// copyStatus copies the whole daemon status.
func (m Model) copyStatus(format copyFormat) tea.Cmd {
	if m.status == nil {
		return nil
	}
	return m.copyValue("status", m.status, format)
}
