// Package tui provides the BubbleTea-based terminal user interface.
package tui

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/presentd/internal/config"
	"github.com/jmylchreest/presentd/internal/core"
	"github.com/jmylchreest/presentd/internal/dbus"
	"github.com/jmylchreest/presentd/internal/model"
	"github.com/jmylchreest/presentd/internal/orchestrator"
)

// Mode represents the current UI mode.
type Mode int

const (
	ModeList Mode = iota
	ModeDetail
	ModeSearch
	ModeHelp
)

const callTimeout = 3 * time.Second

// Backend is the daemon surface the TUI drives. *dbus.Client implements it.
type Backend interface {
	Status(ctx context.Context) (*dbus.Status, error)
	Dismiss(ctx context.Context, token model.Token) error
	Foreground(ctx context.Context, token model.Token) error
	NavigateBack(ctx context.Context) (bool, error)
	ClearPresentations(ctx context.Context) error
}

// Model is the main TUI model.
type Model struct {
	// Configuration
	cfg     *config.Config
	backend Backend
	refresh time.Duration

	// Current mode
	mode Mode

	// Components
	list        list.Model
	viewport    viewport.Model
	searchInput textinput.Model
	help        help.Model

	// State
	status      *dbus.Status
	lastErr     error
	selected    *orchestrator.PresentationSnapshot
	searchQuery string
	topsOnly    bool
	width       int
	height      int
	ready       bool

	// Key bindings
	keys KeyMap

	// Status message
	statusMsg string
	statusErr bool

	// Presentation signals from the daemon, nil when not watching
	events <-chan dbus.Event

	clipboard clipboardWriter
}

// presentationItem wraps a presentation for the list component.
type presentationItem struct {
	presentation orchestrator.PresentationSnapshot
	top          bool
	focused      bool
}

func (i presentationItem) Title() string {
	p := i.presentation
	return fmt.Sprintf("%s#%d %s", p.WindowID, p.Token, p.InterfaceName)
}

func (i presentationItem) Description() string {
	p := i.presentation
	desc := fmt.Sprintf("%s · %s · timeout %s · %s",
		p.State, p.Lifespan, p.Timeout, humanize.Time(p.CreatedAt))
	if p.Metadata != "" {
		desc += " · " + p.Metadata
	}
	return desc
}

func (i presentationItem) FilterValue() string {
	p := i.presentation
	return p.WindowID + " " + p.InterfaceName + " " + p.Metadata
}

// presentationDelegate styles items by state. Background presentations are
// dimmed and the focused window's top is marked.
type presentationDelegate struct {
	list.DefaultDelegate
}

func newPresentationDelegate() presentationDelegate {
	d := list.NewDefaultDelegate()
	return presentationDelegate{DefaultDelegate: d}
}

// Render renders a list item.
func (d presentationDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	pi, ok := item.(presentationItem)
	if !ok {
		d.DefaultDelegate.Render(w, m, index, item)
		return
	}

	isSelected := index == m.Index()
	isDimmed := !pi.presentation.State.IsVisible()

	itemWidth := m.Width() - d.DefaultDelegate.Styles.NormalTitle.GetHorizontalPadding()

	var titleStyle, descStyle lipgloss.Style
	if isSelected {
		titleStyle = d.DefaultDelegate.Styles.SelectedTitle
		descStyle = d.DefaultDelegate.Styles.SelectedDesc
	} else {
		titleStyle = d.DefaultDelegate.Styles.NormalTitle
		descStyle = d.DefaultDelegate.Styles.NormalDesc
	}
	if isDimmed {
		titleStyle = titleStyle.Foreground(lipgloss.Color("8"))
		descStyle = descStyle.Foreground(lipgloss.Color("8"))
	}

	title := pi.Title()
	switch {
	case pi.focused:
		title = "» " + title
	case pi.top:
		title = "• " + title
	default:
		title = "  " + title
	}

	if itemWidth > 0 && len(title) > itemWidth {
		title = title[:itemWidth-1] + "…"
	}

	desc := "  " + pi.Description()
	if itemWidth > 0 && len(desc) > itemWidth {
		desc = desc[:itemWidth-1] + "…"
	}

	fmt.Fprint(w, titleStyle.Render(title))
	fmt.Fprint(w, "\n")
	fmt.Fprint(w, descStyle.Render(desc))
}

// New creates a new TUI model.
func New(cfg *config.Config, backend Backend) Model {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	l := list.New(nil, newPresentationDelegate(), 0, 0)
	l.Title = "Presentations"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	searchInput := textinput.New()
	searchInput.Placeholder = "window=main, state=foreground or text"
	searchInput.CharLimit = 100

	refresh, err := time.ParseDuration(cfg.TUI.Refresh)
	if err != nil || refresh <= 0 {
		refresh = time.Second
	}

	return Model{
		cfg:         cfg,
		backend:     backend,
		refresh:     refresh,
		mode:        ModeList,
		list:        l,
		searchInput: searchInput,
		help:        help.New(),
		keys:        DefaultKeyMap(),
		clipboard:   newClipboardWriter(cfg.TUI.Clipboard, exec.LookPath),
	}
}

// WithEvents makes the model refresh whenever a signal arrives on ch.
func (m Model) WithEvents(ch <-chan dbus.Event) Model {
	m.events = ch
	return m
}

// Init initializes the TUI.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.loadStatus,
		m.scheduleTick(),
		m.watchEvents,
	)
}

type statusLoadedMsg struct {
	status *dbus.Status
	err    error
}

type tickMsg struct{}

type eventMsg struct {
	event dbus.Event
}

type statusMsg struct {
	text  string
	isErr bool
}

type clearStatusMsg struct{}

type actionDoneMsg struct {
	label string
	text  string
	err   error
}

// loadStatus fetches the daemon status.
func (m Model) loadStatus() tea.Msg {
	if m.backend == nil {
		return statusLoadedMsg{err: fmt.Errorf("not connected")}
	}
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	status, err := m.backend.Status(ctx)
	return statusLoadedMsg{status: status, err: err}
}

func (m Model) scheduleTick() tea.Cmd {
	return tea.Tick(m.refresh, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// watchEvents waits for the next daemon signal.
func (m Model) watchEvents() tea.Msg {
	if m.events == nil {
		return nil
	}
	ev, ok := <-m.events
	if !ok {
		return nil
	}
	return eventMsg{event: ev}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

		m.list.SetSize(msg.Width, msg.Height-2)
		m.viewport = viewport.New(msg.Width, msg.Height-4)
		m.viewport.YPosition = 2
		if m.selected != nil {
			m.viewport.SetContent(m.renderDetail(*m.selected))
		}

		return m, nil

	case statusLoadedMsg:
		m.lastErr = msg.err
		if msg.err == nil {
			m.status = msg.status
		}
		m.list.SetItems(m.buildListItems())
		m.refreshSelected()
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.loadStatus, m.scheduleTick())

	case eventMsg:
		return m, tea.Batch(m.loadStatus, m.watchEvents)

	case statusMsg:
		m.statusMsg = msg.text
		m.statusErr = msg.isErr
		return m, tea.Tick(3*time.Second, func(t time.Time) tea.Msg {
			return clearStatusMsg{}
		})

	case clearStatusMsg:
		m.statusMsg = ""
		m.statusErr = false
		return m, nil

	case actionDoneMsg:
		if msg.err != nil {
			return m, tea.Batch(statusCmd(msg.label+" failed: "+msg.err.Error(), true), m.loadStatus)
		}
		return m, tea.Batch(statusCmd(msg.text, false), m.loadStatus)

	case copyResultMsg:
		if msg.err != nil {
			return m, statusCmd("Copy failed: "+msg.err.Error(), true)
		}
		return m, statusCmd("Copied "+msg.what, false)
	}

	switch m.mode {
	case ModeList:
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		cmds = append(cmds, cmd)
	case ModeDetail:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	case ModeSearch:
		var cmd tea.Cmd
		m.searchInput, cmd = m.searchInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func statusCmd(text string, isErr bool) tea.Cmd {
	return func() tea.Msg {
		return statusMsg{text: text, isErr: isErr}
	}
}

// handleKey handles key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Search input owns printable keys
	if m.mode == ModeSearch {
		return m.handleSearchKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		if m.mode == ModeHelp {
			m.mode = ModeList
		} else {
			m.mode = ModeHelp
		}
		return m, nil
	}

	switch m.mode {
	case ModeList:
		return m.handleListKey(msg)
	case ModeDetail:
		return m.handleDetailKey(msg)
	case ModeHelp:
		if key.Matches(msg, m.keys.Back) {
			m.mode = ModeList
		}
		return m, nil
	}

	return m, nil
}

// handleListKey handles keys in list mode.
func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Enter):
		if item, ok := m.list.SelectedItem().(presentationItem); ok {
			m.openDetail(item.presentation)
		}
		return m, nil

	case key.Matches(msg, m.keys.Dismiss):
		if item, ok := m.list.SelectedItem().(presentationItem); ok {
			return m, m.dismiss(item.presentation.Token)
		}
		return m, nil

	case key.Matches(msg, m.keys.Foreground):
		if item, ok := m.list.SelectedItem().(presentationItem); ok {
			return m, m.foreground(item.presentation.Token)
		}
		return m, nil

	case key.Matches(msg, m.keys.NavBack):
		return m, m.navigateBack()

	case key.Matches(msg, m.keys.Clear):
		return m, m.clearAll()

	case key.Matches(msg, m.keys.CopyJSON), key.Matches(msg, m.keys.CopyYAML):
		if item, ok := m.list.SelectedItem().(presentationItem); ok {
			return m, m.copyPresentation(item.presentation, m.copyFormatFor(msg))
		}
		return m, nil

	case key.Matches(msg, m.keys.CopyAllJSON):
		return m, m.copyStatus(copyAsJSON)

	case key.Matches(msg, m.keys.CopyAllYAML):
		return m, m.copyStatus(copyAsYAML)

	case key.Matches(msg, m.keys.ToggleAll):
		m.topsOnly = !m.topsOnly
		m.list.SetItems(m.buildListItems())
		if m.topsOnly {
			return m, statusCmd("Showing window tops only", false)
		}
		return m, statusCmd("Showing all presentations", false)

	case key.Matches(msg, m.keys.Search):
		m.searchInput.SetValue("")
		m.searchQuery = ""
		m.list.SetItems(m.buildListItems())
		m.mode = ModeSearch
		m.searchInput.Focus()
		return m, textinput.Blink

	case key.Matches(msg, m.keys.Refresh):
		return m, m.loadStatus
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// handleDetailKey handles keys in detail mode.
func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.mode = ModeList
		m.selected = nil
		return m, nil

	case key.Matches(msg, m.keys.Dismiss):
		if m.selected != nil {
			return m, m.dismiss(m.selected.Token)
		}
		return m, nil

	case key.Matches(msg, m.keys.Foreground):
		if m.selected != nil {
			return m, m.foreground(m.selected.Token)
		}
		return m, nil

	case key.Matches(msg, m.keys.CopyJSON), key.Matches(msg, m.keys.CopyYAML):
		if m.selected != nil {
			return m, m.copyPresentation(*m.selected, m.copyFormatFor(msg))
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// handleSearchKey handles keys in search mode.
func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = ModeList
		m.searchInput.Blur()
		m.searchInput.SetValue("")
		m.searchQuery = ""
		m.list.SetItems(m.buildListItems())
		return m, nil

	case tea.KeyEnter:
		m.searchInput.Blur()
		if item, ok := m.list.SelectedItem().(presentationItem); ok {
			m.openDetail(item.presentation)
		} else {
			m.mode = ModeList
		}
		return m, nil

	case tea.KeyUp, tea.KeyDown:
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd

	case tea.KeyCtrlC:
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)

	m.searchQuery = m.searchInput.Value()
	m.list.SetItems(m.buildListItems())

	return m, cmd
}

func (m *Model) openDetail(p orchestrator.PresentationSnapshot) {
	m.selected = &p
	m.mode = ModeDetail
	m.viewport.SetContent(m.renderDetail(p))
	m.viewport.GotoTop()
}

// refreshSelected keeps the detail view in step with the latest status.
func (m *Model) refreshSelected() {
	if m.selected == nil || m.status == nil {
		return
	}
	if p, ok := m.status.Client.Presentation(m.selected.Token); ok {
		m.selected = &p
	} else {
		m.selected.State = model.StateNone
	}
	m.viewport.SetContent(m.renderDetail(*m.selected))
}

// call runs a backend action off the update loop.
func (m Model) call(label string, fn func(ctx context.Context, b Backend) (string, error)) tea.Cmd {
	backend := m.backend
	return func() tea.Msg {
		if backend == nil {
			return actionDoneMsg{label: label, err: fmt.Errorf("not connected")}
		}
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		text, err := fn(ctx, backend)
		return actionDoneMsg{label: label, text: text, err: err}
	}
}

func (m Model) dismiss(token model.Token) tea.Cmd {
	return m.call("Dismiss", func(ctx context.Context, b Backend) (string, error) {
		return fmt.Sprintf("Dismissed %d", token), b.Dismiss(ctx, token)
	})
}

func (m Model) foreground(token model.Token) tea.Cmd {
	return m.call("Foreground", func(ctx context.Context, b Backend) (string, error) {
		return fmt.Sprintf("Brought %d to front", token), b.Foreground(ctx, token)
	})
}

func (m Model) navigateBack() tea.Cmd {
	return m.call("Back", func(ctx context.Context, b Backend) (string, error) {
		popped, err := b.NavigateBack(ctx)
		if popped {
			return "Navigated back", err
		}
		return "Nothing to pop", err
	})
}

func (m Model) clearAll() tea.Cmd {
	return m.call("Clear", func(ctx context.Context, b Backend) (string, error) {
		return "Cleared all presentations", b.ClearPresentations(ctx)
	})
}

func (m Model) copyFormatFor(msg tea.KeyMsg) copyFormat {
	if key.Matches(msg, m.keys.CopyYAML) {
		return copyAsYAML
	}
	return copyAsJSON
}

// buildListItems flattens the status into list items, windows in z-order
// and each window's stack top first.
func (m Model) buildListItems() []list.Item {
	if m.status == nil {
		return nil
	}

	var expr *core.FilterExpr
	if isFilterExpression(m.searchQuery) {
		expr, _ = core.ParseFilter(m.searchQuery)
	}

	snap := m.status.Client
	var items []list.Item
	for _, win := range snap.Windows {
		for i, p := range win.Presentations {
			if m.topsOnly && i > 0 {
				break
			}
			if !m.matches(p, expr) {
				continue
			}
			items = append(items, presentationItem{
				presentation: p,
				top:          i == 0,
				focused:      i == 0 && win.Window.ID == snap.FocusedWindow,
			})
		}
	}
	return items
}

func (m Model) matches(p orchestrator.PresentationSnapshot, expr *core.FilterExpr) bool {
	if m.searchQuery == "" {
		return true
	}
	if expr != nil {
		return expr.Match(asChange(p))
	}
	q := strings.ToLower(m.searchQuery)
	for _, field := range []string{p.WindowID, p.InterfaceName, p.Metadata, p.State.String(), p.Lifespan.String()} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// asChange presents a live presentation as a journal entry so the history
// filter language applies to it.
func asChange(p orchestrator.PresentationSnapshot) model.StateChange {
	return model.StateChange{
		At:            p.CreatedAt,
		WindowID:      p.WindowID,
		Token:         p.Token,
		InterfaceName: p.InterfaceName,
		Lifespan:      p.Lifespan,
		To:            p.State,
		CreatedAt:     p.CreatedAt,
	}
}

// isFilterExpression reports whether a search query should be parsed as a
// filter expression rather than matched as plain text.
func isFilterExpression(query string) bool {
	if query == "" {
		return false
	}
	expr, err := core.ParseFilter(query)
	return err == nil && len(expr.Conditions) > 0
}

// renderDetail renders the detail view for a presentation.
func (m Model) renderDetail(p orchestrator.PresentationSnapshot) string {
	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("8"))

	var sb strings.Builder
	sb.WriteString(headerStyle.Render(fmt.Sprintf("%s#%d", p.WindowID, p.Token)) + "\n\n")

	sb.WriteString(labelStyle.Render("Interface: ") + p.InterfaceName + "\n")
	sb.WriteString(labelStyle.Render("State: ") + p.State.String() + "\n")
	sb.WriteString(labelStyle.Render("Lifespan: ") + p.Lifespan.String() + "\n")
	sb.WriteString(labelStyle.Render("Timeout: ") + p.Timeout + "\n")
	sb.WriteString(labelStyle.Render("Created: ") + humanize.Time(p.CreatedAt) + "\n")

	if m.status != nil {
		for _, win := range m.status.Client.Windows {
			if win.Window.ID != p.WindowID {
				continue
			}
			sb.WriteString(labelStyle.Render("Window: ") + fmt.Sprintf("z=%d, %s",
				win.Window.ZOrderIndex, strings.Join(win.Window.SupportedInterfaces, ", ")) + "\n")
			sb.WriteString(labelStyle.Render("Stack: "))
			for i, q := range win.Presentations {
				if i > 0 {
					sb.WriteString(" > ")
				}
				fmt.Fprintf(&sb, "%d", q.Token)
			}
			sb.WriteString("\n")
		}
	}

	if p.Metadata != "" {
		sb.WriteString("\n" + labelStyle.Render("Metadata:") + "\n")
		sb.WriteString(p.Metadata + "\n")
	}

	return sb.String()
}

// View renders the TUI.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	switch m.mode {
	case ModeList:
		return m.viewList()
	case ModeDetail:
		return m.viewDetail()
	case ModeSearch:
		return m.viewSearch()
	case ModeHelp:
		return m.viewHelp()
	default:
		return ""
	}
}

func (m Model) viewList() string {
	s := m.list.View()

	switch {
	case m.statusMsg != "":
		statusStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color("7"))
		if m.statusErr {
			statusStyle = statusStyle.Foreground(lipgloss.Color("9"))
		}
		s += "\n" + statusStyle.Render(m.statusMsg)
	case m.lastErr != nil:
		s += "\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("9")).
			Render("daemon unreachable: "+m.lastErr.Error())
	default:
		s += "\n" + m.buildKeybindBar(m.width, "list")
	}

	return s
}

func (m Model) viewDetail() string {
	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Padding(0, 1)

	header := headerStyle.Render("Presentation Detail")

	return header + "\n" + m.viewport.View() + "\n" + m.buildKeybindBar(m.width, "detail")
}

func (m Model) viewSearch() string {
	countStr := fmt.Sprintf("(%d matches)", len(m.list.Items()))
	if isFilterExpression(m.searchQuery) {
		countStr = fmt.Sprintf("(filter, %d matches)", len(m.list.Items()))
	}

	searchBar := "Search: " + m.searchInput.View() + " " +
		lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(countStr)

	return searchBar + "\n" + m.list.View() + "\n" + m.buildKeybindBar(m.width, "search")
}

func (m Model) viewHelp() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		MarginBottom(1)

	sectionStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("8"))

	keyStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	s := titleStyle.Render("Keyboard Shortcuts") + "\n\n"

	s += sectionStyle.Render("Navigation") + "\n"
	s += keyStyle.Render("  j/k, ↑/↓") + "     Move up/down\n"
	s += keyStyle.Render("  g/G") + "          Go to top/bottom\n"
	s += keyStyle.Render("  pgup/pgdn") + "    Page up/down\n"
	s += "\n"

	s += sectionStyle.Render("Presentations") + "\n"
	s += keyStyle.Render("  enter") + "        View presentation details\n"
	s += keyStyle.Render("  d") + "            Dismiss presentation\n"
	s += keyStyle.Render("  f") + "            Bring presentation to front\n"
	s += keyStyle.Render("  b") + "            Navigate back on the focused window\n"
	s += keyStyle.Render("  X") + "            Clear all presentations\n"
	s += keyStyle.Render("  c") + "            Copy presentation as JSON\n"
	s += keyStyle.Render("  y") + "            Copy presentation as YAML\n"
	s += keyStyle.Render("  C") + "            Copy full status as JSON\n"
	s += keyStyle.Render("  alt+c") + "        Copy full status as YAML\n"
	s += keyStyle.Render("  a") + "            Toggle window tops only\n"
	s += keyStyle.Render("  /") + "            Search (text or window=, state=, lifespan>=)\n"
	s += keyStyle.Render("  r") + "            Refresh now\n"
	s += "\n"

	s += sectionStyle.Render("General") + "\n"
	s += keyStyle.Render("  ?") + "            Toggle this help\n"
	s += keyStyle.Render("  esc") + "          Back / Cancel\n"
	s += keyStyle.Render("  q") + "            Quit\n"

	s += "\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(
		"Press ? or esc to return")

	return s
}

// keybind represents a single keybind with priority for the status bar.
type keybind struct {
	key      string
	desc     string
	priority int // lower = more important (shown first)
}

// buildKeybindBar builds a keybind bar that fits within the given width.
// mode determines which keybinds are shown: "list", "detail", "search"
func (m Model) buildKeybindBar(width int, mode string) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	keyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10"))

	var binds []keybind

	switch mode {
	case "list":
		binds = []keybind{
			{"q", "quit", 1},
			{"enter", "view", 2},
			{"?", "help", 3},
			{"d", "dismiss", 4},
			{"f", "front", 5},
			{"b", "back", 6},
			{"/", "search", 7},
			{"a", "tops", 8},
			{"c", "copy", 9},
			{"X", "clear", 10},
		}
	case "detail":
		binds = []keybind{
			{"q", "quit", 1},
			{"esc", "back", 2},
			{"d", "dismiss", 3},
			{"f", "front", 4},
			{"c", "copy", 5},
			{"j/k", "scroll", 6},
		}
	case "search":
		binds = []keybind{
			{"enter", "view", 1},
			{"esc", "close", 2},
			{"↑/↓", "navigate", 3},
		}
	}

	const separator = "  "
	result := ""
	for _, b := range binds {
		item := keyStyle.Render(b.key) + " " + b.desc
		plainItem := b.key + " " + b.desc
		testLen := len(result) + len(separator) + len(plainItem)
		if result != "" {
			testLen = len(stripANSI(result)) + len(separator) + len(plainItem)
		}

		if width > 0 && testLen > width {
			break
		}
		if result != "" {
			result += separator
		}
		result += item
	}

	return style.Render(result)
}

// stripANSI removes ANSI escape codes for length calculation.
func stripANSI(s string) string {
	result := make([]byte, 0, len(s))
	inEscape := false
	for i := 0; i < len(s); i++ {
		if s[i] == '\x1b' {
			inEscape = true
			continue
		}
		if inEscape {
			if s[i] == 'm' {
				inEscape = false
			}
			continue
		}
		result = append(result, s[i])
	}
	return string(result)
}

// RunOptions configures the TUI.
type RunOptions struct {
	Config  *config.Config
	Backend Backend
	Watch   bool // Refresh on daemon signals as well as on the poll interval
	Logger  *slog.Logger
}

// Run starts the TUI with the given options.
func Run(opts RunOptions) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	m := New(opts.Config, opts.Backend)

	var monitor *dbus.Monitor
	if opts.Watch {
		events := make(chan dbus.Event, 16)
		monitor = dbus.NewMonitor(logger)
		monitor.SetEventHandler(func(ev dbus.Event) {
			select {
			case events <- ev:
			default:
			}
		})
		if err := monitor.Start(); err != nil {
			logger.Warn("failed to watch daemon signals, polling only", "error", err)
			monitor = nil
		} else {
			m = m.WithEvents(events)
		}
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()

	if monitor != nil {
		_ = monitor.Stop()
	}

	return err
}
