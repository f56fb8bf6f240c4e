// Package tui is the terminal list view. It renders an engine snapshot and
// turns key presses into engine commands that run off the UI goroutine.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vyrodovalexey/tasklist/internal/events"
	"github.com/vyrodovalexey/tasklist/internal/model"
	"github.com/vyrodovalexey/tasklist/internal/tasklist"
)

// Engine is the list state the view drives. *tasklist.Engine implements it.
type Engine interface {
	tasklist.Reorderer
	ListID() string
	Snapshot() []model.Item
	Changes() <-chan struct{}
	Initialize(ctx context.Context) error
	AddItem(ctx context.Context, name string) (*model.Item, error)
	ToggleComplete(ctx context.Context, id string) error
	RenameItem(ctx context.Context, id, name string) error
	DeleteItem(ctx context.Context, id string) error
}

type mode int

const (
	modeBrowse mode = iota
	modeAdd
	modeRename
)

// syncedMsg reports a finished engine command.
type syncedMsg struct {
	op    string
	focus string
	items []model.Item
	err   error
}

// localChangeMsg carries the engine state right after a local change,
// while the matching remote call may still be running.
type localChangeMsg struct {
	items []model.Item
}

// remoteEventMsg carries a domain event pushed by the server.
type remoteEventMsg struct {
	event events.Event
}

// eventsClosedMsg is sent once the event feed ends.
type eventsClosedMsg struct{}

// Model is the Bubble Tea model of the list view.
type Model struct {
	ctx    context.Context
	engine Engine
	drag   *tasklist.DragReorderController
	feed   <-chan events.Event

	items   []model.Item
	cursor  int
	mode    mode
	editID  string
	input   textinput.Model
	pending int
	status  string
	failed  bool

	keys   keyMap
	help   help.Model
	width  int
	height int
}

// Option configures a Model.
type Option func(*Model)

// WithEvents shows server pushed events from feed in the status line.
func WithEvents(feed <-chan events.Event) Option {
	return func(m *Model) {
		m.feed = feed
	}
}

// New creates a list view for engine. Commands run with ctx.
func New(ctx context.Context, engine Engine, opts ...Option) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = model.MaxNameLength

	m := Model{
		ctx:    ctx,
		engine: engine,
		drag:   tasklist.NewDragReorderController(engine),
		input:  ti,
		keys:   defaultKeys(),
		help:   help.New(),
		width:  80,
		height: 24,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Run starts the view full screen and blocks until the user quits.
func Run(ctx context.Context, engine Engine, opts ...Option) error {
	p := tea.NewProgram(New(ctx, engine, opts...), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

// Init loads the list and starts following engine changes.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.load(), waitForChange(m.ctx, m.engine), waitForEvent(m.feed))
}

func (m Model) load() tea.Cmd {
	return m.command("load", "", m.engine.Initialize)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil

	case syncedMsg:
		if m.pending > 0 {
			m.pending--
		}
		m.items = msg.items
		if msg.focus != "" {
			if i := indexOf(m.items, msg.focus); i >= 0 {
				m.cursor = i
			}
		}
		m.clampCursor()
		if msg.err != nil {
			m.setError(msg.err)
		} else {
			m.setStatus(msg.op + " done")
		}
		return m, nil

	case localChangeMsg:
		m.items = msg.items
		m.clampCursor()
		return m, waitForChange(m.ctx, m.engine)

	case remoteEventMsg:
		m.setStatus(fmt.Sprintf("server: %s %q (r to reload)", msg.event.Type, msg.event.Name))
		return m, waitForEvent(m.feed)

	case eventsClosedMsg:
		m.feed = nil
		return m, nil

	case tea.KeyMsg:
		if m.mode != modeBrowse {
			return m.updateInput(msg)
		}
		return m.updateBrowse(msg)
	}

	return m, nil
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.closeInput()
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		value := m.input.Value()
		adding, id := m.mode == modeAdd, m.editID
		m.closeInput()

		if adding {
			return m.dispatch(m.addCommand(value))
		}
		return m.dispatch(m.command("rename", id, func(ctx context.Context) error {
			return m.engine.RenameItem(ctx, id, value)
		}))
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	selected, hasSelection := m.selected()

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Add):
		m.openInput(modeAdd, "", "", "New item name...")
		return m, textinput.Blink

	case key.Matches(msg, m.keys.Rename):
		if hasSelection {
			m.openInput(modeRename, selected.ID, selected.Name, "Item name...")
			return m, textinput.Blink
		}

	case key.Matches(msg, m.keys.Toggle):
		if hasSelection {
			return m.dispatch(m.command("toggle", selected.ID, func(ctx context.Context) error {
				return m.engine.ToggleComplete(ctx, selected.ID)
			}))
		}

	case key.Matches(msg, m.keys.Delete):
		if hasSelection {
			return m.dispatch(m.command("delete", "", func(ctx context.Context) error {
				return m.engine.DeleteItem(ctx, selected.ID)
			}))
		}

	case key.Matches(msg, m.keys.Move):
		if !hasSelection {
			break
		}
		if !m.drag.Dragging() {
			m.drag.Start(selected.ID)
			m.setStatus(fmt.Sprintf("moving %q: select a target and press m", selected.Name))
			break
		}
		subject := m.drag.Subject()
		return m.dispatch(m.command("move", subject, func(ctx context.Context) error {
			return m.drag.Drop(ctx, selected.ID)
		}))

	case key.Matches(msg, m.keys.Cancel):
		if m.drag.Dragging() {
			m.drag.Cancel()
			m.setStatus("move cancelled")
		}

	case key.Matches(msg, m.keys.Reload):
		m.drag.Cancel()
		return m.dispatch(m.command("reload", "", m.engine.Initialize))
	}

	return m, nil
}

// command wraps an engine call into a tea.Cmd that reports the resulting
// snapshot. focus names the item the cursor should land on afterwards.
func (m Model) command(op, focus string, fn func(context.Context) error) tea.Cmd {
	ctx, engine := m.ctx, m.engine
	return func() tea.Msg {
		err := fn(ctx)
		return syncedMsg{op: op, focus: focus, items: engine.Snapshot(), err: err}
	}
}

func (m Model) addCommand(name string) tea.Cmd {
	ctx, engine := m.ctx, m.engine
	return func() tea.Msg {
		created, err := engine.AddItem(ctx, name)
		msg := syncedMsg{op: "add", items: engine.Snapshot(), err: err}
		if created != nil {
			msg.focus = created.ID
		}
		return msg
	}
}

func (m Model) dispatch(cmd tea.Cmd) (tea.Model, tea.Cmd) {
	m.pending++
	return m, cmd
}

func waitForChange(ctx context.Context, engine Engine) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-engine.Changes():
			return localChangeMsg{items: engine.Snapshot()}
		case <-ctx.Done():
			return nil
		}
	}
}

func waitForEvent(feed <-chan events.Event) tea.Cmd {
	if feed == nil {
		return nil
	}
	return func() tea.Msg {
		e, ok := <-feed
		if !ok {
			return eventsClosedMsg{}
		}
		return remoteEventMsg{event: e}
	}
}

func (m *Model) openInput(md mode, id, value, placeholder string) {
	m.mode = md
	m.editID = id
	m.input.Placeholder = placeholder
	m.input.SetValue(value)
	m.input.CursorEnd()
	m.input.Focus()
}

func (m *Model) closeInput() {
	m.mode = modeBrowse
	m.editID = ""
	m.input.SetValue("")
	m.input.Blur()
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.failed = false
}

func (m *Model) setError(err error) {
	m.status = err.Error()
	m.failed = true
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.items) {
		m.cursor = len(m.items) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) selected() (model.Item, bool) {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return model.Item{}, false
	}
	return m.items[m.cursor], true
}

func indexOf(items []model.Item, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.header())
	b.WriteString("\n\n")

	if len(m.items) == 0 {
		b.WriteString(mutedStyle.Render("  no items yet, press a to add one"))
		b.WriteString("\n")
	}
	subject := m.drag.Subject()
	for i, it := range m.items {
		b.WriteString(renderItem(it, i == m.cursor, it.ID == subject))
		b.WriteString("\n")
	}

	if m.mode != modeBrowse {
		title := "Add item"
		if m.mode == modeRename {
			title = "Rename item"
		}
		b.WriteString(panelStyle.Render(title + "\n" + m.input.View()))
		b.WriteString("\n")
	}

	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))

	return panelStyle.Width(max(m.width-2, 20)).Render(b.String())
}

func (m Model) header() string {
	var done int
	for _, it := range m.items {
		if it.Complete {
			done++
		}
	}
	return fmt.Sprintf("%s   %s %d  %s %d  %s %d",
		titleStyle.Render(m.engine.ListID()),
		successStyle.Render("✔"), done,
		pendingStyle.Render("•"), len(m.items)-done,
		accentStyle.Render("Total"), len(m.items),
	)
}

func renderItem(it model.Item, selected, dragged bool) string {
	box := mutedStyle.Render(boxUnchecked)
	name := it.Name
	if it.Complete {
		box = successStyle.Render(boxChecked)
		name = doneStyle.Render(name)
	}
	if dragged {
		name = draggedStyle.Render(dragMarker+" ") + name
	}

	prefix := "  "
	if selected {
		prefix = selectedStyle.Render("> ")
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, prefix, box, " ", name)
}

func (m Model) statusLine() string {
	var parts []string
	if m.pending > 0 {
		parts = append(parts, accentStyle.Render("syncing…"))
	}
	if m.status != "" {
		if m.failed {
			parts = append(parts, errorStyle.Render("✖ "+m.status))
		} else {
			parts = append(parts, mutedStyle.Render(m.status))
		}
	}
	return strings.Join(parts, " ")
}
