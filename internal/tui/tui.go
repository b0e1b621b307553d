// Package tui is the terminal view: the creation form above the live restaurant table.
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"restaurant_live/internal/model"
	"restaurant_live/internal/store"
	"restaurant_live/service"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(13)
	inputStyle    = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, true, false).Width(40)
	focusStyle    = inputStyle.BorderForeground(lipgloss.Color("63"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("63"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	footerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Background(lipgloss.Color("238")).Padding(0, 2)
	tableBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// focusTable: follows the editable inputs in the focus ring.
var focusTable = len(model.EditableFields)

type (
	stateChangedMsg struct{}
	submitDoneMsg   struct{ err error }
	deleteDoneMsg   struct {
		id  string
		err error
	}
)

// Model: the bubbletea model of the view.
type Model struct {
	ctx     context.Context
	ctl     *service.SyncController
	form    *service.FormManager
	store   *store.Store
	changes <-chan struct{}

	state     store.State
	focus     int
	cursor    int
	busy      bool
	status    string
	statusErr bool
	width     int
}

func New(ctx context.Context, ctl *service.SyncController, form *service.FormManager, st *store.Store, changes <-chan struct{}) Model {
	return Model{
		ctx:     ctx,
		ctl:     ctl,
		form:    form,
		store:   st,
		changes: changes,
		state:   st.Snapshot(),
		status:  "Loading restaurants...",
	}
}

// Watch: turns store updates into a coalescing signal: at most one pending notification, never
// blocking the dispatcher.
func Watch(st *store.Store) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	unsubscribe := st.Subscribe(func(store.State) {
		select {
		case ch <- struct{}{}:
		default:
		}
	})
	return ch, unsubscribe
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return stateChangedMsg{}
	}
}

func waitForLoad(ctl *service.SyncController) tea.Cmd {
	return func() tea.Msg {
		<-ctl.Loaded()
		return stateChangedMsg{}
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForChange(m.changes), waitForLoad(m.ctl))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case stateChangedMsg:
		m.refresh()
		return m, waitForChange(m.changes)
	case submitDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.setError(fmt.Sprintf("Add failed: %v", msg.err))
		} else {
			m.setStatus("Restaurant added.")
		}
		m.refresh()
		return m, nil
	case deleteDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.setError(fmt.Sprintf("Delete failed: %v", msg.err))
		} else {
			m.setStatus(fmt.Sprintf("Restaurant %s deleted.", msg.id))
		}
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit
	case tea.KeyTab:
		m.focus = (m.focus + 1) % (focusTable + 1)
		return m, nil
	case tea.KeyShiftTab:
		m.focus = (m.focus + focusTable) % (focusTable + 1)
		return m, nil
	}

	if m.focus == focusTable {
		return m.handleTableKey(msg)
	}
	return m.handleFormKey(msg)
}

func (m Model) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	field := model.EditableFields[m.focus]
	value := m.state.Draft.Get(field)

	switch msg.Type {
	case tea.KeyEnter:
		if m.busy {
			return m, nil
		}
		m.busy = true
		m.setStatus("Adding...")
		return m, submitCmd(m.ctx, m.form)
	case tea.KeyBackspace:
		runes := []rune(value)
		if len(runes) == 0 {
			return m, nil
		}
		m.form.SetField(field, string(runes[:len(runes)-1]))
	case tea.KeySpace:
		m.form.SetField(field, value+" ")
	case tea.KeyRunes:
		m.form.SetField(field, value+string(msg.Runes))
	default:
		return m, nil
	}
	m.refresh()
	return m, nil
}

func (m Model) handleTableKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.state.Restaurants)-1 {
			m.cursor++
		}
	case "d", "delete":
		if m.busy || len(m.state.Restaurants) == 0 {
			return m, nil
		}
		id := m.state.Restaurants[m.cursor].ID
		m.busy = true
		m.setStatus(fmt.Sprintf("Deleting %s...", id))
		return m, deleteCmd(m.ctx, m.ctl, id)
	}
	return m, nil
}

func submitCmd(ctx context.Context, form *service.FormManager) tea.Cmd {
	return func() tea.Msg {
		return submitDoneMsg{err: form.Submit(ctx)}
	}
}

func deleteCmd(ctx context.Context, ctl *service.SyncController, id string) tea.Cmd {
	return func() tea.Msg {
		return deleteDoneMsg{id: id, err: ctl.Delete(ctx, id)}
	}
}

// refresh: pulls the latest snapshot and keeps the cursor on a row.
func (m *Model) refresh() {
	m.state = m.store.Snapshot()
	if m.cursor >= len(m.state.Restaurants) {
		m.cursor = max(0, len(m.state.Restaurants)-1)
	}
	if !m.statusErr && m.status == "Loading restaurants..." {
		select {
		case <-m.ctl.Loaded():
			m.status = ""
		default:
		}
	}
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.statusErr = false
}

func (m *Model) setError(s string) {
	m.status = s
	m.statusErr = true
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Restaurants") + "\n\n")
	for i, field := range model.EditableFields {
		style := inputStyle
		if m.focus == i {
			style = focusStyle
		}
		b.WriteString(labelStyle.Render(field.Label()) + style.Render(m.state.Draft.Get(field)) + "\n")
	}
	b.WriteString("\n")
	b.WriteString(tableBoxStyle.Render(m.tableView()) + "\n")

	if m.status != "" {
		if m.statusErr {
			b.WriteString(errorStyle.Render(m.status) + "\n")
		} else {
			b.WriteString(statusStyle.Render(m.status) + "\n")
		}
	}
	b.WriteString(footerStyle.Render(m.helpText()))
	return b.String()
}

const (
	colIndex = 4
	colName  = 24
	colDesc  = 32
	colCity  = 16
)

func (m Model) tableView() string {
	lines := []string{headerStyle.Render(row("#", model.FieldName.Label(), model.FieldDescription.Label(), model.FieldCity.Label()))}
	if len(m.state.Restaurants) == 0 {
		lines = append(lines, statusStyle.Render("No restaurants yet."))
	}
	for i, r := range m.state.Restaurants {
		line := row(fmt.Sprintf("%d", i+1), r.Name, r.Description, r.City)
		if m.focus == focusTable && i == m.cursor {
			line = cursorStyle.Render(line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func row(index, name, description, city string) string {
	return cell(index, colIndex) + cell(name, colName) + cell(description, colDesc) + cell(city, colCity)
}

// cell: pads or truncates s to width columns, leaving one column of spacing.
func cell(s string, width int) string {
	runes := []rune(s)
	if len(runes) >= width {
		if width > 2 {
			return string(runes[:width-2]) + "… "
		}
		return string(runes[:width-1]) + " "
	}
	return s + strings.Repeat(" ", width-len(runes))
}

func (m Model) helpText() string {
	if m.focus == focusTable {
		return "tab form · ↑/↓ select · d delete · esc quit"
	}
	return "tab next field · enter add · esc quit"
}
