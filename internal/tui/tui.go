// ABOUTME: Server TUI for displaying group and client status
// ABOUTME: Real-time multi-group dashboard using bubbletea
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ServerTUI manages the server dashboard.
type ServerTUI struct {
	program  *tea.Program
	updates  chan Status
	quitChan chan struct{}
}

// Status holds the server-wide state rendered by the dashboard.
type Status struct {
	Name   string
	Port   int
	Groups []GroupStatus
}

// GroupStatus holds one group's state for display.
type GroupStatus struct {
	ID      string
	State   string
	Playing string
	Clients []ClientInfo
}

// ClientInfo holds client information for display.
type ClientInfo struct {
	Name  string
	ID    string
	State string
}

type model struct {
	status    Status
	startTime time.Time
	quitting  bool
	quitChan  chan struct{}
}

type tickMsg time.Time
type statusMsg Status

func (m model) Init() tea.Cmd {
	return tea.Batch(tickEvery())
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			m.quitting = true
			select {
			case m.quitChan <- struct{}{}:
			default:
			}
			return m, tea.Quit
		}

	case tickMsg:
		return m, tickEvery()

	case statusMsg:
		m.status = Status(msg)
		return m, nil
	}

	return m, nil
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down server...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		MarginBottom(1)

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86"))

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("250"))

	groupHeaderStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("220"))

	var b strings.Builder

	b.WriteString(titleStyle.Render("roomcast server"))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("Server: "))
	b.WriteString(valueStyle.Render(m.status.Name))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Port: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d", m.status.Port)))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Uptime: "))
	uptime := time.Since(m.startTime).Round(time.Second)
	b.WriteString(valueStyle.Render(uptime.String()))
	b.WriteString("\n\n")

	for _, g := range m.status.Groups {
		label := fmt.Sprintf("Group %s (%s)", g.ID, g.State)
		b.WriteString(groupHeaderStyle.Render(label))
		b.WriteString("\n")

		if g.Playing != "" {
			b.WriteString(valueStyle.Render("  Playing: " + g.Playing))
			b.WriteString("\n")
		}

		if len(g.Clients) == 0 {
			b.WriteString(valueStyle.Render("  No clients joined"))
			b.WriteString("\n")
		} else {
			for _, client := range g.Clients {
				b.WriteString(fmt.Sprintf("  - %s", client.Name))
				b.WriteString(valueStyle.Render(fmt.Sprintf(" (%s)", client.State)))
				b.WriteString("\n")
			}
		}
		b.WriteString("\n")
	}

	b.WriteString(lipgloss.NewStyle().Faint(true).Render("Press 'q' or Ctrl+C to quit"))

	return b.String()
}

// New creates a server dashboard for the given identity.
func New(serverName string, port int) *ServerTUI {
	return &ServerTUI{
		updates:  make(chan Status, 10),
		quitChan: make(chan struct{}, 1),
	}
}

// Start runs the dashboard until the user quits. It blocks.
func (t *ServerTUI) Start(serverName string, port int) error {
	m := model{
		status:    Status{Name: serverName, Port: port},
		startTime: time.Now(),
		quitChan:  t.quitChan,
	}

	t.program = tea.NewProgram(m, tea.WithAltScreen())

	go func() {
		for status := range t.updates {
			if t.program != nil {
				t.program.Send(statusMsg(status))
			}
		}
	}()

	_, err := t.program.Run()
	return err
}

// Update pushes a fresh status snapshot to the dashboard. Non-blocking.
func (t *ServerTUI) Update(status Status) {
	select {
	case t.updates <- status:
	default:
	}
}

// Stop tears down the dashboard.
func (t *ServerTUI) Stop() {
	if t.program != nil {
		t.program.Quit()
	}
	close(t.updates)
}

// QuitChan signals when the user has requested shutdown from the dashboard.
func (t *ServerTUI) QuitChan() <-chan struct{} {
	return t.quitChan
}
