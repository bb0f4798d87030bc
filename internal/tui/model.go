package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const maxTranscript = 200

// Reply is a message the bot posted
type Reply struct {
	Text string
}

// Handled reports that the bot finished with one submitted message
type Handled struct {
	Err error
}

type entryKind int

const (
	entryUser entryKind = iota
	entryBot
	entryError
)

type entry struct {
	kind entryKind
	at   time.Time
	text string
}

type Model struct {
	user       string
	logFile    string
	submit     func(text string)
	input      textinput.Model
	spinner    spinner.Model
	transcript []entry
	pending    int
	errorCount int
	width      int
	height     int
	quit       bool
}

// NewModel builds the console screen for user. submit is called with every
// line the user sends and may block.
func NewModel(user, logFile string, submit func(text string)) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	in := textinput.New()
	in.Placeholder = "get my balance"
	in.Prompt = "> "
	in.CharLimit = 280
	in.Focus()

	return Model{
		user:    user,
		logFile: logFile,
		submit:  submit,
		input:   in,
		spinner: sp,
		width:   80,
		height:  24,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quit = true
			return m, tea.Quit
		case tea.KeyEnter:
			return m.handleEnter()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = msg.Width - 6

	case Reply:
		m = m.appendEntry(entryBot, msg.Text)

	case Handled:
		if m.pending > 0 {
			m.pending--
		}
		if msg.Err != nil {
			m.errorCount++
			m = m.appendEntry(entryError, msg.Err.Error())
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m Model) handleEnter() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}

	m.input.Reset()
	m.pending++
	m = m.appendEntry(entryUser, text)

	submit := m.submit
	return m, func() tea.Msg {
		submit(text)
		return nil
	}
}

func (m Model) appendEntry(kind entryKind, text string) Model {
	m.transcript = append(m.transcript, entry{kind: kind, at: time.Now(), text: text})
	if len(m.transcript) > maxTranscript {
		m.transcript = m.transcript[len(m.transcript)-maxTranscript:]
	}
	return m
}

func (m Model) View() string {
	if m.quit {
		return "Shutting down...\n"
	}

	var s strings.Builder

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("39"))

	s.WriteString(headerStyle.Render("chainbot console"))
	s.WriteString("\n")

	summaryStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("244"))

	summary := fmt.Sprintf("User: %s | Errors: %d", m.user, m.errorCount)
	if m.pending > 0 {
		summary += fmt.Sprintf(" | %s waiting on %d", m.spinner.View(), m.pending)
	}
	s.WriteString(summaryStyle.Render(summary))
	s.WriteString("\n")

	transcriptStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(0, 1).
		Width(m.width - 2)

	var lines strings.Builder
	for _, e := range m.visibleEntries() {
		lines.WriteString(m.renderEntry(e) + "\n")
	}
	s.WriteString(transcriptStyle.Render(strings.TrimSuffix(lines.String(), "\n")))
	s.WriteString("\n")

	s.WriteString(m.input.View())
	s.WriteString("\n")

	footerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	footer := "Enter to send | Esc to quit"
	if m.logFile != "" {
		footer += " | Logs: " + m.logFile
	}
	s.WriteString(footerStyle.Render(footer))

	return s.String()
}

// visibleEntries returns the tail of the transcript that fits the window
func (m Model) visibleEntries() []entry {
	rows := m.height - 8
	if rows < 1 {
		rows = 1
	}
	if len(m.transcript) <= rows {
		return m.transcript
	}
	return m.transcript[len(m.transcript)-rows:]
}

func (m Model) renderEntry(e entry) string {
	stamp := e.at.Format("15:04:05")

	switch e.kind {
	case entryUser:
		style := lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
		return fmt.Sprintf("[%s] %s %s", stamp, style.Render(m.user+":"), e.text)
	case entryError:
		style := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
		return fmt.Sprintf("[%s] %s", stamp, style.Render("error: "+e.text))
	default:
		style := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
		return fmt.Sprintf("[%s] %s %s", stamp, style.Render("chainbot:"), e.text)
	}
}
