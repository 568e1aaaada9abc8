// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/glitchctl/pkg/client"
	"github.com/Thermoquad/glitchctl/pkg/glitch"
)

// Focus fields
const (
	focusDelay = iota
	focusPulse
	focusNone
)

const focusCount = 3

type consoleOptions struct {
	timing      glitch.Config
	showBeacons bool
}

func defaultConsoleOptions() consoleOptions {
	return consoleOptions{timing: glitch.DefaultConfig()}
}

// Event log entry
type logEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// glitchSender is the part of client.Client the console drives
type glitchSender interface {
	Send(req glitch.GlitchRequest) error
	Statistics() client.Statistics
}

type consoleTickMsg time.Time

// Console TUI model
type consoleModel struct {
	client   glitchSender
	connInfo string
	cfg      consoleOptions

	delayInput   textinput.Model
	pulseInput   textinput.Model
	focusedField int

	pending     bool
	last        *glitch.GlitchRequest
	lastPlan    *glitch.TimingPlan
	lastResult  string
	sentAt      time.Time
	ready       bool
	connLost    bool
	stats       client.Statistics
	log         []logEntry
	maxLogLines int

	width    int
	height   int
	quitting bool
}

func initialConsoleModel(c glitchSender, connInfo string, cfg consoleOptions) consoleModel {
	delayInput := textinput.New()
	delayInput.Placeholder = "1000"
	delayInput.CharLimit = 5
	delayInput.Width = 8
	delayInput.Focus()

	pulseInput := textinput.New()
	pulseInput.Placeholder = "10"
	pulseInput.CharLimit = 5
	pulseInput.Width = 8

	return consoleModel{
		client:      c,
		connInfo:    connInfo,
		cfg:         cfg,
		delayInput:  delayInput,
		pulseInput:  pulseInput,
		maxLogLines: 100,
		width:       80,
		height:      24,
	}
}

func (m consoleModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, consoleTickCmd())
}

func consoleTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return consoleTickMsg(t)
	})
}

func (m consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case consoleTickMsg:
		m.stats = m.client.Statistics()
		return m, consoleTickCmd()

	case responseMsg:
		m.handleResponse(msg)

	case connectionLostMsg:
		m.connLost = true
		m.pending = false
		m.addLogEntry(fmt.Sprintf("Connection lost: %v", msg.err), true)
	}

	return m, nil
}

func (m consoleModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "q":
		if m.focusedField == focusNone {
			m.quitting = true
			return m, tea.Quit
		}

	case "esc":
		m.setFocus(focusNone)
		return m, nil

	case "tab":
		m.setFocus((m.focusedField + 1) % focusCount)
		return m, nil

	case "shift+tab":
		m.setFocus((m.focusedField + focusCount - 1) % focusCount)
		return m, nil

	case "enter":
		return m.fire()

	case "r":
		if m.focusedField == focusNone && m.last != nil {
			return m.send(*m.last)
		}
	}

	var cmd tea.Cmd
	switch m.focusedField {
	case focusDelay:
		m.delayInput, cmd = m.delayInput.Update(msg)
	case focusPulse:
		m.pulseInput, cmd = m.pulseInput.Update(msg)
	}
	return m, cmd
}

func (m *consoleModel) setFocus(field int) {
	m.focusedField = field
	m.delayInput.Blur()
	m.pulseInput.Blur()
	switch field {
	case focusDelay:
		m.delayInput.Focus()
	case focusPulse:
		m.pulseInput.Focus()
	}
}

// fire parses the input fields and sends the command
func (m consoleModel) fire() (tea.Model, tea.Cmd) {
	delay, err := parseTicks("delay", strings.TrimSpace(m.delayInput.Value()))
	if err != nil {
		m.addLogEntry(err.Error(), true)
		return m, nil
	}
	pulseText := strings.TrimSpace(m.pulseInput.Value())
	if pulseText == "" {
		pulseText = "0"
	}
	pulse, err := parseTicks("pulse", pulseText)
	if err != nil {
		m.addLogEntry(err.Error(), true)
		return m, nil
	}
	return m.send(glitch.GlitchRequest{DelayTicks: delay, PulseTicks: pulse})
}

func (m consoleModel) send(req glitch.GlitchRequest) (tea.Model, tea.Cmd) {
	if m.connLost {
		m.addLogEntry("Not connected", true)
		return m, nil
	}
	if m.pending {
		m.addLogEntry("Previous command still running", true)
		return m, nil
	}

	m.last = &req
	m.lastPlan = nil
	if plan, err := glitch.Translate(m.cfg.timing, req); err == nil {
		m.lastPlan = &plan
	} else {
		var verr *glitch.ValidationError
		if errors.As(err, &verr) {
			m.addLogEntry(fmt.Sprintf("%s: expecting rejection (%s)", req, verr.Reason), false)
		}
	}

	if err := m.client.Send(req); err != nil {
		m.addLogEntry(fmt.Sprintf("Send failed: %v", err), true)
		return m, nil
	}
	m.pending = true
	m.ready = false
	m.sentAt = time.Now()
	m.addLogEntry(fmt.Sprintf("Sent %s", strings.TrimSpace(string(glitch.EncodeCommand(req)))), false)
	return m, nil
}

func (m *consoleModel) handleResponse(msg responseMsg) {
	m.stats = m.client.Statistics()

	switch {
	case msg.terminal:
		m.pending = false
		m.lastResult = msg.text
		if msg.failed {
			m.addLogEntry(msg.text, true)
		} else {
			m.addLogEntry(fmt.Sprintf("%s (%v)", msg.text, time.Since(m.sentAt).Round(time.Microsecond)), false)
		}
	case msg.text == glitch.ResponseReady.Text():
		m.ready = true
		m.addLogEntry(msg.text, false)
	default:
		m.ready = !m.pending
		if m.cfg.showBeacons {
			m.addLogEntry("beacon", false)
		}
	}
}

func (m *consoleModel) addLogEntry(message string, isError bool) {
	m.log = append(m.log, logEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	if len(m.log) > m.maxLogLines {
		m.log = m.log[len(m.log)-m.maxLogLines:]
	}
}

func (m consoleModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	focusedBoxStyle := boxStyle.
		BorderForeground(lipgloss.Color("12"))

	var s strings.Builder
	s.WriteString(titleStyle.Render("GLITCHCTL CONSOLE"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connLost {
		connStatus = errorStyle.Render("DISCONNECTED")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | Tab=switch Enter=fire r=repeat q=quit", connStatus)))
	s.WriteString("\n\n")

	// Controller status
	switch {
	case m.pending:
		s.WriteString(warningStyle.Render("Waiting for outcome..."))
	case m.ready:
		s.WriteString(statsValueStyle.Render("Controller ready"))
	default:
		s.WriteString(headerStyle.Render("Waiting for controller..."))
	}
	s.WriteString("\n\n")

	// Input fields
	delayBox, pulseBox := boxStyle, boxStyle
	switch m.focusedField {
	case focusDelay:
		delayBox = focusedBoxStyle
	case focusPulse:
		pulseBox = focusedBoxStyle
	}
	inputs := lipgloss.JoinHorizontal(lipgloss.Top,
		delayBox.Render(statsLabelStyle.Render("Delay")+"\n"+m.delayInput.View()),
		" ",
		pulseBox.Render(statsLabelStyle.Render("Pulse")+"\n"+m.pulseInput.View()),
	)
	s.WriteString(inputs)
	s.WriteString("\n")

	// Last command
	var last strings.Builder
	if m.last == nil {
		last.WriteString(headerStyle.Render("(no command sent)"))
	} else {
		last.WriteString(fmt.Sprintf("%s %s", statsLabelStyle.Render("Request:"), m.last))
		if m.lastPlan != nil {
			last.WriteString(fmt.Sprintf("\n%s %s", statsLabelStyle.Render("Plan:"), m.lastPlan))
		}
		if m.lastResult != "" {
			style := statsValueStyle
			if m.lastResult != glitch.ResponseDone.Text() {
				style = errorStyle
			}
			last.WriteString(fmt.Sprintf("\n%s %s", statsLabelStyle.Render("Result:"), style.Render(m.lastResult)))
		}
	}
	s.WriteString(boxStyle.Width(m.width - 4).Render(last.String()))
	s.WriteString("\n")

	// Statistics
	s.WriteString(boxStyle.Width(m.width - 4).Render(fmt.Sprintf("%s %s   %s %s   %s %s   %s %s",
		statsLabelStyle.Render("Attempts:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.Attempts)),
		statsLabelStyle.Render("Done:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.Completed)),
		statsLabelStyle.Render("Failed:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.Failed)),
		statsLabelStyle.Render("Beacons:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.Beacons)),
	)))
	s.WriteString("\n")

	s.WriteString(m.renderEventLog(statsLabelStyle, headerStyle, warningStyle, errorStyle, boxStyle))

	return s.String()
}

func (m consoleModel) renderEventLog(statsLabelStyle, headerStyle, warningStyle, errorStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("EVENTS"))
	s.WriteString("\n")

	// Whatever is left below the fixed panels
	logHeight := m.height - 20
	if logHeight < 3 {
		logHeight = 3
	}
	startIdx := len(m.log) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.log) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	}
	for _, entry := range m.log[startIdx:] {
		icon := "i"
		style := warningStyle
		if entry.isError {
			icon = "x"
			style = errorStyle
		}
		s.WriteString(fmt.Sprintf("%s %s %s\n",
			headerStyle.Render(entry.timestamp.Format("15:04:05.000")),
			style.Render(icon),
			entry.message))
	}

	return boxStyle.Width(m.width - 4).Render(s.String())
}
