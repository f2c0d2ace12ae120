// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/rotostat/pkg/lvfv"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	pollIntervalSeconds = 1
	maxLogEntries       = 100
)

// statusQueries are sent on every poll, in this order
var statusQueries = []lvfv.Request{
	lvfv.ReqGetFrec,
	lvfv.ReqGetAcel,
	lvfv.ReqGetDesacel,
	lvfv.ReqGetDir,
	lvfv.ReqIsStop,
}

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// motorStatus holds the latest query results
type motorStatus struct {
	values  map[lvfv.Request]uint16
	updated time.Time
}

func (s motorStatus) value(req lvfv.Request) (uint16, bool) {
	v, ok := s.values[req]
	return v, ok
}

// monitorModel is the Bubble Tea model for the monitor TUI
type monitorModel struct {
	connMgr  *connectionManager
	connInfo string

	status  motorStatus
	polling bool

	freqInput textinput.Model
	eventLog  []eventLogEntry

	width          int
	height         int
	quitting       bool
	connectionLost bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type monitorTickMsg time.Time

type statusMsg struct {
	values map[lvfv.Request]uint16
	failed []string
}

type commandResultMsg struct {
	cmd   lvfv.Command
	reply lvfv.Reply
	err   error
}

type connectionLostMsg struct{}

type reconnectedMsg struct {
	connInfo string
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialMonitorModel(connMgr *connectionManager, connInfo string) monitorModel {
	ti := textinput.New()
	ti.Placeholder = "50"
	ti.CharLimit = 5
	ti.Width = 8

	return monitorModel{
		connMgr:   connMgr,
		connInfo:  connInfo,
		status:    motorStatus{values: make(map[lvfv.Request]uint16)},
		freqInput: ti,
		eventLog:  make([]eventLogEntry, 0),
		width:     80,
		height:    24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(monitorTickCmd(), m.pollStatusCmd())
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(pollIntervalSeconds*time.Second, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case monitorTickMsg:
		if m.polling || m.connectionLost {
			return m, monitorTickCmd()
		}
		m.polling = true
		return m, tea.Batch(monitorTickCmd(), m.pollStatusCmd())

	case statusMsg:
		m.polling = false
		m.applyStatus(msg)

	case commandResultMsg:
		m.applyCommandResult(msg)

	case connectionLostMsg:
		m.connectionLost = true
		m.polling = false
		m.addLogEntry("Connection lost - reconnecting...", true)

	case reconnectedMsg:
		m.connectionLost = false
		m.connInfo = msg.connInfo
		m.addLogEntry("Reconnected", false)
	}

	if m.freqInput.Focused() {
		var cmd tea.Cmd
		m.freqInput, cmd = m.freqInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m monitorModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	if m.freqInput.Focused() {
		switch msg.String() {
		case "tab", "esc":
			m.freqInput.Blur()
			return m, nil
		case "enter":
			return m.submitFrequency()
		}
		var cmd tea.Cmd
		m.freqInput, cmd = m.freqInput.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "tab":
		cmd := m.freqInput.Focus()
		return m, cmd
	case "s":
		return m, m.sendCmd(lvfv.StartCommand())
	case "x":
		return m, m.sendCmd(lvfv.StopCommand())
	case "e":
		return m, m.sendCmd(lvfv.EmergencyCommand())
	case "d":
		dir, _ := m.status.value(lvfv.ReqGetDir)
		return m, m.sendCmd(lvfv.SetDirectionCommand(1 - dir&1))
	}
	return m, nil
}

func (m monitorModel) submitFrequency() (tea.Model, tea.Cmd) {
	hz, err := parseFrequency(m.freqInput.Value(), m.freqInput.Placeholder)
	if err != nil {
		m.addLogEntry(err.Error(), true)
		return m, nil
	}
	m.freqInput.Blur()
	return m, m.sendCmd(lvfv.SetFrequencyCommand(hz))
}

// parseFrequency reads the frequency input, falling back to the placeholder
func parseFrequency(value, placeholder string) (uint16, error) {
	if value == "" {
		value = placeholder
	}
	hz, err := strconv.ParseUint(strings.TrimSpace(value), 10, 16)
	if err != nil || hz > lvfv.MaxValue {
		return 0, fmt.Errorf("invalid frequency %q", value)
	}
	return uint16(hz), nil
}

//////////////////////////////////////////////////////////////
// Commands
//////////////////////////////////////////////////////////////

func (m monitorModel) sendCmd(cmd lvfv.Command) tea.Cmd {
	if m.connectionLost {
		return func() tea.Msg {
			return commandResultMsg{cmd: cmd, err: errNotConnected}
		}
	}
	cm := m.connMgr
	return func() tea.Msg {
		reply, err := cm.do(cmd)
		return commandResultMsg{cmd: cmd, reply: reply, err: err}
	}
}

func (m monitorModel) pollStatusCmd() tea.Cmd {
	cm := m.connMgr
	return func() tea.Msg {
		msg := statusMsg{values: make(map[lvfv.Request]uint16, len(statusQueries))}
		for _, req := range statusQueries {
			reply, err := cm.do(lvfv.QueryCommand(req))
			switch {
			case err != nil:
				msg.failed = append(msg.failed, fmt.Sprintf("%s: %v", req, err))
				return msg
			case reply.Response != lvfv.RespOK || !reply.HasValue:
				msg.failed = append(msg.failed, fmt.Sprintf("%s: %s", req, reply))
			default:
				msg.values[req] = reply.Value
			}
		}
		return msg
	}
}

//////////////////////////////////////////////////////////////
// Data Processing
//////////////////////////////////////////////////////////////

func (m *monitorModel) applyStatus(msg statusMsg) {
	for _, f := range msg.failed {
		m.addLogEntry("Poll failed: "+f, true)
	}
	if len(msg.values) == 0 {
		return
	}

	prevStopped, hadStopped := m.status.value(lvfv.ReqIsStop)
	for req, v := range msg.values {
		m.status.values[req] = v
	}
	m.status.updated = time.Now()

	if stopped, ok := m.status.value(lvfv.ReqIsStop); ok && hadStopped && stopped != prevStopped {
		m.addLogEntry("Motor "+lvfv.FormatQueryValue(lvfv.ReqIsStop, stopped), false)
	}
}

func (m *monitorModel) applyCommandResult(msg commandResultMsg) {
	if msg.err != nil {
		m.addLogEntry(fmt.Sprintf("%s failed: %v", msg.cmd, msg.err), true)
		return
	}
	m.addLogEntry(fmt.Sprintf("%s -> %s", msg.cmd, formatReply(msg.cmd, msg.reply)), msg.reply.Response != lvfv.RespOK)
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(m.eventLog) > maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-maxLogEntries:]
	}
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	s.WriteString(titleStyle.Render("ROTOSTAT MONITOR"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = warningStyle.Render("RECONNECTING...")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | %s", connStatus, "q=quit s=start x=stop e=emergency d=dir tab=freq")))
	s.WriteString("\n\n")

	s.WriteString(m.renderMotorPanel())
	s.WriteString("\n")
	s.WriteString(m.renderStatisticsBar())
	s.WriteString("\n")
	s.WriteString(m.renderEventLog())

	return s.String()
}

func (m monitorModel) renderMotorPanel() string {
	var s strings.Builder

	field := func(label string, req lvfv.Request) {
		val := headerStyle.Render("--")
		if v, ok := m.status.value(req); ok {
			val = valueStyle.Render(lvfv.FormatQueryValue(req, v))
		}
		s.WriteString(fmt.Sprintf("%s %s  ", labelStyle.Render(label), val))
	}

	field("Motor:", lvfv.ReqIsStop)
	field("Frequency:", lvfv.ReqGetFrec)
	field("Direction:", lvfv.ReqGetDir)
	s.WriteString("\n")
	field("Acceleration:", lvfv.ReqGetAcel)
	field("Deceleration:", lvfv.ReqGetDesacel)
	s.WriteString("\n\n")

	s.WriteString(labelStyle.Render("Set frequency: "))
	if m.freqInput.Focused() {
		s.WriteString(m.freqInput.View())
	} else {
		val := m.freqInput.Value()
		if val == "" {
			val = m.freqInput.Placeholder
		}
		s.WriteString(fmt.Sprintf("[%s] Hz", val))
	}

	if !m.status.updated.IsZero() {
		s.WriteString(headerStyle.Render(fmt.Sprintf("   updated %s", m.status.updated.Format("15:04:05"))))
	}

	return boxStyle.Width(m.width - 4).Render(s.String())
}

func (m monitorModel) renderStatisticsBar() string {
	stats := m.connMgr.stats
	stats.CalculateRates()
	total, valid := stats.Counts()

	var validPercent, errorPercent float64
	if total > 0 {
		validPercent = float64(valid) * 100.0 / float64(total)
		errorPercent = float64(total-valid) * 100.0 / float64(total)
	}

	errText := valueStyle.Render("0.0%")
	if errorPercent > 0 {
		errText = errorStyle.Render(fmt.Sprintf("%.1f%%", errorPercent))
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s",
		labelStyle.Render("Replies:"), valueStyle.Render(fmt.Sprintf("%d", total)),
		labelStyle.Render("Valid:"), valueStyle.Render(fmt.Sprintf("%.1f%%", validPercent)),
		labelStyle.Render("Errors:"), errText,
	)
	return boxStyle.Width(m.width - 4).Render(content)
}

func (m monitorModel) renderEventLog() string {
	var s strings.Builder
	s.WriteString(labelStyle.Render("EVENTS"))
	s.WriteString("\n")

	logHeight := m.height - 14
	if logHeight < 3 {
		logHeight = 3
	}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	}
	for _, entry := range m.eventLog[startIdx:] {
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
