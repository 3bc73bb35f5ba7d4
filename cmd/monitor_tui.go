// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Thorium Works

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/thorium-works/manifold/pkg/corewire"
	"github.com/thorium-works/manifold/pkg/reactor"
	"github.com/thorium-works/manifold/pkg/session"
)

type monitorEvent struct {
	timestamp time.Time
	message   string
	isError   bool
}

type monitorModel struct {
	mgr      *session.Manager
	profile  reactor.Profile
	connInfo string

	setpoints corewire.Setpoints
	selected  int
	pumpsOn   bool
	relaysOn  bool

	actuatorBars []progress.Model
	pumpBars     []progress.Model

	events        []monitorEvent
	maxLogEntries int
	commLost      bool

	width    int
	height   int
	quitting bool
}

type monitorTickMsg time.Time

func initialMonitorModel(mgr *session.Manager, profile reactor.Profile, connInfo string) monitorModel {
	m := monitorModel{
		mgr:           mgr,
		profile:       profile,
		connInfo:      connInfo,
		setpoints:     profile.Layout.NewSetpoints(),
		maxLogEntries: 50,
		width:         80,
		height:        24,
	}
	for i := 0; i < profile.Layout.Actuators; i++ {
		m.actuatorBars = append(m.actuatorBars, progress.New(progress.WithDefaultGradient(), progress.WithWidth(30)))
	}
	for i := 0; i < profile.Layout.Pumps; i++ {
		m.pumpBars = append(m.pumpBars, progress.New(progress.WithSolidFill("63"), progress.WithWidth(30)))
	}
	return m
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(monitorTickCmd(), tea.EnterAltScreen)
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "tab":
			m.selected = (m.selected + 1) % m.profile.Layout.Actuators

		case "up":
			m.nudgeTarget(5)
			return m, m.pushSetpoints()

		case "down":
			m.nudgeTarget(-5)
			return m, m.pushSetpoints()

		case "p":
			m.pumpsOn = !m.pumpsOn
			cmd := corewire.PumpOff
			if m.pumpsOn {
				cmd = corewire.PumpOn
			}
			for i := range m.setpoints.PumpCommands {
				m.setpoints.PumpCommands[i] = cmd
			}
			return m, m.pushSetpoints()

		case "r":
			m.relaysOn = !m.relaysOn
			for i := range m.setpoints.RelayCommands {
				m.setpoints.RelayCommands[i] = m.relaysOn
			}
			return m, m.pushSetpoints()

		case "0":
			m.setpoints = m.profile.Layout.NewSetpoints()
			m.pumpsOn = false
			m.relaysOn = false
			m.addEvent("Parked: safe-state setpoints", false)
			return m, m.pushSetpoints()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case monitorTickMsg:
		if lost := m.mgr.CommLost(); lost != m.commLost {
			m.commLost = lost
			if lost {
				m.addEvent("COMM LOST: session holding safe state", true)
			} else {
				m.addEvent("Link recovered", false)
			}
		}
		return m, monitorTickCmd()
	}

	return m, nil
}

func (m *monitorModel) nudgeTarget(delta int) {
	target := int(m.setpoints.ActuatorTargets[m.selected]) + delta
	if target < 0 {
		target = 0
	}
	if target > 100 {
		target = 100
	}
	m.setpoints.ActuatorTargets[m.selected] = uint8(target)
}

func (m *monitorModel) pushSetpoints() tea.Cmd {
	if err := m.mgr.SetSetpoints(m.setpoints); err != nil {
		m.addEvent(fmt.Sprintf("Setpoint error: %v", err), true)
	}
	return nil
}

func (m *monitorModel) addEvent(message string, isError bool) {
	m.events = append(m.events, monitorEvent{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(m.events) > m.maxLogEntries {
		m.events = m.events[len(m.events)-m.maxLogEntries:]
	}
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Parking node...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
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

	selectedStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("15")).
		Bold(true)

	var s strings.Builder
	s.WriteString(titleStyle.Render("MANIFOLD - NODE MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Profile: %s | tab/↑/↓ targets, p pumps, r relays, 0 park, q quit",
		m.connInfo, m.profile.Name)))
	s.WriteString("\n\n")

	snap, haveTelemetry := m.mgr.Telemetry()

	if m.commLost {
		s.WriteString(errorStyle.Render("✗ COMM LOST - safe state commanded"))
		s.WriteString("\n\n")
	} else if !haveTelemetry {
		s.WriteString(warningStyle.Render("⏳ Waiting for first telemetry..."))
		s.WriteString("\n\n")
	}

	// Actuator pane
	actuators := strings.Builder{}
	for i, bar := range m.actuatorBars {
		name := m.profile.ChannelNames[i]
		actual := uint8(0)
		if haveTelemetry {
			actual = snap.ActuatorActuals[i]
		}
		marker := "  "
		nameStyle := labelStyle
		if i == m.selected {
			marker = "> "
			nameStyle = selectedStyle
		}
		actuators.WriteString(fmt.Sprintf("%s%s %s %s\n",
			marker,
			nameStyle.Render(fmt.Sprintf("%-12s", name)),
			bar.ViewAs(float64(actual)/100.0),
			valueStyle.Render(fmt.Sprintf("%3d%% → %3d%%", actual, m.setpoints.ActuatorTargets[i])),
		))
	}
	s.WriteString(boxStyle.Render(actuators.String()))
	s.WriteString("\n\n")

	// Pumps and relays
	plant := strings.Builder{}
	for i, bar := range m.pumpBars {
		speed := 0.0
		if haveTelemetry {
			speed = snap.PumpSpeeds[i]
		}
		plant.WriteString(fmt.Sprintf("  %s %s %s  %s\n",
			labelStyle.Render(fmt.Sprintf("%-12s", fmt.Sprintf("pump-%d", i+1))),
			bar.ViewAs(speed/100.0),
			valueStyle.Render(fmt.Sprintf("%5.1f%%", speed)),
			headerStyle.Render(m.setpoints.PumpCommands[i].String()),
		))
	}
	relayLine := strings.Builder{}
	relayLine.WriteString("  " + labelStyle.Render(fmt.Sprintf("%-12s", "relays")))
	for i := 0; i < m.profile.Layout.Relays; i++ {
		on := false
		if haveTelemetry {
			on = snap.RelayStatus[i]
		}
		if on {
			relayLine.WriteString(valueStyle.Render(" ●"))
		} else {
			relayLine.WriteString(headerStyle.Render(" ○"))
		}
	}
	plant.WriteString(relayLine.String())
	plant.WriteString("\n")
	s.WriteString(boxStyle.Render(plant.String()))
	s.WriteString("\n\n")

	// Process and link
	status := strings.Builder{}
	if haveTelemetry {
		status.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
			labelStyle.Render("State:"), valueStyle.Render(reactor.State(snap.State).String()),
			labelStyle.Render("Level:"), valueStyle.Render(fmt.Sprintf("%.1f%%", snap.Level)),
			labelStyle.Render("Turbine:"), valueStyle.Render(fmt.Sprintf("%.1f%%", snap.TurbineSpeed)),
		))
		status.WriteString(fmt.Sprintf("%s %s\n",
			labelStyle.Render("Thermal:"), valueStyle.Render(fmt.Sprintf("%.1f kW", snap.ThermalKW)),
		))
	}
	stats := m.mgr.Stats()
	var validPercent float64
	if stats.TotalFrames > 0 {
		validPercent = float64(stats.ValidFrames) * 100.0 / float64(stats.TotalFrames)
	}
	status.WriteString(fmt.Sprintf("%s %s   %s %s",
		labelStyle.Render("Frames:"), valueStyle.Render(fmt.Sprintf("%d (%.1f%% valid)", stats.TotalFrames, validPercent)),
		labelStyle.Render("Failed ticks:"), func() string {
			if m.mgr.FailedTicks() > 0 {
				return errorStyle.Render(fmt.Sprintf("%d", m.mgr.FailedTicks()))
			}
			return valueStyle.Render("0")
		}(),
	))
	s.WriteString(boxStyle.Render(status.String()))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 20
	if logHeight < 3 {
		logHeight = 3
	}
	logContent := strings.Builder{}
	startIdx := len(m.events) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}
	if len(m.events) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.events); i++ {
			entry := m.events[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}
	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}
