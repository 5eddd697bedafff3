package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/naohello/pkg/choreo"
	"github.com/gwillem/naohello/pkg/robot"
)

const (
	headerHeight = 2 // title + blank line
	legendHeight = 2 // legend row + blank
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border
)

// Joint colors, one per right arm actuator
var jointColors = map[robot.Joint]string{
	robot.RShoulderPitch: "196", // red
	robot.RShoulderRoll:  "208", // orange
	robot.RElbowYaw:      "226", // yellow
	robot.RElbowRoll:     "46",  // green
	robot.RWristYaw:      "51",  // cyan
	robot.RHand:          "201", // magenta
}

var quitKey = key.NewBinding(
	key.WithKeys("q", "ctrl+c"),
	key.WithHelp("q", "quit"),
)

var phaseColors = map[choreo.Phase]string{
	choreo.PhaseIdle:  "241",
	choreo.PhaseStand: "12",
	choreo.PhaseGreet: "10",
	choreo.PhaseSit:   "14",
	choreo.PhaseDone:  "241",
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

type runModel struct {
	ctrl        *choreo.Controller
	logSrc      <-chan string
	cancel      context.CancelFunc
	chart       *streamlinechart.Model
	width       int // terminal width
	height      int // terminal height
	logs        []string
	phase       choreo.Phase
	lastTargets map[robot.Joint]float64
	finished    time.Time
	err         error
	quitting    bool
}

// Messages from the controller and the logger
type stateMsg choreo.State

type logMsg struct {
	text string
	src  <-chan string
}

func waitForState(ctrl *choreo.Controller) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-ctrl.States())
	}
}

func waitForLog(ch <-chan string) tea.Cmd {
	return func() tea.Msg {
		return logMsg{text: <-ch, src: ch}
	}
}

func newRunModel(ctrl *choreo.Controller, logSrc <-chan string, cancel context.CancelFunc) runModel {
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(-2, 2),
	)

	for _, j := range robot.RightArm() {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(jointColors[j]))
		chart.SetDataSetStyles(string(j), runes.ThinLineStyle, style)
	}

	return runModel{
		ctrl:   ctrl,
		logSrc: logSrc,
		cancel: cancel,
		chart:  &chart,
		phase:  choreo.PhaseIdle,
	}
}

func (m *runModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *runModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20 // default size before we know terminal size
	}
	width = max(m.width-borderSize-2, 40)
	height = max(m.height-headerHeight-legendHeight-footerHeight-borderSize, 10)
	return width, height
}

// changed reports whether any target differs from the last drawn state.
func (m *runModel) changed(targets map[robot.Joint]float64) bool {
	if m.lastTargets == nil {
		return true
	}
	for j, a := range targets {
		if last, ok := m.lastTargets[j]; !ok || a != last {
			return true
		}
	}
	return false
}

func (m runModel) Init() tea.Cmd {
	cmds := []tea.Cmd{
		waitForState(m.ctrl),
		waitForLog(m.ctrl.Logs()),
	}
	if m.logSrc != nil {
		cmds = append(cmds, waitForLog(m.logSrc))
	}
	return tea.Batch(cmds...)
}

func (m runModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.chart.Resize(m.chartSize())
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, quitKey) {
			m.quitting = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}

	case stateMsg:
		state := choreo.State(msg)
		m.phase = state.Phase
		if state.Error != nil {
			m.err = state.Error
		}
		// Push every joint so the series stay aligned.
		if len(state.Targets) > 0 && m.changed(state.Targets) {
			for _, j := range robot.RightArm() {
				m.chart.PushDataSet(string(j), state.Targets[j])
			}
			m.chart.DrawAll()
			m.lastTargets = state.Targets
		}
		return m, waitForState(m.ctrl)

	case logMsg:
		m.addLog(msg.text)
		return m, waitForLog(msg.src)

	case doneMsg:
		m.finished = time.Now()
		m.err = msg.err
		return m, nil
	}

	return m, nil
}

func (m runModel) View() string {
	if m.quitting {
		return "Stopped.\n"
	}

	var sb strings.Builder

	// Header
	sb.WriteString(titleStyle.Render("NAO Hello World"))
	phaseStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(phaseColors[m.phase]))
	sb.WriteString("  " + phaseStyle.Render(string(m.phase)))
	sb.WriteString(statusStyle.Render(fmt.Sprintf("  %q", m.ctrl.Greeting())))
	if m.width > 0 {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  [%dx%d]", m.width, m.height)))
	}
	sb.WriteString("\n\n")

	// Chart
	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	// Legend
	sb.WriteString(renderLegend())
	sb.WriteString("\n")

	// Log box
	boxWidth := m.width - 4
	if m.width == 0 {
		boxWidth = 76
	}
	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(boxWidth)

	lines := append([]string(nil), m.logs...)
	switch {
	case !m.finished.IsZero() && m.err != nil:
		lines = append(lines, errorStyle.Render("Aborted: "+m.err.Error()))
	case !m.finished.IsZero():
		lines = append(lines, statusStyle.Render(fmt.Sprintf("Finished at %s. Press '%s' to %s", m.finished.Format("15:04:05"), quitKey.Help().Key, quitKey.Help().Desc)))
	case len(lines) == 0:
		lines = append(lines, statusStyle.Render(fmt.Sprintf("Press '%s' to %s", quitKey.Help().Key, quitKey.Help().Desc)))
	}
	sb.WriteString(logStyle.Render(strings.Join(lines, "\n")))
	sb.WriteString("\n")

	return sb.String()
}

func renderLegend() string {
	var items []string
	for _, j := range robot.RightArm() {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(jointColors[j])).Bold(true)
		items = append(items, colorStyle.Render("━━")+" "+string(j))
	}
	return strings.Join(items, "  ")
}
