package main

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/naohello/pkg/choreo"
	"github.com/gwillem/naohello/pkg/qi"
	"github.com/gwillem/naohello/pkg/robot"
)

func withOptions(t *testing.T, o Options) {
	t.Helper()
	saved := opts
	opts = o
	t.Cleanup(func() { opts = saved })
}

func TestLoadSettings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "naohello.json")
	require.NoError(t, robot.Config{Host: "nao.local", Port: 9559, Stiffness: 0.5}.SaveTo(path))

	t.Run("file", func(t *testing.T) {
		withOptions(t, Options{Config: path})
		cfg, err := loadSettings()
		require.NoError(t, err)
		assert.Equal(t, "nao.local:9559", cfg.Address())
		assert.Equal(t, 0.5, cfg.Stiffness)
	})

	t.Run("flags override file", func(t *testing.T) {
		withOptions(t, Options{Config: path, Host: "10.0.0.2", Port: 9503})
		cfg, err := loadSettings()
		require.NoError(t, err)
		assert.Equal(t, "10.0.0.2:9503", cfg.Address())
		assert.Equal(t, 0.5, cfg.Stiffness)
	})

	t.Run("missing file with host", func(t *testing.T) {
		withOptions(t, Options{Config: filepath.Join(dir, "none.json"), Host: "nao.local"})
		cfg, err := loadSettings()
		require.NoError(t, err)
		assert.Equal(t, robot.DefaultPort, cfg.Port)
	})

	t.Run("missing file without host", func(t *testing.T) {
		withOptions(t, Options{Config: filepath.Join(dir, "none.json")})
		_, err := loadSettings()
		assert.Error(t, err)
	})
}

func testModel(t *testing.T) runModel {
	t.Helper()
	ctrl, err := choreo.NewController(nil, nil, nil, choreo.Config{})
	require.NoError(t, err)
	return newRunModel(ctrl, nil, nil)
}

func TestRunModel_State(t *testing.T) {
	m := testModel(t)

	next, cmd := m.Update(stateMsg{
		Phase:   choreo.PhaseGreet,
		Targets: map[robot.Joint]float64{robot.RElbowRoll: 1.5},
	})
	m = next.(runModel)
	assert.NotNil(t, cmd, "keeps listening for states")
	assert.Equal(t, choreo.PhaseGreet, m.phase)
	assert.False(t, m.changed(map[robot.Joint]float64{robot.RElbowRoll: 1.5}))
	assert.True(t, m.changed(map[robot.Joint]float64{robot.RElbowRoll: 0.5}))

	view := m.View()
	assert.Contains(t, view, "NAO Hello World")
	assert.Contains(t, view, "greet")
	assert.Contains(t, view, string(robot.RElbowRoll))
}

func TestRunModel_Logs(t *testing.T) {
	m := testModel(t)
	src := make(chan string, 1)

	for i := 0; i < maxLogs+2; i++ {
		next, cmd := m.Update(logMsg{text: strings.Repeat("x", i+1), src: src})
		m = next.(runModel)
		require.NotNil(t, cmd)
	}
	assert.Len(t, m.logs, maxLogs)
	assert.Equal(t, "xxx", m.logs[0])
}

func TestRunModel_Done(t *testing.T) {
	m := testModel(t)

	next, _ := m.Update(doneMsg{err: errors.New("posture Sit not reached")})
	m = next.(runModel)
	assert.Contains(t, m.View(), "Aborted: posture Sit not reached")

	next, _ = m.Update(doneMsg{})
	m = next.(runModel)
	assert.Contains(t, m.View(), "Press 'q' to quit")
}

func TestRunModel_Quit(t *testing.T) {
	var canceled bool
	ctrl, err := choreo.NewController(nil, nil, nil, choreo.Config{})
	require.NoError(t, err)
	m := newRunModel(ctrl, nil, func() { canceled = true })

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.True(t, canceled)
	assert.Equal(t, "Stopped.\n", next.View())
}

func TestRunModel_Resize(t *testing.T) {
	m := testModel(t)
	w, h := m.chartSize()
	assert.Equal(t, 80, w)
	assert.Equal(t, 20, h)

	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = next.(runModel)
	w, h = m.chartSize()
	assert.Equal(t, 116, w)
	assert.Equal(t, 40-headerHeight-legendHeight-footerHeight-borderSize, h)
}

func TestLogBoxHook(t *testing.T) {
	l := logrus.New()
	hook := newLogBoxHook()
	restore := hook.redirect(l)

	l.Info("Connecting")
	l.Warn("Stiffness is zero")

	first := <-hook.Messages()
	assert.Regexp(t, `^\[\d\d:\d\d:\d\d\] Connecting$`, first)
	assert.Contains(t, <-hook.Messages(), "warning: Stiffness is zero")

	restore()
	l.Info("after restore")
	select {
	case msg := <-hook.Messages():
		t.Fatalf("unexpected message after restore: %s", msg)
	case <-time.After(10 * time.Millisecond):
	}
}

func TestRenderServices(t *testing.T) {
	out := renderServices([]qi.ServiceInfo{
		{Name: "ServiceDirectory", ServiceID: 1, ProcessID: 1200, Endpoints: []string{"tcp://127.0.0.1:9559"}},
		{Name: robot.MotionService, ServiceID: 12, ProcessID: 1200},
	})
	assert.Contains(t, out, "ServiceDirectory")
	assert.Contains(t, out, robot.MotionService)
	assert.Contains(t, out, "tcp://127.0.0.1:9559")
}
