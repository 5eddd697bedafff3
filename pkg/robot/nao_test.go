package robot_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/naohello/pkg/qi/qitest"
	"github.com/gwillem/naohello/pkg/robot"
)

var (
	motionMethods = []qitest.Method{
		{Name: "setEnableNotifications", Params: "(b)"},
		{Name: "stiffnessInterpolation", Params: "(mmm)"},
		{Name: "setAngles", Params: "(mmf)"},
		{Name: "openHand", Params: "(s)"},
		{Name: "closeHand", Params: "(s)"},
	}
	speechMethods  = []qitest.Method{{Name: "say", Params: "(s)"}}
	postureMethods = []qitest.Method{{Name: "goToPosture", Params: "(sf)", Returns: "b"}}
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func fakeNAO(t *testing.T, withPosture bool) *qitest.Server {
	srv := qitest.NewServer(t)
	srv.AddService(robot.MotionService, nil, motionMethods...)
	srv.AddService(robot.SpeechService, nil, speechMethods...)
	if withPosture {
		srv.AddService(robot.PostureService, func(c qitest.Call) (any, error) {
			return c.Args[0] != "Crouch", nil
		}, postureMethods...)
	}
	return srv
}

func configFor(srv *qitest.Server) robot.Config {
	cfg := robot.DefaultConfig()
	cfg.Host = srv.Host()
	cfg.Port = srv.Port()
	return cfg
}

func TestConnect(t *testing.T) {
	srv := fakeNAO(t, true)

	r, err := robot.Connect(context.Background(), configFor(srv), quietLogger())
	require.NoError(t, err)
	defer r.Close()

	calls := srv.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, qitest.Call{Service: "ALMotion", Method: "setEnableNotifications", Args: []any{false}}, calls[0])
	assert.Equal(t, qitest.Call{Service: "ALMotion", Method: "stiffnessInterpolation", Args: []any{"Body", float32(1), float32(1)}}, calls[1])
}

func TestConnect_ZeroStiffness(t *testing.T) {
	srv := fakeNAO(t, true)
	log, hook := logtest.NewNullLogger()

	cfg := configFor(srv)
	cfg.Stiffness = 0
	r, err := robot.Connect(context.Background(), cfg, log)
	require.NoError(t, err, "zero stiffness is allowed")
	defer r.Close()

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && strings.Contains(e.Message, "Stiffness is zero") {
			warned = true
		}
	}
	assert.True(t, warned, "zero stiffness is logged as a warning")

	calls := srv.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, []any{"Body", float32(0), float32(1)}, calls[1].Args)
}

func TestConnect_MissingPosture(t *testing.T) {
	srv := fakeNAO(t, false)

	_, err := robot.Connect(context.Background(), configFor(srv), quietLogger())
	var pe *robot.ProxyError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "robot posture", pe.Proxy)
}

func TestConnect_Unreachable(t *testing.T) {
	srv := fakeNAO(t, true)
	cfg := configFor(srv)
	srv.Close()

	_, err := robot.Connect(context.Background(), cfg, quietLogger())
	var pe *robot.ProxyError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "motion device", pe.Proxy)
}

func TestRobot_Primitives(t *testing.T) {
	srv := fakeNAO(t, true)
	ctx := context.Background()

	r, err := robot.Connect(ctx, configFor(srv), quietLogger())
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.Motion.SetAngles(ctx, robot.RElbowRoll, 2.0, 0.5))
	require.NoError(t, r.Motion.OpenHand(ctx, robot.RHand))
	require.NoError(t, r.Motion.CloseHand(ctx, robot.RHand))
	assert.Error(t, r.Motion.OpenHand(ctx, robot.RElbowRoll))

	task, err := r.Speech.Post(ctx, "Hello, World!")
	require.NoError(t, err)
	require.NoError(t, task.Wait(ctx, time.Second))

	require.NoError(t, r.Posture.GoToPosture(ctx, robot.PostureStand, 0.3))
	assert.Error(t, r.Posture.GoToPosture(ctx, "Crouch", 0.3))

	calls := srv.Calls()[2:]
	require.Len(t, calls, 6)
	assert.Equal(t, []any{"RElbowRoll", float32(1.5446), float32(0.5)}, calls[0].Args, "angle is clamped")
	assert.Equal(t, "openHand", calls[1].Method)
	assert.Equal(t, "closeHand", calls[2].Method)
	assert.Equal(t, []any{"Hello, World!"}, calls[3].Args)
	assert.Equal(t, []any{"Stand", float32(0.3)}, calls[4].Args)
}
