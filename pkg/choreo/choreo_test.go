package choreo

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/naohello/pkg/robot"
)

// recorder collects the calls of all fake proxies in order.
type recorder struct {
	mu    sync.Mutex
	calls []string
	slept time.Duration

	failPosture string
	failSpeech  bool
	failJoint   robot.Joint
	speechDone  chan struct{}
}

func (r *recorder) add(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) SetAngles(ctx context.Context, joint robot.Joint, angle, speed float64) error {
	if joint == r.failJoint {
		return errors.New("joint stuck")
	}
	r.add("setAngles %s %.2f %.2f", joint, angle, speed)
	return nil
}

func (r *recorder) OpenHand(ctx context.Context, hand robot.Joint) error {
	r.add("openHand %s", hand)
	return nil
}

func (r *recorder) CloseHand(ctx context.Context, hand robot.Joint) error {
	r.add("closeHand %s", hand)
	return nil
}

func (r *recorder) Post(ctx context.Context, text string) (robot.Task, error) {
	if r.failSpeech {
		return nil, errors.New("speech engine busy")
	}
	r.add("say %s", text)
	return fakeTask{r}, nil
}

func (r *recorder) GoToPosture(ctx context.Context, name string, speed float64) error {
	if name == r.failPosture {
		return errors.Errorf("posture %s not reached", name)
	}
	r.add("goToPosture %s %.1f", name, speed)
	return nil
}

func (r *recorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.slept += d
	r.mu.Unlock()
	return ctx.Err()
}

type fakeTask struct{ r *recorder }

func (t fakeTask) Wait(ctx context.Context, timeout time.Duration) error {
	if t.r.speechDone != nil {
		select {
		case <-t.r.speechDone:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	t.r.add("wait speech")
	return nil
}

func newTestController(t *testing.T, r *recorder) *Controller {
	t.Helper()
	c, err := NewController(r, r, r, Config{Sleep: r.sleep})
	require.NoError(t, err)
	return c
}

func TestController_Run(t *testing.T) {
	r := &recorder{}
	c := newTestController(t, r)

	require.NoError(t, c.Run(context.Background()))

	calls := r.Calls()
	assert.Equal(t, "goToPosture Stand 0.3", calls[0])
	assert.Equal(t, "say Hello, World!", calls[1])
	assert.Equal(t, "setAngles RShoulderPitch -1.00 0.15", calls[2])
	assert.Equal(t, "openHand RHand", calls[7])
	assert.Equal(t, "closeHand RHand", calls[len(calls)-3])
	assert.Equal(t, "wait speech", calls[len(calls)-2])
	assert.Equal(t, "goToPosture Sit 0.3", calls[len(calls)-1])

	// 5 arm moves, 3 waves of 2 moves, 1 final elbow move, 2 hand calls
	assert.Len(t, calls, 1+1+5+6+1+2+1+1)
	assert.Equal(t, Wave().Duration(), r.slept)
	assert.Equal(t, PhaseDone, c.Phase())

	state := <-c.States()
	assert.Equal(t, PhaseDone, state.Phase)
	assert.NoError(t, state.Error)
	assert.Equal(t, 1.0, state.Targets[robot.RElbowRoll])
	assert.Equal(t, 0.0, state.Targets[robot.RHand])
}

func TestController_SpeechFailureContinues(t *testing.T) {
	r := &recorder{failSpeech: true}
	c := newTestController(t, r)

	require.NoError(t, c.Run(context.Background()))

	calls := r.Calls()
	assert.NotContains(t, calls, "wait speech")
	assert.Equal(t, "goToPosture Sit 0.3", calls[len(calls)-1])

	var logs []string
	for len(c.Logs()) > 0 {
		logs = append(logs, <-c.Logs())
	}
	require.NotEmpty(t, logs)
	assert.Regexp(t, `^\[\d\d:\d\d:\d\d\] `, logs[0])
	assert.True(t, strings.Contains(strings.Join(logs, "\n"), "speech engine busy"), "speech failure is logged")
}

func TestController_MotionFailureAborts(t *testing.T) {
	r := &recorder{failJoint: robot.RElbowYaw}
	c := newTestController(t, r)

	err := c.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wave")
	assert.NotContains(t, r.Calls(), "goToPosture Sit 0.3")

	state := <-c.States()
	assert.Equal(t, PhaseGreet, state.Phase)
	assert.Error(t, state.Error)
}

func TestController_PostureFailureAborts(t *testing.T) {
	r := &recorder{failPosture: robot.PostureStand}
	c := newTestController(t, r)

	err := c.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "go to posture Stand")
	assert.Empty(t, r.Calls())
}

func TestController_Cancel(t *testing.T) {
	r := &recorder{speechDone: make(chan struct{})}
	c := newTestController(t, r)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()

	// The sequence blocks on the speech task until canceled.
	require.Eventually(t, func() bool {
		calls := r.Calls()
		return len(calls) > 0 && calls[len(calls)-1] == "closeHand RHand"
	}, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.NotContains(t, r.Calls(), "goToPosture Sit 0.3")
}

func TestController_AlreadyRunning(t *testing.T) {
	r := &recorder{speechDone: make(chan struct{})}
	c := newTestController(t, r)

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()

	require.Eventually(t, func() bool { return c.Phase() == PhaseGreet }, time.Second, time.Millisecond)
	assert.Error(t, c.Run(context.Background()))

	close(r.speechDone)
	assert.NoError(t, <-done)
}

func TestNewController_Defaults(t *testing.T) {
	c, err := NewController(nil, nil, nil, Config{})
	require.NoError(t, err)
	assert.Equal(t, DefaultGreeting, c.Greeting())
	assert.Equal(t, DefaultPostureSpeed, c.cfg.PostureSpeed)
	assert.Equal(t, PhaseIdle, c.Phase())
}

func TestNewController_InvalidGesture(t *testing.T) {
	_, err := NewController(nil, nil, nil, Config{
		Gesture: Gesture{angle(robot.RElbowRoll, 3.0, 0.5)},
	})
	assert.Error(t, err)
}

func TestSleep_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, context.Canceled, sleep(ctx, time.Hour))
	assert.NoError(t, sleep(context.Background(), time.Millisecond))
}
