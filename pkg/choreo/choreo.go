// Package choreo runs the hello-world sequence: stand, greet while waving,
// sit.
package choreo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/gwillem/naohello/pkg/robot"
)

const (
	DefaultGreeting     = "Hello, World!"
	DefaultPostureSpeed = 0.3
)

// Motion moves joints and hands.
type Motion interface {
	SetAngles(ctx context.Context, joint robot.Joint, angle, fractionMaxSpeed float64) error
	OpenHand(ctx context.Context, hand robot.Joint) error
	CloseHand(ctx context.Context, hand robot.Joint) error
}

// Speech starts speaking in the background.
type Speech interface {
	Post(ctx context.Context, text string) (robot.Task, error)
}

// Posture moves into predefined postures.
type Posture interface {
	GoToPosture(ctx context.Context, name string, speed float64) error
}

// Phase is the part of the sequence being performed.
type Phase string

const (
	PhaseIdle  Phase = "idle"
	PhaseStand Phase = "stand"
	PhaseGreet Phase = "greet"
	PhaseSit   Phase = "sit"
	PhaseDone  Phase = "done"
)

// State is a snapshot of the sequence.
type State struct {
	Phase Phase
	// Targets holds the last commanded angle of every joint moved so far.
	Targets   map[robot.Joint]float64
	Timestamp time.Time
	Error     error
}

// Config holds configuration for the controller.
type Config struct {
	Greeting     string
	PostureSpeed float64
	Gesture      Gesture
	// Sleep waits between gesture steps. Defaults to a timer that stops
	// early when ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Controller performs the sequence on a robot.
type Controller struct {
	motion  Motion
	speech  Speech
	posture Posture
	cfg     Config

	mu      sync.Mutex
	running bool
	phase   Phase
	targets map[robot.Joint]float64
	stateCh chan State
	logCh   chan string
}

// NewController creates a controller. Zero config fields get defaults.
func NewController(motion Motion, speech Speech, posture Posture, cfg Config) (*Controller, error) {
	if cfg.Greeting == "" {
		cfg.Greeting = DefaultGreeting
	}
	if cfg.PostureSpeed <= 0 {
		cfg.PostureSpeed = DefaultPostureSpeed
	}
	if cfg.Gesture == nil {
		cfg.Gesture = Wave()
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleep
	}
	if err := cfg.Gesture.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid gesture")
	}

	return &Controller{
		motion:  motion,
		speech:  speech,
		posture: posture,
		cfg:     cfg,
		phase:   PhaseIdle,
		targets: make(map[robot.Joint]float64),
		stateCh: make(chan State, 1),
		logCh:   make(chan string, 32),
	}, nil
}

// States returns a channel that receives state updates.
func (c *Controller) States() <-chan State {
	return c.stateCh
}

// Logs returns a channel that receives log messages.
func (c *Controller) Logs() <-chan string {
	return c.logCh
}

// Greeting returns the sentence the robot speaks.
func (c *Controller) Greeting() string {
	return c.cfg.Greeting
}

func (c *Controller) log(format string, args ...any) {
	msg := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
	select {
	case c.logCh <- msg:
	default:
		// Drop if channel full
	}
}

// Run performs stand, greet and wave, then sit. It returns at the first
// motion or posture failure; a greeting that cannot be spoken is logged and
// skipped.
func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return errors.New("already running")
	}
	c.running = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	if err := c.run(ctx); err != nil {
		c.log("Aborted: %v", err)
		c.sendState(err)
		return err
	}
	return nil
}

func (c *Controller) run(ctx context.Context) error {
	c.setPhase(PhaseStand)
	if err := c.goToPosture(ctx, robot.PostureStand); err != nil {
		return err
	}

	c.setPhase(PhaseGreet)
	task, err := c.speech.Post(ctx, c.cfg.Greeting)
	if err != nil {
		c.log("Error when saying a sentence: %v", err)
	} else {
		c.log("Saying %q", c.cfg.Greeting)
	}

	if err := c.perform(ctx, c.cfg.Gesture); err != nil {
		return errors.Wrap(err, "wave")
	}

	if task != nil {
		if err := task.Wait(ctx, 0); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log("Speech failed: %v", err)
		}
	}

	c.setPhase(PhaseSit)
	if err := c.goToPosture(ctx, robot.PostureSit); err != nil {
		return err
	}

	c.setPhase(PhaseDone)
	c.log("Done")
	return nil
}

func (c *Controller) goToPosture(ctx context.Context, name string) error {
	c.log("Going to posture %s", name)
	if err := c.posture.GoToPosture(ctx, name, c.cfg.PostureSpeed); err != nil {
		return errors.Wrapf(err, "go to posture %s", name)
	}
	return nil
}

// perform executes the steps of g in order.
func (c *Controller) perform(ctx context.Context, g Gesture) error {
	for _, s := range g {
		var err error
		switch s.Kind {
		case SetAngle:
			err = c.motion.SetAngles(ctx, s.Joint, s.Angle, s.Speed)
			if err == nil {
				c.setTarget(s.Joint, s.Angle)
			}
		case OpenHand:
			err = c.motion.OpenHand(ctx, s.Joint)
			if err == nil {
				c.setTarget(s.Joint, 1)
			}
		case CloseHand:
			err = c.motion.CloseHand(ctx, s.Joint)
			if err == nil {
				c.setTarget(s.Joint, 0)
			}
		case Pause:
			err = c.cfg.Sleep(ctx, s.Duration)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) setPhase(p Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
	c.sendState(nil)
}

func (c *Controller) setTarget(j robot.Joint, angle float64) {
	c.mu.Lock()
	c.targets[j] = angle
	c.mu.Unlock()
	c.sendState(nil)
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

func (c *Controller) sendState(err error) {
	c.mu.Lock()
	s := State{
		Phase:     c.phase,
		Targets:   make(map[robot.Joint]float64, len(c.targets)),
		Timestamp: time.Now(),
		Error:     err,
	}
	for j, a := range c.targets {
		s.Targets[j] = a
	}
	c.mu.Unlock()

	select {
	case c.stateCh <- s:
	default:
		// Drop old state if channel full, replace with new
		select {
		case <-c.stateCh:
		default:
		}
		select {
		case c.stateCh <- s:
		default:
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
