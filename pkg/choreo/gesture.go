package choreo

import (
	"time"

	"github.com/pkg/errors"

	"github.com/gwillem/naohello/pkg/robot"
)

// StepKind is the action a gesture step performs.
type StepKind int

const (
	// SetAngle starts a joint moving without waiting for it.
	SetAngle StepKind = iota
	OpenHand
	CloseHand
	// Pause lets earlier moves play out.
	Pause
)

// Step is one action of a gesture.
type Step struct {
	Kind     StepKind
	Joint    robot.Joint
	Angle    float64 // radians
	Speed    float64 // fraction of maximum speed
	Duration time.Duration
}

// Gesture is a timed sequence of steps.
type Gesture []Step

func angle(j robot.Joint, a, speed float64) Step {
	return Step{Kind: SetAngle, Joint: j, Angle: a, Speed: speed}
}

func pause(d time.Duration) Step {
	return Step{Kind: Pause, Duration: d}
}

// Wave raises the right hand and waves it by swinging the elbow. The arm
// stays raised afterwards; sitting down lowers it.
func Wave() Gesture {
	g := Gesture{
		angle(robot.RShoulderPitch, -1.0, 0.15),
		angle(robot.RShoulderRoll, -1.2, 0.15),
		angle(robot.RElbowRoll, 1.0, 0.1),
		angle(robot.RElbowYaw, 0.5, 0.1),
		angle(robot.RWristYaw, 0, 0.1),
		{Kind: OpenHand, Joint: robot.RHand},
		pause(700 * time.Millisecond),
	}

	for i := 0; i < 3; i++ {
		g = append(g,
			angle(robot.RElbowRoll, 1.5, 0.5),
			pause(500*time.Millisecond),
			angle(robot.RElbowRoll, 0.5, 0.5),
			pause(500*time.Millisecond),
		)
	}

	return append(g,
		angle(robot.RElbowRoll, 1.0, 0.5),
		pause(time.Second),
		Step{Kind: CloseHand, Joint: robot.RHand},
	)
}

// Duration returns the total pause time of the gesture.
func (g Gesture) Duration() time.Duration {
	var d time.Duration
	for _, s := range g {
		if s.Kind == Pause {
			d += s.Duration
		}
	}
	return d
}

// Validate checks every step against the joint limits.
func (g Gesture) Validate() error {
	for i, s := range g {
		switch s.Kind {
		case SetAngle:
			l, ok := s.Joint.Limits()
			if !ok {
				return errors.Errorf("step %d: unknown joint %s", i, s.Joint)
			}
			if !l.Contains(s.Angle) {
				return errors.Errorf("step %d: %s angle %.3f outside [%.4f, %.4f]", i, s.Joint, s.Angle, l.Min, l.Max)
			}
			if s.Speed <= 0 || s.Speed > 1 {
				return errors.Errorf("step %d: speed %.2f outside (0, 1]", i, s.Speed)
			}
		case OpenHand, CloseHand:
			if !s.Joint.IsHand() {
				return errors.Errorf("step %d: %s is not a hand", i, s.Joint)
			}
		case Pause:
			if s.Duration < 0 {
				return errors.Errorf("step %d: negative pause", i)
			}
		}
	}
	return nil
}
