package robot

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/gwillem/naohello/pkg/qi"
)

// Service names in the robot's service directory.
const (
	MotionService  = "ALMotion"
	SpeechService  = "ALTextToSpeech"
	PostureService = "ALRobotPosture"
)

// Predefined postures.
const (
	PostureStand = "Stand"
	PostureSit   = "Sit"
)

// Motion controls joints through ALMotion.
type Motion struct {
	obj *qi.Object
	log logrus.FieldLogger
}

// NewMotion resolves the motion service on s.
func NewMotion(ctx context.Context, s *qi.Session, log logrus.FieldLogger) (*Motion, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	obj, err := s.Service(ctx, MotionService)
	if err != nil {
		return nil, err
	}
	return &Motion{obj: obj, log: log}, nil
}

// SetEnableNotifications toggles the robot's spoken motion notifications.
func (m *Motion) SetEnableNotifications(ctx context.Context, enable bool) error {
	_, err := m.obj.Call(ctx, "setEnableNotifications", enable)
	return err
}

// StiffnessInterpolation ramps the stiffness of names (a joint or chain)
// to stiffness over the given duration.
func (m *Motion) StiffnessInterpolation(ctx context.Context, names string, stiffness float64, d time.Duration) error {
	_, err := m.obj.Call(ctx, "stiffnessInterpolation", names, stiffness, d.Seconds())
	return err
}

// SetAngles starts moving joint to angle at a fraction of its maximum
// speed. It returns without waiting for the move to finish. Angles outside
// the joint's range are clamped.
func (m *Motion) SetAngles(ctx context.Context, joint Joint, angle, fractionMaxSpeed float64) error {
	if clamped := joint.Clamp(angle); clamped != angle {
		m.log.Warnf("%s angle %.3f rad out of range, clamping to %.3f", joint, angle, clamped)
		angle = clamped
	}
	_, err := m.obj.Call(ctx, "setAngles", string(joint), angle, fractionMaxSpeed)
	return err
}

// OpenHand opens RHand or LHand and waits for it to finish.
func (m *Motion) OpenHand(ctx context.Context, hand Joint) error {
	if !hand.IsHand() {
		return errors.Errorf("%s is not a hand", hand)
	}
	_, err := m.obj.Call(ctx, "openHand", string(hand))
	return err
}

// CloseHand closes RHand or LHand and waits for it to finish.
func (m *Motion) CloseHand(ctx context.Context, hand Joint) error {
	if !hand.IsHand() {
		return errors.Errorf("%s is not a hand", hand)
	}
	_, err := m.obj.Call(ctx, "closeHand", string(hand))
	return err
}

// Task is speech started in the background.
type Task interface {
	// Wait blocks until the task finishes. A zero timeout waits forever.
	Wait(ctx context.Context, timeout time.Duration) error
}

// TextToSpeech speaks through ALTextToSpeech.
type TextToSpeech struct {
	obj *qi.Object
}

// NewTextToSpeech resolves the speech service on s.
func NewTextToSpeech(ctx context.Context, s *qi.Session) (*TextToSpeech, error) {
	obj, err := s.Service(ctx, SpeechService)
	if err != nil {
		return nil, err
	}
	return &TextToSpeech{obj: obj}, nil
}

// Say speaks text and returns when it has been said.
func (t *TextToSpeech) Say(ctx context.Context, text string) error {
	_, err := t.obj.Call(ctx, "say", text)
	return err
}

// Post starts speaking text and returns immediately, so speech can run
// while the robot moves.
func (t *TextToSpeech) Post(ctx context.Context, text string) (Task, error) {
	fut, err := t.obj.Post(ctx, "say", text)
	if err != nil {
		return nil, err
	}
	return speechTask{fut}, nil
}

type speechTask struct {
	fut *qi.Future
}

func (s speechTask) Wait(ctx context.Context, timeout time.Duration) error {
	_, err := s.fut.Wait(ctx, timeout)
	return err
}

// Posture moves the robot into predefined postures through ALRobotPosture.
type Posture struct {
	obj *qi.Object
}

// NewPosture resolves the posture service on s.
func NewPosture(ctx context.Context, s *qi.Session) (*Posture, error) {
	obj, err := s.Service(ctx, PostureService)
	if err != nil {
		return nil, err
	}
	return &Posture{obj: obj}, nil
}

// GoToPosture moves to the named posture at a fraction of maximum speed and
// returns once the posture is reached.
func (p *Posture) GoToPosture(ctx context.Context, name string, speed float64) error {
	v, err := p.obj.Call(ctx, "goToPosture", name, speed)
	if err != nil {
		return err
	}
	if ok, isBool := v.(bool); isBool && !ok {
		return errors.Errorf("posture %s not reached", name)
	}
	return nil
}
