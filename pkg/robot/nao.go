package robot

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/gwillem/naohello/pkg/qi"
)

const (
	dialTimeout = 5 * time.Second
	// stiffnessRamp is how long the body takes to reach the configured
	// stiffness on connect.
	stiffnessRamp = time.Second
)

// ProxyError reports which service proxy could not be created.
type ProxyError struct {
	Proxy string
	Err   error
}

func (e *ProxyError) Error() string {
	return fmt.Sprintf("create %s proxy: %v", e.Proxy, e.Err)
}

func (e *ProxyError) Unwrap() error {
	return e.Err
}

// Robot is a connected NAO with its motion, speech and posture proxies.
type Robot struct {
	session *qi.Session
	Motion  *Motion
	Speech  *TextToSpeech
	Posture *Posture
}

// Dial opens a session to the robot described by cfg.
func Dial(ctx context.Context, cfg Config, log logrus.FieldLogger) (*qi.Session, error) {
	return qi.Dial(ctx, cfg.Address(), qi.Options{
		User:        cfg.User,
		Token:       cfg.Token,
		DialTimeout: dialTimeout,
		Logger:      log,
	})
}

// Connect opens a session and creates the motion, speech and posture
// proxies, in that order. The body is stiffened once motion is available.
func Connect(ctx context.Context, cfg Config, log logrus.FieldLogger) (*Robot, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cfg.Stiffness == 0 {
		log.Warn("Stiffness is zero, the robot will not move")
	}

	session, err := Dial(ctx, cfg, log)
	if err != nil {
		return nil, &ProxyError{Proxy: "motion device", Err: err}
	}

	r, err := newRobot(ctx, session, cfg, log)
	if err != nil {
		session.Close()
		return nil, err
	}
	return r, nil
}

func newRobot(ctx context.Context, session *qi.Session, cfg Config, log logrus.FieldLogger) (*Robot, error) {
	r := &Robot{session: session}

	var err error
	r.Motion, err = NewMotion(ctx, session, log)
	if err == nil {
		err = r.Motion.SetEnableNotifications(ctx, false)
	}
	if err != nil {
		return nil, &ProxyError{Proxy: "motion device", Err: err}
	}

	if err := r.Motion.StiffnessInterpolation(ctx, Body, cfg.Stiffness, stiffnessRamp); err != nil {
		return nil, errors.Wrap(err, "set body stiffness")
	}
	log.Debugf("Body stiffness set to %.2f", cfg.Stiffness)

	if r.Speech, err = NewTextToSpeech(ctx, session); err != nil {
		return nil, &ProxyError{Proxy: "speech device", Err: err}
	}

	if r.Posture, err = NewPosture(ctx, session); err != nil {
		return nil, &ProxyError{Proxy: "robot posture", Err: err}
	}

	return r, nil
}

// Close closes the robot's session.
func (r *Robot) Close() error {
	return r.session.Close()
}
