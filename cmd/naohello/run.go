package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"

	"github.com/gwillem/naohello/pkg/choreo"
	"github.com/gwillem/naohello/pkg/robot"
)

type RunCommand struct {
	TUI      bool   `long:"tui" description:"Show joint targets and progress in a terminal UI"`
	Greeting string `long:"greeting" default:"Hello, World!" description:"Sentence to say while waving"`
}

// connect opens the robot, printing which proxy failed and exiting if it
// cannot.
func connect(ctx context.Context, cfg robot.Config) *robot.Robot {
	r, err := robot.Connect(ctx, cfg, log)
	if err != nil {
		var pe *robot.ProxyError
		if errors.As(err, &pe) {
			fmt.Fprintf(os.Stderr, "Error when creating %s proxy: %v\n", pe.Proxy, pe.Err)
		} else {
			fmt.Fprintf(os.Stderr, "Error when connecting to %s: %v\n", cfg.Address(), err)
		}
		os.Exit(1)
	}
	return r
}

func (c *RunCommand) Execute(args []string) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log.Infof("Connecting to %s", cfg.Address())
	r := connect(ctx, cfg)
	defer r.Close()

	ctrl, err := choreo.NewController(r.Motion, r.Speech, r.Posture, choreo.Config{
		Greeting: c.Greeting,
	})
	if err != nil {
		return err
	}

	if c.TUI {
		return runTUI(ctx, ctrl)
	}
	return runPlain(ctx, ctrl)
}

// runPlain runs the sequence and passes controller messages to the logger.
func runPlain(ctx context.Context, ctrl *choreo.Controller) error {
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case msg := <-ctrl.Logs():
				logController(ctrl, msg)
			case <-stop:
				return
			}
		}
	}()

	err := ctrl.Run(ctx)
	close(stop)
	<-done

	for len(ctrl.Logs()) > 0 {
		logController(ctrl, <-ctrl.Logs())
	}
	return err
}

func logController(ctrl *choreo.Controller, msg string) {
	// Controller messages carry their own timestamp.
	if _, rest, ok := strings.Cut(msg, "] "); ok {
		msg = rest
	}
	log.WithField("phase", ctrl.Phase()).Info(msg)
}

type doneMsg struct{ err error }

func runTUI(ctx context.Context, ctrl *choreo.Controller) error {
	hook := newLogBoxHook()
	restore := hook.redirect(log)
	defer restore()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newRunModel(ctrl, hook.Messages(), cancel), tea.WithAltScreen())

	result := make(chan error, 1)
	go func() {
		err := ctrl.Run(ctx)
		result <- err
		p.Send(doneMsg{err})
	}()

	if _, err := p.Run(); err != nil {
		return errors.Wrap(err, "run terminal UI")
	}

	cancel()
	err := <-result
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
