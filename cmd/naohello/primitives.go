package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/gwillem/naohello/pkg/robot"
)

const dialTimeout = 10 * time.Second

type SayCommand struct {
	Args struct {
		Text []string `positional-arg-name:"TEXT" required:"yes"`
	} `positional-args:"yes"`
}

func (c *SayCommand) Execute(args []string) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	s, err := robot.Dial(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer s.Close()

	tts, err := robot.NewTextToSpeech(ctx, s)
	if err != nil {
		return errors.Wrap(err, "create speech device proxy")
	}

	text := strings.Join(c.Args.Text, " ")
	log.Infof("Saying %q", text)
	return tts.Say(ctx, text)
}

type PostureCommand struct {
	Speed float64 `long:"speed" default:"0.3" description:"Fraction of maximum speed"`
	Args  struct {
		Name string `positional-arg-name:"NAME" description:"Stand, Sit, Crouch, ..." required:"yes"`
	} `positional-args:"yes"`
}

func (c *PostureCommand) Execute(args []string) error {
	if c.Speed <= 0 || c.Speed > 1 {
		return errors.Errorf("speed %.2f outside (0, 1]", c.Speed)
	}

	cfg, err := loadSettings()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	r := connect(ctx, cfg)
	defer r.Close()

	log.Infof("Going to posture %s", c.Args.Name)
	if err := r.Posture.GoToPosture(ctx, c.Args.Name, c.Speed); err != nil {
		return err
	}
	log.Info("Done")
	return nil
}
