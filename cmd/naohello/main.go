package main

import (
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/gwillem/naohello/pkg/robot"
)

type Options struct {
	Config string `long:"config" default:"naohello.json" description:"Settings file"`
	Host   string `long:"host" env:"NAO_HOST" description:"Robot address, overrides the settings file"`
	Port   int    `long:"port" env:"NAO_PORT" description:"Robot port, overrides the settings file"`
	Debug  bool   `long:"debug" description:"Log protocol traffic"`

	Setup   SetupCommand   `command:"setup" description:"Enter and save the robot's address"`
	Run     RunCommand     `command:"run" description:"Stand up, say hello while waving, sit down"`
	Say     SayCommand     `command:"say" description:"Say a sentence"`
	Posture PostureCommand `command:"posture" description:"Go to a predefined posture"`
	Info    InfoCommand    `command:"info" description:"List the robot's services"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

var log = logrus.StandardLogger()

func main() {
	parser.LongDescription = "naohello - NAO hello world: stand, greet and wave, sit"
	parser.SubcommandsOptional = true
	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		setupLogging(opts.Debug)
		if cmd == nil {
			cmd = &opts.Run
		}
		return cmd.Execute(args)
	}

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}

// loadSettings reads the settings file and applies the command line
// overrides. A missing file is not an error when --host is given.
func loadSettings() (robot.Config, error) {
	cfg, err := robot.LoadConfigFrom(opts.Config)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) || opts.Host == "" {
			return cfg, errors.Wrap(err, "no settings, run 'naohello setup' or pass --host")
		}
		log.Debugf("No settings file %s, using defaults", opts.Config)
	}

	if opts.Host != "" {
		cfg.Host = opts.Host
	}
	if opts.Port != 0 {
		cfg.Port = opts.Port
	}
	return cfg, cfg.Validate()
}
