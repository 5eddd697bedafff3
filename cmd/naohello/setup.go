package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"

	"github.com/gwillem/naohello/pkg/robot"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type SetupCommand struct{}

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("NAO Hello World Setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println()

	// Start from the existing settings when there are any
	cfg, err := robot.LoadConfigFrom(opts.Config)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, dimStyle.Render(fmt.Sprintf("Ignoring unreadable %s: %v", opts.Config, err)))
	}
	if opts.Host != "" {
		cfg.Host = opts.Host
	}
	if opts.Port != 0 {
		cfg.Port = opts.Port
	}

	port := strconv.Itoa(cfg.Port)
	stiffness := strconv.FormatFloat(cfg.Stiffness, 'f', -1, 64)
	test := true

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Robot address").
				Description("IP address or hostname, e.g. 192.168.1.129").
				Value(&cfg.Host).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("address is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Port").
				Value(&port).
				Validate(func(s string) error {
					p, err := strconv.Atoi(s)
					if err != nil || p < 1 || p > 65535 {
						return errors.New("port must be between 1 and 65535")
					}
					return nil
				}),
			huh.NewInput().
				Title("Body stiffness").
				Description("0 leaves the motors limp, 1 is full stiffness").
				Value(&stiffness).
				Validate(func(s string) error {
					v, err := strconv.ParseFloat(s, 64)
					if err != nil || v < 0 || v > 1 {
						return errors.New("stiffness must be between 0 and 1")
					}
					return nil
				}),
			huh.NewConfirm().
				Title("Test the connection?").
				Value(&test),
		),
	)

	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}

	// Validated by the form
	cfg.Port, _ = strconv.Atoi(port)
	cfg.Stiffness, _ = strconv.ParseFloat(stiffness, 64)

	if err := cfg.Validate(); err != nil {
		return err
	}

	if test {
		if err := testConnection(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error connecting to %s: %v\n", cfg.Address(), err)
			os.Exit(1)
		}
	}

	if err := cfg.SaveTo(opts.Config); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", opts.Config)
	fmt.Println()
	fmt.Println("Say hello with: " + headerStyle.Render("naohello run"))

	return nil
}

// testConnection checks that the robot answers and offers the services the
// demo needs.
func testConnection(cfg robot.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	fmt.Printf("Connecting to %s...\n", cfg.Address())
	s, err := robot.Dial(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer s.Close()

	for _, name := range []string{robot.MotionService, robot.SpeechService, robot.PostureService} {
		if _, err := s.ServiceInfo(ctx, name); err != nil {
			return errors.Wrapf(err, "service %s", name)
		}
		fmt.Println(successStyle.Render("  ✓ ") + name)
	}
	return nil
}
