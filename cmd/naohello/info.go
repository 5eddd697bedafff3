package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gwillem/naohello/pkg/qi"
	"github.com/gwillem/naohello/pkg/robot"
)

var (
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableNameStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14")).Padding(0, 1)
	tableNeededStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")).Padding(0, 1)
	tableCellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

type InfoCommand struct {
	Methods string `long:"methods" value-name:"SERVICE" description:"Also list the methods of SERVICE"`
}

func (c *InfoCommand) Execute(args []string) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	s, err := robot.Dial(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer s.Close()

	services, err := s.Services(ctx)
	if err != nil {
		return err
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("Services on %s", cfg.Address())))
	fmt.Println(renderServices(services))

	if c.Methods != "" {
		obj, err := s.Service(ctx, c.Methods)
		if err != nil {
			return err
		}
		fmt.Println()
		fmt.Println(headerStyle.Render(fmt.Sprintf("Methods of %s", c.Methods)))
		for _, name := range obj.MetaObject().MethodNames() {
			fmt.Println("  " + name)
		}
	}
	return nil
}

// renderServices renders the service directory as a table, highlighting
// the services the demo uses.
func renderServices(services []qi.ServiceInfo) string {
	needed := map[string]bool{
		robot.MotionService:  true,
		robot.SpeechService:  true,
		robot.PostureService: true,
	}

	rows := make([][]string, 0, len(services))
	for _, si := range services {
		rows = append(rows, []string{
			si.Name,
			fmt.Sprintf("%d", si.ServiceID),
			fmt.Sprintf("%d", si.ProcessID),
			strings.Join(si.Endpoints, " "),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Service", "ID", "PID", "Endpoints").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			if col == 0 && row >= 0 && row < len(rows) {
				if needed[rows[row][0]] {
					return tableNeededStyle
				}
				return tableNameStyle
			}
			return tableCellStyle
		})

	return t.Render()
}
