package command

import (
	"fmt"
	"io"
)

// HelpCommand prints the command listing.
type HelpCommand struct {
	*BaseCommand
	registry *Registry
}

// NewHelpCommand creates the help command.
func NewHelpCommand(registry *Registry) *HelpCommand {
	return &HelpCommand{
		BaseCommand: NewBaseCommand("help", "Show available commands", "help [command]"),
		registry:    registry,
	}
}

// Execute prints general help, or the usage of one command.
func (c *HelpCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		cmd, err := c.registry.Get(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s - %s\n\nUsage: %s\n", cmd.Name(), cmd.Description(), cmd.Usage())
		return nil
	}
	fmt.Fprintln(stdout, "agent-zip-sandbox - a ZIP-backed agent workspace with history and a JS sandbox")
	fmt.Fprintln(stdout, "\nCommands:")
	for _, cmd := range c.registry.List() {
		fmt.Fprintf(stdout, "  %-10s %s\n", cmd.Name(), cmd.Description())
	}
	fmt.Fprintln(stdout, "\nRun 'help <command>' for command usage.")
	return nil
}

// VersionCommand prints the version.
type VersionCommand struct {
	*BaseCommand
	version string
}

// NewVersionCommand creates the version command.
func NewVersionCommand(version string) *VersionCommand {
	return &VersionCommand{
		BaseCommand: NewBaseCommand("version", "Show version information", "version"),
		version:     version,
	}
}

// Execute prints the version string.
func (c *VersionCommand) Execute(args []string, stdout, stderr io.Writer) error {
	fmt.Fprintf(stdout, "agent-zip-sandbox %s\n", c.version)
	return nil
}
