// Package command implements the CLI command registry and the built-in
// commands of the agent-zip-sandbox binary.
package command

import (
	"io"

	"github.com/spf13/pflag"
)

// Command represents a command that can be executed.
type Command interface {
	// Name returns the command name.
	Name() string

	// Description returns a short description of the command.
	Description() string

	// Usage returns the usage string for the command.
	Usage() string

	// Hidden reports whether the command is omitted from help listings.
	Hidden() bool

	// SetupFlags configures the flag set for this command.
	SetupFlags(fs *pflag.FlagSet)

	// Execute runs the command with the arguments remaining after flag
	// parsing.
	Execute(args []string, stdout, stderr io.Writer) error
}

// BaseCommand provides a basic implementation that other commands embed.
type BaseCommand struct {
	name        string
	description string
	usage       string
	hidden      bool
}

// NewBaseCommand creates a new BaseCommand.
func NewBaseCommand(name, description, usage string) *BaseCommand {
	return &BaseCommand{name: name, description: description, usage: usage}
}

// Name returns the command name.
func (c *BaseCommand) Name() string { return c.name }

// Description returns the command description.
func (c *BaseCommand) Description() string { return c.description }

// Usage returns the command usage.
func (c *BaseCommand) Usage() string { return c.usage }

// Hidden reports whether the command is hidden from help.
func (c *BaseCommand) Hidden() bool { return c.hidden }

// markHidden hides the command from help listings.
func (c *BaseCommand) markHidden() { c.hidden = true }

// SetupFlags is a default implementation that adds nothing.
func (c *BaseCommand) SetupFlags(fs *pflag.FlagSet) {}
