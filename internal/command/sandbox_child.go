package command

import (
	"io"
	"os"

	"github.com/carlhannes/agent-zip-sandbox/internal/sandbox"
	"github.com/carlhannes/agent-zip-sandbox/internal/session"
)

// SandboxChildCommand is the hidden entry point of the sandbox child
// process: one JSON request on stdin, one JSON response on stdout. The host
// session spawns this command on its own binary for every js_exec.
type SandboxChildCommand struct {
	*BaseCommand
}

// NewSandboxChildCommand creates the hidden sandbox-child command.
func NewSandboxChildCommand() *SandboxChildCommand {
	cmd := &SandboxChildCommand{
		BaseCommand: NewBaseCommand(session.SandboxChildCommand,
			"Run one sandboxed execution request (internal)",
			session.SandboxChildCommand),
	}
	cmd.markHidden()
	return cmd
}

// Execute services the request on this process's standard streams.
func (c *SandboxChildCommand) Execute(args []string, stdout, stderr io.Writer) error {
	return sandbox.RunChild(os.Stdin, stdout)
}
