package command

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"

	"github.com/carlhannes/agent-zip-sandbox/internal/config"
	"github.com/carlhannes/agent-zip-sandbox/internal/sandbox"
	"github.com/carlhannes/agent-zip-sandbox/internal/session"
)

// ExecCommand runs a guest entry file in the sandbox.
type ExecCommand struct {
	*workspaceCommand
	entry     string
	timeoutMs int
	envPairs  []string
}

// NewExecCommand creates the exec command.
func NewExecCommand(cfg *config.Config) *ExecCommand {
	return &ExecCommand{
		workspaceCommand: newWorkspaceCommand(cfg, "exec",
			"Bundle and run a guest module in the sandbox",
			"exec [-w workspace.zip] [--entry ~/main.ts] [--timeout ms] [--env K=V]... [argv...]"),
	}
}

// SetupFlags adds exec-specific flags on top of the workspace flag.
func (c *ExecCommand) SetupFlags(fs *pflag.FlagSet) {
	c.workspaceCommand.SetupFlags(fs)
	fs.StringVar(&c.entry, "entry", sandbox.DefaultEntryPath, "entry file inside the workspace")
	fs.IntVar(&c.timeoutMs, "timeout", 0, "script timeout in milliseconds (0 = configured default)")
	fs.StringArrayVar(&c.envPairs, "env", nil, "environment variable K=V passed to the guest")
}

// Execute runs the guest and prints the execution outcome.
func (c *ExecCommand) Execute(args []string, stdout, stderr io.Writer) error {
	env := make(map[string]string, len(c.envPairs))
	for _, pair := range c.envPairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("malformed --env %q, expected K=V", pair)
		}
		env[key] = value
	}
	return c.withSession(func(s *session.Session) error {
		outcome, err := s.Execute(session.ExecRequest{
			EntryPath: c.entry,
			Argv:      args,
			Env:       env,
			TimeoutMs: c.timeoutMs,
		})
		if err != nil {
			return err
		}
		if err := printJSON(stdout, outcome); err != nil {
			return err
		}
		if !outcome.OK {
			return fmt.Errorf("execution failed with exit code %d", outcome.ExitCode)
		}
		return nil
	})
}
