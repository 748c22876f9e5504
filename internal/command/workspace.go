package command

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/carlhannes/agent-zip-sandbox/internal/config"
	"github.com/carlhannes/agent-zip-sandbox/internal/session"
)

// workspaceCommand is embedded by every command operating on a workspace ZIP.
type workspaceCommand struct {
	*BaseCommand
	cfg           *config.Config
	workspacePath string
}

func newWorkspaceCommand(cfg *config.Config, name, description, usage string) *workspaceCommand {
	return &workspaceCommand{
		BaseCommand: NewBaseCommand(name, description, usage),
		cfg:         cfg,
	}
}

// SetupFlags adds the shared --workspace flag.
func (c *workspaceCommand) SetupFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.workspacePath, "workspace", "w", "workspace.zip", "path of the workspace ZIP")
}

// withSession opens the workspace for the duration of fn.
func (c *workspaceCommand) withSession(fn func(*session.Session) error) error {
	s, err := session.Open(c.workspacePath, c.cfg, nil)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	return fn(s)
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
