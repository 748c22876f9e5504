package command

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/carlhannes/agent-zip-sandbox/internal/config"
	"github.com/carlhannes/agent-zip-sandbox/internal/session"
	"github.com/carlhannes/agent-zip-sandbox/internal/tools"
)

// RunCommand invokes one workspace tool by name with JSON arguments.
type RunCommand struct {
	*workspaceCommand
}

// NewRunCommand creates the run command.
func NewRunCommand(cfg *config.Config) *RunCommand {
	return &RunCommand{
		workspaceCommand: newWorkspaceCommand(cfg, "run",
			"Invoke a workspace tool",
			`run [-w workspace.zip] <tool> [json-args]

Tools: fs_read, fs_read_lines, fs_search, fs_write, fs_patch_lines,
       fs_list, fs_stat, fs_mkdir, fs_delete`),
	}
}

// Execute runs the named tool and prints its result object, or the
// structured {ok:false, error, code} object on failure.
func (c *RunCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: %s", c.Usage())
	}
	tool := args[0]
	rawArgs := json.RawMessage("{}")
	if len(args) > 1 {
		rawArgs = json.RawMessage(args[1])
	}
	return c.withSession(func(s *session.Session) error {
		result, err := s.Invoke(tool, rawArgs)
		if err != nil {
			if perr := printJSON(stdout, tools.NewToolError(err)); perr != nil {
				return perr
			}
			return err
		}
		return printJSON(stdout, result)
	})
}
