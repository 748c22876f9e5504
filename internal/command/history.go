package command

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/carlhannes/agent-zip-sandbox/internal/config"
	"github.com/carlhannes/agent-zip-sandbox/internal/session"
)

// HistoryCommand lists the journal with a cursor marker.
type HistoryCommand struct {
	*workspaceCommand
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(cfg *config.Config) *HistoryCommand {
	return &HistoryCommand{workspaceCommand: newWorkspaceCommand(cfg, "history",
		"List recorded workspace mutations", "history [-w workspace.zip]")}
}

// Execute prints one line per entry; the cursor separates the undoable
// prefix from the redoable suffix.
func (c *HistoryCommand) Execute(args []string, stdout, stderr io.Writer) error {
	return c.withSession(func(s *session.Session) error {
		entries, cursor, err := s.History()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(stdout, "history is empty")
			return nil
		}
		for i, e := range entries {
			marker := " "
			if i == cursor-1 {
				marker = "*"
			}
			compacted := ""
			if e.Compacted {
				compacted = " (compacted)"
			}
			fmt.Fprintf(stdout, "%s %s  %-14s %s%s\n",
				marker, e.ID, e.Tool, strings.Join(e.ChangedPaths, " "), compacted)
		}
		fmt.Fprintf(stdout, "cursor: %d/%d\n", cursor, len(entries))
		return nil
	})
}

// stepsArg parses the optional step-count argument of undo/redo.
func stepsArg(args []string) (int, error) {
	if len(args) == 0 {
		return 1, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid step count %q", args[0])
	}
	return n, nil
}

// UndoCommand reverses recorded mutations.
type UndoCommand struct {
	*workspaceCommand
}

// NewUndoCommand creates the undo command.
func NewUndoCommand(cfg *config.Config) *UndoCommand {
	return &UndoCommand{workspaceCommand: newWorkspaceCommand(cfg, "undo",
		"Undo recorded workspace mutations", "undo [-w workspace.zip] [steps]")}
}

// Execute undoes up to the requested number of entries.
func (c *UndoCommand) Execute(args []string, stdout, stderr io.Writer) error {
	steps, err := stepsArg(args)
	if err != nil {
		return err
	}
	return c.withSession(func(s *session.Session) error {
		n, err := s.Undo(steps)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "undid %d entries\n", n)
		return nil
	})
}

// RedoCommand re-applies undone mutations.
type RedoCommand struct {
	*workspaceCommand
}

// NewRedoCommand creates the redo command.
func NewRedoCommand(cfg *config.Config) *RedoCommand {
	return &RedoCommand{workspaceCommand: newWorkspaceCommand(cfg, "redo",
		"Redo undone workspace mutations", "redo [-w workspace.zip] [steps]")}
}

// Execute redoes up to the requested number of entries.
func (c *RedoCommand) Execute(args []string, stdout, stderr io.Writer) error {
	steps, err := stepsArg(args)
	if err != nil {
		return err
	}
	return c.withSession(func(s *session.Session) error {
		n, err := s.Redo(steps)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "redid %d entries\n", n)
		return nil
	})
}

// RestoreCommand moves the workspace to the state after a given entry.
type RestoreCommand struct {
	*workspaceCommand
}

// NewRestoreCommand creates the restore command.
func NewRestoreCommand(cfg *config.Config) *RestoreCommand {
	return &RestoreCommand{workspaceCommand: newWorkspaceCommand(cfg, "restore",
		"Restore the workspace to the state after an entry", "restore [-w workspace.zip] <entry-id>")}
}

// Execute restores to the named entry.
func (c *RestoreCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s", c.Usage())
	}
	return c.withSession(func(s *session.Session) error {
		if err := s.Restore(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "restored to %s\n", args[0])
		return nil
	})
}

// DiffCommand renders the diff view of one entry.
type DiffCommand struct {
	*workspaceCommand
	maxFiles        int
	maxPreviewLines int
}

// NewDiffCommand creates the diff command.
func NewDiffCommand(cfg *config.Config) *DiffCommand {
	return &DiffCommand{workspaceCommand: newWorkspaceCommand(cfg, "diff",
		"Show what an entry changed", "diff [-w workspace.zip] <entry-id>")}
}

// SetupFlags adds diff-specific limits.
func (c *DiffCommand) SetupFlags(fs *pflag.FlagSet) {
	c.workspaceCommand.SetupFlags(fs)
	fs.IntVar(&c.maxFiles, "max-files", 20, "maximum file changes to render")
	fs.IntVar(&c.maxPreviewLines, "max-preview", 8, "maximum preview lines per side")
}

// Execute prints the entry's file and directory operations.
func (c *DiffCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s", c.Usage())
	}
	return c.withSession(func(s *session.Session) error {
		report, err := s.Diff(args[0], c.maxFiles, c.maxPreviewLines)
		if err != nil {
			return err
		}
		return printJSON(stdout, report)
	})
}
