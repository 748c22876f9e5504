package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/carlhannes/agent-zip-sandbox/internal/command"
	"github.com/carlhannes/agent-zip-sandbox/internal/config"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadDefault()
	if err != nil {
		// A broken config file should not brick the binary.
		slog.Warn("failed to load configuration, using defaults", "error", err)
		cfg = config.Default()
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))

	registry := command.NewRegistry()
	helpCmd := command.NewHelpCommand(registry)
	registry.Register(helpCmd)
	registry.Register(command.NewVersionCommand(version))
	registry.Register(command.NewRunCommand(cfg))
	registry.Register(command.NewExecCommand(cfg))
	registry.Register(command.NewHistoryCommand(cfg))
	registry.Register(command.NewUndoCommand(cfg))
	registry.Register(command.NewRedoCommand(cfg))
	registry.Register(command.NewRestoreCommand(cfg))
	registry.Register(command.NewDiffCommand(cfg))
	registry.Register(command.NewSandboxChildCommand())

	if len(os.Args) < 2 {
		return helpCmd.Execute(nil, os.Stdout, os.Stderr)
	}
	cmdName := os.Args[1]
	if cmdName == "-h" || cmdName == "--help" {
		return helpCmd.Execute(nil, os.Stdout, os.Stderr)
	}
	return registry.Run(cmdName, os.Args[2:], os.Stdout, os.Stderr)
}
