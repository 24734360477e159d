package command

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"

	"github.com/keshon/dirpatch/internal/config"
)

// Env carries process-level dependencies into a command run.
type Env struct {
	Config config.Config
	Logger *slog.Logger
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Execute resolves args to a command, parses its flags and runs it.
func Execute(ctx context.Context, env Env, args []string) error {
	if len(args) == 0 {
		return errors.New("no command provided, try 'help'")
	}

	node, remaining, err := ResolveCommand(args)
	if err != nil {
		return fmt.Errorf("%w: %s", err, args[0])
	}

	cmd := node.Cmd

	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	fs.SetOutput(env.Stderr)
	cmd.Flags(fs)
	if err := fs.Parse(remaining); err != nil {
		return fmt.Errorf("parsing flags: %w", err)
	}

	cctx := &Context{
		Args:   fs.Args(),
		Flags:  fs,
		Ctx:    ctx,
		Config: env.Config,
		Logger: config.OrDiscard(env.Logger),
		Stdin:  env.Stdin,
		Stdout: env.Stdout,
	}
	return cmd.Run(cctx)
}

// RunCLI is the main entrypoint for executing commands.
// It returns the process exit code.
func RunCLI(ctx context.Context, cfg config.Config, log *slog.Logger, args []string) int {
	env := Env{Config: cfg, Logger: log, Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
	err := Execute(ctx, env, args)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	}
	color.New(color.FgRed).Fprintln(os.Stderr, "Error:", err)
	return 1
}
