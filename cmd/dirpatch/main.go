package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/keshon/dirpatch/internal/archive"
	"github.com/keshon/dirpatch/internal/command"
	_ "github.com/keshon/dirpatch/internal/commands"
	"github.com/keshon/dirpatch/internal/config"
)

func main() {
	cfg := config.Load()
	log := cfg.NewLogger(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	args := os.Args[1:]
	if len(args) == 0 {
		// A self-applying artifact applies itself to its own directory.
		if exe, err := os.Executable(); err == nil && archive.HasEmbedded(exe) {
			args = []string{"apply", "-p", exe}
		} else {
			args = []string{"help"}
		}
	}

	code := command.RunCLI(ctx, cfg, log, args)
	stop()
	os.Exit(code)
}
