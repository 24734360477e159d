package verify

import (
	"flag"
	"fmt"

	"github.com/fatih/color"

	"github.com/keshon/dirpatch/internal/command"
	"github.com/keshon/dirpatch/internal/command/apply"
	"github.com/keshon/dirpatch/internal/middleware"
	"github.com/keshon/dirpatch/internal/patch"
	"github.com/keshon/dirpatch/internal/patcher"
	"github.com/keshon/dirpatch/internal/scheduler"
)

type Command struct{}

func (c *Command) Name() string      { return "verify" }
func (c *Command) Short() string     { return "V" }
func (c *Command) Aliases() []string { return []string{"check"} }
func (c *Command) Usage() string     { return "verify [-p <artifact>] [-d <dir>]" }
func (c *Command) Brief() string     { return "Check whether an artifact can be applied" }
func (c *Command) Help() string {
	return `Run the pre-apply checks without changing anything.

The check files recorded in the artifact must match, and every file patched
with a line diff must still have the content the diff was made against.

Options:
  -p, --patch <file>   Artifact path. Defaults to this executable when it
                       carries an embedded artifact.
  -d, --dir <dir>      Directory to check. Defaults to the artifact's directory.`
}

func (c *Command) Subcommands() []command.Command { return nil }

func (c *Command) Flags(fs *flag.FlagSet) {
	command.StringVar(fs, "", "artifact path", "p", "patch")
	command.StringVar(fs, "", "directory to check", "d", "dir")
}

func (c *Command) Run(ctx *command.Context) error {
	artifact, err := apply.ResolveArtifact(ctx.String("p"))
	if err != nil {
		return err
	}

	stale, err := patcher.Verify(ctx.Ctx, patcher.ApplyOptions{
		Artifact: artifact,
		Root:     ctx.String("d"),
		Pool:     scheduler.New(ctx.Config.IOThreads),
		Logger:   ctx.Logger,
	})
	if err != nil {
		return err
	}

	if len(stale) == 0 {
		color.New(color.FgGreen).Fprintln(ctx.Stdout, "OK: the artifact can be applied.")
		return nil
	}

	fmt.Fprintln(ctx.Stdout, "Files changed since the patch was made:")
	for _, s := range stale {
		actual := "missing"
		if !s.Actual.IsZero() {
			actual = s.Actual.Short()
		}
		color.New(color.FgYellow).Fprintf(ctx.Stdout, "  %s  expected %s, found %s\n", s.Path, s.Expected.Short(), actual)
	}
	return fmt.Errorf("%d files: %w", len(stale), patch.ErrStaleBase)
}

func init() {
	command.RegisterCommand(
		command.ApplyMiddlewares(
			&Command{},
			middleware.WithDebugArgsPrint(),
		),
	)
}
