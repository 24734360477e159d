package create

import (
	"errors"
	"flag"
	"fmt"

	"github.com/fatih/color"

	"github.com/keshon/dirpatch/internal/command"
	"github.com/keshon/dirpatch/internal/config"
	"github.com/keshon/dirpatch/internal/middleware"
	"github.com/keshon/dirpatch/internal/patch"
	"github.com/keshon/dirpatch/internal/patcher"
	"github.com/keshon/dirpatch/internal/scheduler"
)

type Command struct{}

func (c *Command) Name() string      { return "create" }
func (c *Command) Short() string     { return "C" }
func (c *Command) Aliases() []string { return []string{"c", "make"} }
func (c *Command) Usage() string {
	return "create -s <source> -t <target> -o <output> [options]"
}
func (c *Command) Brief() string { return "Create a patch artifact from two directory trees" }
func (c *Command) Help() string {
	return `Compare a source and a target directory and write an artifact that turns
the source tree into the target tree.

Options:
  -s, --source <dir>       Directory the patch applies to.
  -t, --target <dir>       Directory the patch produces.
  -o, --output <file>      Artifact path.
  --check <a,b>            Files that must match before apply (relative to source).
                           Excluded or hidden files may be named too.
  --exclude-ext <.x,.y>    Skip files with these extensions.
  --exclude-dir <a,b>      Skip directories with these names.
  --exclude <pattern>      Skip paths matching a glob pattern (repeatable).
  --skip-hidden            Skip dot files and dot directories.
  --diff=false             Store every modified file in full.
  --force                  Overwrite an existing output file.
  --stub <exe>             Prepend an executable so the artifact applies itself.`
}

func (c *Command) Subcommands() []command.Command { return nil }

func (c *Command) Flags(fs *flag.FlagSet) {
	command.StringVar(fs, "", "source directory", "s", "source")
	command.StringVar(fs, "", "target directory", "t", "target")
	command.StringVar(fs, "", "output artifact", "o", "output")
	command.ListVar(fs, "check files", "check")
	command.ListVar(fs, "excluded extensions", "exclude-ext")
	command.ListVar(fs, "excluded directory names", "exclude-dir")
	command.ListVar(fs, "excluded glob patterns", "exclude")
	command.BoolVar(fs, false, "skip hidden entries", "skip-hidden")
	command.BoolVar(fs, true, "store line diffs for text files", "diff")
	command.BoolVar(fs, false, "overwrite output", "force", "f")
	command.StringVar(fs, "", "executable stub", "stub")
}

func (c *Command) Run(ctx *command.Context) error {
	opts := patcher.CreateOptions{
		SourceDir:  ctx.String("s"),
		TargetDir:  ctx.String("t"),
		Output:     ctx.String("o"),
		CheckFiles: ctx.List("check"),
		Exclusions: patch.ExclusionRules{
			Extensions: ctx.List("exclude-ext"),
			Dirs:       ctx.List("exclude-dir"),
			Patterns:   ctx.List("exclude"),
			SkipHidden: ctx.Bool("skip-hidden"),
		},
		DiffMode:  ctx.Bool("diff"),
		DiffRatio: config.DefaultDiffRatio,
		Overwrite: ctx.Bool("force"),
		Stub:      ctx.String("stub"),
		Pool:      scheduler.New(ctx.Config.IOThreads),
		Logger:    ctx.Logger,
	}
	if opts.SourceDir == "" || opts.TargetDir == "" || opts.Output == "" {
		return fmt.Errorf("source, target and output are required\nUsage: %s", c.Usage())
	}

	res, err := patcher.Create(ctx.Ctx, opts)
	if errors.Is(err, patch.ErrNoChanges) {
		color.New(color.FgYellow).Fprintln(ctx.Stdout, "Nothing to do: the directories are identical.")
		return nil
	}
	if err != nil {
		return err
	}

	color.New(color.FgGreen).Fprintf(ctx.Stdout, "Created %s\n", res.Output)
	fmt.Fprintf(ctx.Stdout, "  source files:  %d\n", res.SourceFiles)
	fmt.Fprintf(ctx.Stdout, "  target files:  %d\n", res.TargetFiles)
	fmt.Fprintf(ctx.Stdout, "  added:         %d\n", res.Counts[patch.KindAdded])
	fmt.Fprintf(ctx.Stdout, "  removed:       %d\n", res.Counts[patch.KindRemoved])
	fmt.Fprintf(ctx.Stdout, "  modified full: %d\n", res.Counts[patch.KindModifiedFull])
	fmt.Fprintf(ctx.Stdout, "  modified diff: %d\n", res.Counts[patch.KindModifiedDiff])
	return nil
}

func init() {
	command.RegisterCommand(
		command.ApplyMiddlewares(
			&Command{},
			middleware.WithDebugArgsPrint(),
		),
	)
}
