package apply

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"

	engine "github.com/keshon/dirpatch/internal/apply"
	"github.com/keshon/dirpatch/internal/archive"
	"github.com/keshon/dirpatch/internal/command"
	"github.com/keshon/dirpatch/internal/middleware"
	"github.com/keshon/dirpatch/internal/patch"
	"github.com/keshon/dirpatch/internal/patcher"
	"github.com/keshon/dirpatch/internal/progress"
	"github.com/keshon/dirpatch/internal/scheduler"
)

type Command struct{}

func (c *Command) Name() string      { return "apply" }
func (c *Command) Short() string     { return "A" }
func (c *Command) Aliases() []string { return []string{"a"} }
func (c *Command) Usage() string {
	return "apply [-p <artifact>] [-d <dir>] [--partial] [--max-failures N] [-y]"
}
func (c *Command) Brief() string { return "Apply a patch artifact to a directory" }
func (c *Command) Help() string {
	return `Verify a directory against an artifact and apply it.

Options:
  -p, --patch <file>      Artifact path. Defaults to this executable when it
                          carries an embedded artifact.
  -d, --dir <dir>         Directory to patch. Defaults to the artifact's directory.
  --partial               Apply what can be applied when some files have changed
                          since the patch was made.
  --max-failures <n>      Stop after more than n entries fail (0 = no limit).
  -y, --yes               Do not ask for confirmation.`
}

func (c *Command) Subcommands() []command.Command { return nil }

func (c *Command) Flags(fs *flag.FlagSet) {
	command.StringVar(fs, "", "artifact path", "p", "patch")
	command.StringVar(fs, "", "directory to patch", "d", "dir")
	command.BoolVar(fs, false, "allow partial apply", "partial")
	command.IntVar(fs, 0, "failure threshold", "max-failures")
	command.BoolVar(fs, false, "skip confirmation", "y", "yes")
}

func (c *Command) Run(ctx *command.Context) error {
	artifact, err := ResolveArtifact(ctx.String("p"))
	if err != nil {
		return err
	}
	m, err := patcher.Inspect(artifact)
	if err != nil {
		return err
	}

	root := ctx.String("d")
	if root == "" {
		root = filepath.Dir(artifact)
	}

	if !ctx.Bool("y") && progress.IsTerminal(ctx.Stdin) {
		ok, err := confirm(ctx, fmt.Sprintf("Apply %d changes to %s?", len(m.Entries), root))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(ctx.Stdout, "Aborted.")
			return nil
		}
	}

	bar := progress.NewProgress(ctx.Stdout, len(m.Entries), "Applying")
	report, err := patcher.Apply(ctx.Ctx, patcher.ApplyOptions{
		Artifact: artifact,
		Root:     root,
		Policy: engine.Policy{
			AllowPartial: ctx.Bool("partial"),
			MaxFailures:  ctx.Int("max-failures"),
		},
		Pool:     scheduler.New(ctx.Config.IOThreads),
		Logger:   ctx.Logger,
		Progress: bar,
	})
	bar.Finish()

	if report != nil {
		PrintReport(ctx, report)
	}
	if err != nil {
		printStale(ctx, err)
		return err
	}
	if n := report.Failed(); n > 0 {
		return fmt.Errorf("%d of %d entries failed", n, len(report.Outcomes))
	}
	return nil
}

// ResolveArtifact returns p, or the running executable when p is empty and
// the executable carries an embedded artifact.
func ResolveArtifact(p string) (string, error) {
	if p != "" {
		return p, nil
	}
	exe, err := os.Executable()
	if err == nil && archive.HasEmbedded(exe) {
		return exe, nil
	}
	return "", errors.New("no artifact given, use -p <file>")
}

// PrintReport writes the per-status totals and every failure.
func PrintReport(ctx *command.Context, r *patch.Report) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	fmt.Fprintf(ctx.Stdout, "Applied: %s   Skipped: %s   Failed: %s\n",
		green(r.Applied()), yellow(r.Skipped()), red(r.Failed()))
	for _, o := range r.Failures() {
		fmt.Fprintf(ctx.Stdout, "  %s %s (%s): %v\n", red("✗"), o.Path, o.Kind, o.Err)
	}
}

func printStale(ctx *command.Context, err error) {
	var vf *patch.VerificationFailed
	if errors.As(err, &vf) {
		for _, f := range vf.Failures {
			color.New(color.FgRed).Fprintf(ctx.Stdout, "  check failed: %s (%s)\n", f.Path, f.Reason)
		}
		return
	}
	if !errors.Is(err, patch.ErrStaleBase) {
		return
	}
	fmt.Fprintln(ctx.Stdout, "Files changed since the patch was made:")
	for _, e := range unwrapAll(err) {
		var s *patch.StaleBaseError
		if errors.As(e, &s) {
			color.New(color.FgYellow).Fprintf(ctx.Stdout, "  %s\n", s.Path)
		}
	}
	fmt.Fprintln(ctx.Stdout, "Re-run with --partial to apply the remaining changes.")
}

func unwrapAll(err error) []error {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}

func confirm(ctx *command.Context, question string) (bool, error) {
	fmt.Fprintf(ctx.Stdout, "%s [y/N] ", question)
	line, err := bufio.NewReader(ctx.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return false, nil
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func init() {
	command.RegisterCommand(
		command.ApplyMiddlewares(
			&Command{},
			middleware.WithDebugArgsPrint(),
		),
	)
}
