package inspect

import (
	"encoding/json"
	"flag"
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/keshon/dirpatch/internal/command"
	"github.com/keshon/dirpatch/internal/command/apply"
	"github.com/keshon/dirpatch/internal/middleware"
	"github.com/keshon/dirpatch/internal/patch"
	"github.com/keshon/dirpatch/internal/patcher"
)

type Command struct{}

func (c *Command) Name() string      { return "inspect" }
func (c *Command) Short() string     { return "I" }
func (c *Command) Aliases() []string { return []string{"i", "show"} }
func (c *Command) Usage() string     { return "inspect [-p <artifact>] [--json]" }
func (c *Command) Brief() string     { return "Show the contents of a patch artifact" }
func (c *Command) Help() string {
	return `Print the manifest of an artifact: check files, exclusion rules and every
entry with its change kind.

Options:
  -p, --patch <file>   Artifact path. Defaults to this executable when it
                       carries an embedded artifact.
  --json               Print the raw manifest as JSON.`
}

func (c *Command) Subcommands() []command.Command { return nil }

func (c *Command) Flags(fs *flag.FlagSet) {
	command.StringVar(fs, "", "artifact path", "p", "patch")
	command.BoolVar(fs, false, "print JSON", "json")
}

func (c *Command) Run(ctx *command.Context) error {
	artifact, err := apply.ResolveArtifact(ctx.String("p"))
	if err != nil {
		return err
	}
	m, err := patcher.Inspect(artifact)
	if err != nil {
		return err
	}

	if ctx.Bool("json") {
		enc := json.NewEncoder(ctx.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	}

	printSummary(ctx, artifact, m)
	return nil
}

var kindColor = map[patch.Kind]*color.Color{
	patch.KindAdded:        color.New(color.FgGreen),
	patch.KindRemoved:      color.New(color.FgRed),
	patch.KindModifiedFull: color.New(color.FgYellow),
	patch.KindModifiedDiff: color.New(color.FgCyan),
}

var kindMark = map[patch.Kind]string{
	patch.KindAdded:        "A",
	patch.KindRemoved:      "D",
	patch.KindModifiedFull: "M",
	patch.KindModifiedDiff: "~",
}

func printSummary(ctx *command.Context, artifact string, m *patch.Manifest) {
	gray := color.New(color.FgHiBlack).SprintFunc()
	w := ctx.Stdout

	fmt.Fprintf(w, "%s %s\n", gray("Artifact:"), artifact)
	fmt.Fprintf(w, "%s %d\n", gray("Format:"), m.FormatVersion)
	fmt.Fprintf(w, "%s %t\n", gray("Diff mode:"), m.DiffMode)

	if len(m.CheckFiles) > 0 {
		fmt.Fprintln(w, gray("Check files:"))
		for _, cf := range m.CheckFiles {
			fmt.Fprintf(w, "  %s  %s\n", cf.Hash.Short(), cf.Path)
		}
	}

	ex := m.Exclusions
	if len(ex.Extensions)+len(ex.Dirs)+len(ex.Patterns) > 0 || ex.SkipHidden {
		fmt.Fprintln(w, gray("Exclusions:"))
		printList(ctx, "extensions", ex.Extensions)
		printList(ctx, "dirs", ex.Dirs)
		printList(ctx, "patterns", ex.Patterns)
		if ex.SkipHidden {
			fmt.Fprintln(w, "  hidden entries skipped")
		}
	}

	counts := m.Counts()
	fmt.Fprintf(w, "\n%s added %d, removed %d, modified %d (full %d, diff %d)\n\n",
		gray("Entries:"),
		counts[patch.KindAdded], counts[patch.KindRemoved],
		counts[patch.KindModifiedFull]+counts[patch.KindModifiedDiff],
		counts[patch.KindModifiedFull], counts[patch.KindModifiedDiff])

	for _, e := range m.Entries {
		size := ""
		if e.Kind.Writes() {
			size = fmt.Sprintf("%d B", e.Size)
		}
		fmt.Fprintf(w, "  %s  %-10s %s\n", kindColor[e.Kind].Sprint(kindMark[e.Kind]), size, e.Path)
	}
}

func printList(ctx *command.Context, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(ctx.Stdout, "  %s: %s\n", label, strings.Join(items, ", "))
}

func init() {
	command.RegisterCommand(
		command.ApplyMiddlewares(
			&Command{},
			middleware.WithDebugArgsPrint(),
		),
	)
}
