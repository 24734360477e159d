package command

import (
	"context"
	"flag"
	"io"
	"log/slog"

	"github.com/keshon/dirpatch/internal/config"
)

// Command represents a cli command
type Command interface {
	Name() string
	Short() string
	Aliases() []string
	Usage() string
	Brief() string
	Help() string
	Subcommands() []Command
	Flags(fs *flag.FlagSet)
	Run(ctx *Context) error
}

// Context represents a cli context
type Context struct {
	Args   []string
	Flags  *flag.FlagSet
	Ctx    context.Context
	Config config.Config
	Logger *slog.Logger
	Stdin  io.Reader
	Stdout io.Writer
}

// String returns the value of a string flag, or "" if it is not defined.
func (c *Context) String(name string) string {
	if v, ok := c.get(name).(string); ok {
		return v
	}
	return ""
}

func (c *Context) Bool(name string) bool {
	v, _ := c.get(name).(bool)
	return v
}

func (c *Context) Int(name string) int {
	v, _ := c.get(name).(int)
	return v
}

// List returns the collected values of a ListFlag.
func (c *Context) List(name string) []string {
	v, _ := c.get(name).([]string)
	return v
}

func (c *Context) get(name string) any {
	if c.Flags == nil {
		return nil
	}
	f := c.Flags.Lookup(name)
	if f == nil {
		return nil
	}
	if g, ok := f.Value.(flag.Getter); ok {
		return g.Get()
	}
	return nil
}
