package middleware

import (
	"github.com/keshon/dirpatch/internal/command"
	"github.com/keshon/dirpatch/internal/config"
)

// WithDebugArgsPrint logs the resolved command and its arguments at debug level.
func WithDebugArgsPrint() command.Middleware {
	return func(cmd command.Command) command.Command {
		return &command.WrappedCommand{
			Command: cmd,
			Wrap: func(ctx *command.Context) error {
				config.OrDiscard(ctx.Logger).Debug("running command", "command", cmd.Name(), "args", ctx.Args)
				return cmd.Run(ctx)
			},
		}
	}
}
