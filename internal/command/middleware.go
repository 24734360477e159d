package command

// Middleware decorates a command, for example to log its arguments before
// it runs.
type Middleware func(Command) Command

// WrappedCommand keeps the metadata and flags of Command and replaces Run
// with Wrap when it is set.
type WrappedCommand struct {
	Command
	Wrap func(ctx *Context) error
}

func (w *WrappedCommand) Run(ctx *Context) error {
	if w.Wrap != nil {
		return w.Wrap(ctx)
	}
	return w.Command.Run(ctx)
}

// ApplyMiddlewares wraps cmd in order, so the last middleware runs first.
func ApplyMiddlewares(cmd Command, mws ...Middleware) Command {
	for _, mw := range mws {
		cmd = mw(cmd)
	}
	return cmd
}
