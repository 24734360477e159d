package command

// tree holds every dirpatch command; subcommand packages fill it from init.
var tree = NewTree()

// RegisterCommand adds cmd, its aliases and its subcommands to the global
// tree. Command packages call it from init, usually with ApplyMiddlewares.
func RegisterCommand(cmd Command) {
	tree.Register(cmd)
}

// ResolveCommand follows args down the tree and returns the deepest matching
// command with the arguments left for its flag set.
func ResolveCommand(args []string) (*Node, []string, error) {
	return tree.Resolve(args)
}

// GetCommand looks up a top-level command by name or alias, as `help <name>`
// does.
func GetCommand(name string) (Command, bool) {
	return tree.Get(name)
}

// AllCommands returns each registered command once, aliases folded in. The
// help listing and the README generator sort the result by name.
func AllCommands() []Command {
	var cmds []Command
	seen := make(map[Command]bool)

	var walk func(node *Node)
	walk = func(node *Node) {
		if node.Cmd != nil && !seen[node.Cmd] {
			seen[node.Cmd] = true
			cmds = append(cmds, node.Cmd)
		}
		for _, sub := range node.Subcommands {
			walk(sub)
		}
	}

	walk(tree.root)
	return cmds
}
