// Package commands registers every CLI command with the command tree.
package commands

import (
	_ "github.com/keshon/dirpatch/internal/command/apply"
	_ "github.com/keshon/dirpatch/internal/command/create"
	_ "github.com/keshon/dirpatch/internal/command/help"
	_ "github.com/keshon/dirpatch/internal/command/inspect"
	_ "github.com/keshon/dirpatch/internal/command/verify"
)
