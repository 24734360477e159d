package command

import (
	"flag"
	"strings"
)

// ListFlag collects comma-separated values; repeating the flag appends.
type ListFlag []string

func (l *ListFlag) String() string { return strings.Join(*l, ",") }

func (l *ListFlag) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*l = append(*l, part)
		}
	}
	return nil
}

func (l *ListFlag) Get() any { return []string(*l) }

// StringVar defines a string flag under every given name.
func StringVar(fs *flag.FlagSet, value string, usage string, names ...string) {
	p := new(string)
	for _, n := range names {
		fs.StringVar(p, n, value, usage)
	}
}

// BoolVar defines a bool flag under every given name.
func BoolVar(fs *flag.FlagSet, value bool, usage string, names ...string) {
	p := new(bool)
	for _, n := range names {
		fs.BoolVar(p, n, value, usage)
	}
}

// IntVar defines an int flag under every given name.
func IntVar(fs *flag.FlagSet, value int, usage string, names ...string) {
	p := new(int)
	for _, n := range names {
		fs.IntVar(p, n, value, usage)
	}
}

// ListVar defines a list flag under every given name.
func ListVar(fs *flag.FlagSet, usage string, names ...string) {
	l := new(ListFlag)
	for _, n := range names {
		fs.Var(l, n, usage)
	}
}
