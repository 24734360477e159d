package config

import (
	"io"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const IsDev = false

const (
	EnvIOThreads = "DIFFPATCH_IO_THREADS"
	EnvLogLevel  = "DIFFPATCH_LOG_LEVEL"
	EnvLogFormat = "DIFFPATCH_LOG_FORMAT"
)

const (
	// MaxIOThreads caps the default pool size; the env override may exceed it.
	MaxIOThreads     = 4
	DefaultDiffRatio = 0.8
	HashCacheSize    = 4096
	TempPattern      = ".dirpatch-tmp-*"
	DefaultLogFormat = "text"
)

// Config is the process-level configuration. It is read once in main and
// passed down explicitly.
type Config struct {
	IOThreads int
	LogLevel  slog.Level
	LogFormat string // "text" | "json"
}

// Load reads a .env file from the working directory, if any, then the
// environment. Variables already set in the environment win.
func Load() Config {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a getenv-style lookup.
func FromEnv(getenv func(string) string) Config {
	return Config{
		IOThreads: ParseIOThreads(getenv(EnvIOThreads)),
		LogLevel:  ParseLogLevel(getenv(EnvLogLevel)),
		LogFormat: ParseLogFormat(getenv(EnvLogFormat)),
	}
}

// DefaultIOThreads returns min(NumCPU, MaxIOThreads).
func DefaultIOThreads() int {
	return min(runtime.NumCPU(), MaxIOThreads)
}

// ParseIOThreads falls back to DefaultIOThreads for anything that is not a
// positive integer.
func ParseIOThreads(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return DefaultIOThreads()
	}
	return n
}

func ParseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func ParseLogFormat(s string) string {
	if strings.EqualFold(strings.TrimSpace(s), "json") {
		return "json"
	}
	return DefaultLogFormat
}

// NewLogger builds the process logger writing to w.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// DiscardLogger is used wherever a caller passes a nil logger.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return DiscardLogger()
	}
	return l
}
