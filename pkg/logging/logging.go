package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Level represents a log level.
type Level = slog.Level

// Log levels.
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Format represents the log output format.
type Format string

// Output formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// EnvLevel overrides the configured level when set.
const EnvLevel = "WEBMAP_LOG_LEVEL"

// Config holds logging configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level Level

	// Format is the output format (text or json).
	Format Format

	// Output is the writer to send logs to. Defaults to os.Stderr.
	Output io.Writer

	// File, when set, receives a JSON copy of every record.
	File string

	// FileLevel is the minimum level written to File. Nil means Level.
	FileLevel slog.Leveler

	// AddSource adds source file and line to log entries.
	AddSource bool
}

// DefaultConfig returns the defaults: info level, text format, stderr.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Format: FormatText,
		Output: os.Stderr,
	}
}

// FromEnv applies EnvLevel to cfg, if set.
func FromEnv(cfg Config) Config {
	if v, ok := os.LookupEnv(EnvLevel); ok && v != "" {
		cfg.Level = ParseLevel(v)
	}
	return cfg
}

// New creates a new slog.Logger with the given configuration. File is
// ignored; use Open for file output.
func New(cfg Config) *slog.Logger {
	return slog.New(newHandler(cfg))
}

// Open is like New but also tees records to cfg.File. The returned closer
// releases the file and is never nil.
func Open(cfg Config) (*slog.Logger, io.Closer, error) {
	h := newHandler(cfg)
	if cfg.File == "" {
		return slog.New(h), io.NopCloser(nil), nil
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	var level slog.Leveler = cfg.Level
	if cfg.FileLevel != nil {
		level = cfg.FileLevel
	}
	file := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level, AddSource: cfg.AddSource})
	return slog.New(&teeHandler{console: h, file: file}), f, nil
}

func newHandler(cfg Config) slog.Handler {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}
	if cfg.Format == FormatJSON {
		return slog.NewJSONHandler(cfg.Output, opts)
	}
	return slog.NewTextHandler(cfg.Output, opts)
}

// NewWithLevel creates a logger with the specified level using text format.
func NewWithLevel(level Level) *slog.Logger {
	return New(Config{
		Level:  level,
		Format: FormatText,
		Output: os.Stderr,
	})
}

// Nop returns a no-op logger that discards all output.
// Use this when a logger is required but logging is disabled.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ParseLevel parses a log level string, ignoring case.
// Valid values: "debug", "info", "warn", "warning", "error".
// Returns LevelInfo if the string is not recognized.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// ParseFormat parses a log format string, ignoring case.
// Returns FormatText if the string is not recognized.
func ParseFormat(s string) Format {
	if strings.EqualFold(s, "json") {
		return FormatJSON
	}
	return FormatText
}
