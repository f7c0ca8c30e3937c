// Package logger provides structured logging using zerolog
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	mu           sync.RWMutex
	globalLogger zerolog.Logger
)

// Config controls the global logger
type Config struct {
	Level  string
	Debug  bool
	JSON   bool
	Output string // "stdout", "stderr", "discard" or a file path
}

func init() {
	globalLogger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	zerolog.TimeFieldFormat = time.RFC3339
}

// Init replaces the global logger and sets the global level. The returned
// closer releases a log file when Output names one.
func Init(cfg Config) (io.Closer, error) {
	out, closer, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}

	level, err := parseLevel(cfg)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}

	var w io.Writer = out
	if !cfg.JSON {
		_, isFile := closer.(*os.File)
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: isFile}
	}

	mu.Lock()
	globalLogger = zerolog.New(w).With().Timestamp().Logger()
	log.Logger = globalLogger
	mu.Unlock()
	zerolog.SetGlobalLevel(level)

	return closer, nil
}

func parseLevel(cfg Config) (zerolog.Level, error) {
	if cfg.Debug {
		return zerolog.DebugLevel, nil
	}
	if cfg.Level == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	return level, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func openOutput(output string) (io.Writer, io.Closer, error) {
	switch output {
	case "", "stderr":
		return os.Stderr, nopCloser{}, nil
	case "stdout":
		return os.Stdout, nopCloser{}, nil
	case "discard":
		return io.Discard, nopCloser{}, nil
	}

	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file %s: %w", output, err)
	}
	return f, f, nil
}

// SetLevel changes the level of every logger, including component loggers
// created earlier
func SetLevel(level string) error {
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(l)
	return nil
}

// GetLogger returns the global logger
func GetLogger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return globalLogger
}

// WithComponent returns a child logger tagged with component
func WithComponent(component string) zerolog.Logger {
	return GetLogger().With().Str("component", component).Logger()
}
