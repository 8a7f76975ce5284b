// Package logging configures the zerolog logger shared by all gateway
// components.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it. Component
// loggers created afterwards inherit its output and level.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.Kitchen}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level. Unknown levels fall back to info.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(string(level))) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Per-request detail
//   - Cache hit/miss per partition and URL
//   - Strategy and response source of intercepted requests
//   - Ignored control messages and sync tags
//
// Info: Lifecycle events
//   - Gateway state changes, install and activation results
//   - Stale partitions deleted during activation
//   - Version promotion in the registration
//   - Server startup/shutdown
//
// Warn: Degraded answers that still yield a response
//   - Network failures answered by placeholder, cache copy or not-found
//   - Store errors on lookup or write
//   - Pass-through fetch failures (502)
//
// Error: Phase failures requiring attention
//   - Install aborted (fetch or store failure)
//   - Activation failed
//   - Configuration and startup errors
//
// Context Fields:
//   - component: gateway, registration, fetch, server
//   - version: gateway version
//   - url: normalized request URL
//   - kind / strategy / source: classification and outcome of a request
//   - partition: partition name
//   - state / from: lifecycle transition
