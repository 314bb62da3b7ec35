// Package logging provides a minimal logging interface and adapters for the
// agent engine.
//
// The Logger interface defines the structured logging methods (Debug, Info,
// Warn, Error) used by the loop, the tool registry, the task registry and
// the runner. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - PilotLogger, a configurable slog based logger (json, text, console)
//   - ZerologAdapter for hosts that already log through zerolog
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelDebug, Format: "console"})
//	registry := tool.NewRegistry(func(o *tool.RegistryOptions) { o.Logger = logger })
package logging
