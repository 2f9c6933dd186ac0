// Package observability holds the process-wide CLI logger.
//
// Commands log through CLILogger rather than constructing loggers ad
// hoc, so verbosity is decided once at startup and tests can install a
// no-op logger.
package observability

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the process-wide logger for command output. It defaults
// to a no-op logger so library code and tests never hit a nil pointer;
// InitCLILogger replaces it at startup.
var CLILogger = zap.NewNop()

// InitCLILogger configures CLILogger for interactive CLI use: console
// encoding to stderr, info level by default, debug when verbose.
func InitCLILogger(name string, verbose bool) {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	InitCLILoggerAt(name, level)
}

// InitCLILoggerAt configures CLILogger at an explicit level. The quiet
// mode of the CLI maps to warn.
func InitCLILoggerAt(name string, level zapcore.Level) {
	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.Lock(os.Stderr),
		level,
	)
	CLILogger = zap.New(core).Named(name)
}

// Sync flushes buffered log entries. Errors are ignored; stderr cannot
// usefully report its own flush failure.
func Sync() {
	_ = CLILogger.Sync()
}
