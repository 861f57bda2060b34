// Package logging builds the structured *zap.Logger used throughout the
// supervisor, mapping the CLI's five-level vocabulary and write-style
// convention onto zap's encoder configuration.
package logging

import (
	"os"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

// traceFieldKey names the boolean field attached to every record of a
// logger built at the trace level, since zap has no native trace level
// below debug.
const traceFieldKey = "trace"

// New builds a *zap.Logger for the given --log_level and --log_style
// values. level is one of debug|error|info|trace|warn; trace maps onto
// zap's debug level with an additional "trace": true field. style is one
// of always|auto|never and controls ANSI coloring of the console
// encoder, mirroring env_logger's WriteStyle.
func New(level, style string) (*zap.Logger, error) {
	zapLevel, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if colorEnabled(style) {
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(cfg),
		zapcore.Lock(os.Stderr),
		zapLevel,
	)

	logger := zap.New(core)
	if level == "trace" {
		logger = logger.With(zap.Bool(traceFieldKey, true))
	}
	return logger, nil
}

func parseLevel(level string) (zapcore.Level, error) {
	switch level {
	case "debug":
		return zapcore.DebugLevel, nil
	case "trace":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return 0, &invalidLevelError{level: level}
	}
}

type invalidLevelError struct{ level string }

func (e *invalidLevelError) Error() string {
	return "logging: invalid log_level " + e.level
}

// colorEnabled resolves the auto/always/never write-style convention for
// both the zap console encoder and, through ConfigureColor, the
// github.com/fatih/color package.
func colorEnabled(style string) bool {
	switch style {
	case "always":
		return true
	case "never":
		return false
	default: // "auto"
		return term.IsTerminal(int(os.Stderr.Fd()))
	}
}

// ConfigureColor applies the same auto/always/never convention to the
// process-wide github.com/fatih/color enable flag, used by cobra
// subcommands that print colorized human-facing output.
func ConfigureColor(style string) {
	color.NoColor = !colorEnabled(style)
}
