// internal/logging/logging.go

// Package logging builds the process logger. Environment variables win over
// flags and the config file so an operator can turn on debug output
// without touching either.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel   = "MASERMON_LOG_LEVEL"
	EnvLogNoColor = "MASERMON_LOG_NOCOLOR"
	EnvLogJSON    = "MASERMON_LOG_JSON"
)

type Options struct {
	Level   string
	JSON    bool
	NoColor bool
	Out     io.Writer // nil => stderr
}

// New builds the logger, installs it as the global zerolog logger and
// returns it. Every line carries the app name and the run id.
func New(app, run string, opts Options) zerolog.Logger {
	applyEnvOverrides(&opts, os.Getenv)

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	if !opts.JSON {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			NoColor:    opts.NoColor,
		}
	}

	level, ok := ParseLevel(opts.Level)
	if !ok {
		level = zerolog.InfoLevel
	}

	ctx := zerolog.New(out).Level(level).With().Timestamp().Str("app", app)
	if run != "" {
		ctx = ctx.Str("run", run)
	}
	logger := ctx.Logger()
	log.Logger = logger
	return logger
}

func applyEnvOverrides(opts *Options, getenv func(string) string) {
	if raw := getenv(EnvLogLevel); raw != "" {
		if _, ok := ParseLevel(raw); ok {
			opts.Level = raw
		}
	}
	if v, ok := parseBool(getenv(EnvLogNoColor)); ok {
		opts.NoColor = v
	}
	if v, ok := parseBool(getenv(EnvLogJSON)); ok {
		opts.JSON = v
	}
}

// ParseLevel maps a level name to zerolog. The empty string is not a level.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
