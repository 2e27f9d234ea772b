package utils

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

var log zerolog.Logger

// LogOptions controls the process-wide logger.
type LogOptions struct {
	// Level is one of debug, info, warn, error.
	Level string
	// Format is "console" (default) or "json".
	Format string
	// NoColor disables ANSI colors in console output.
	NoColor bool
}

func setLevel(l zerolog.Level) {
	zerolog.SetGlobalLevel(l)
}

// ParseLevel maps a level name to a zerolog level.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "debug", "dev":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	}
	return zerolog.NoLevel, fmt.Errorf("unknown log level %q", level)
}

// SetupLogging replaces the global logger according to opts.
func SetupLogging(opts LogOptions) error {
	l, err := ParseLevel(opts.Level)
	if err != nil {
		return err
	}
	noColor := opts.NoColor || !stdoutIsTerminal()
	logger, err := newLogger(colorable.NewColorableStdout(), opts.Format, noColor)
	if err != nil {
		return err
	}
	setLevel(l)
	log = logger
	return nil
}

func newLogger(out io.Writer, format string, noColor bool) (zerolog.Logger, error) {
	switch strings.ToLower(format) {
	case "", "console":
		output := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: noColor}
		return zerolog.New(output).With().Timestamp().Logger(), nil
	case "json":
		return zerolog.New(out).With().Timestamp().Logger(), nil
	}
	return zerolog.Nop(), fmt.Errorf("unknown log format %q", format)
}

func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func InfoF(format string, v ...interface{}) {
	log.Info().Msgf(format, v...)
}

func DebugF(format string, v ...interface{}) {
	log.Debug().Msgf(format, v...)
}

func ErrorF(format string, v ...interface{}) {
	log.Error().Msgf(format, v...)
}

func WarnF(format string, v ...interface{}) {
	log.Warn().Msgf(format, v...)
}

func init() {
	setLevel(zerolog.InfoLevel)
	log, _ = newLogger(colorable.NewColorableStdout(), "console", !stdoutIsTerminal())
}
