package infra

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger constructs the service logger. Development and CLI runs get a
// human readable console writer at debug level, everything else emits JSON.
func NewLogger(appEnv string) zerolog.Logger {
	return newLogger(os.Stdout, appEnv)
}

func newLogger(out io.Writer, appEnv string) zerolog.Logger {
	level := zerolog.InfoLevel
	console := appEnv == "development" || appEnv == "cli"
	if console {
		level = zerolog.DebugLevel
	}
	if appEnv == "test" {
		level = zerolog.Disabled
	}

	if console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("app_env", appEnv).
		Logger()
}

// Logger aliases zerolog.Logger so packages depending on the logging
// contract do not import the third-party module directly.
type Logger = zerolog.Logger
