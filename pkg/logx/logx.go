/*
Package logx sets up the process-wide zerolog logger.

Components derive their own logger from Logger() and tag it with a
"component" field; sessions add "user_id" and "remote_addr".
*/
package logx

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global logger to write human-readable lines to stderr.
// Debug enables debug level (per-packet tracing); otherwise info level.
func Init(debug bool) {
	InitWithWriter(os.Stderr, debug)
}

// InitWithWriter is Init with an explicit destination.
func InitWithWriter(w io.Writer, debug bool) {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	logger := zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    true,
		TimeFormat: "2006-01-02 15:04:05.000000",
	}).With().Timestamp().Logger()

	if debug {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	log.Logger = logger
}

// Logger returns a pointer to the global zerolog.Logger instance.
func Logger() *zerolog.Logger {
	return &log.Logger
}

// Component returns a child of the global logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return Logger().With().Str("component", name).Logger()
}
