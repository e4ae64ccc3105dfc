package logger

import (
	"bytes"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init initializes the logger
func Init(level, format string) {
	// Set log level
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// Set format
	if format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
}

// Get returns the global logger
func Get() zerolog.Logger {
	return log.Logger
}

// Transcript accumulates the log records of one task so its outcome
// can carry the full log alongside the status.
type Transcript struct {
	buf bytes.Buffer
}

func (t *Transcript) Write(p []byte) (int, error) {
	return t.buf.Write(p)
}

// String returns everything logged so far.
func (t *Transcript) String() string {
	return t.buf.String()
}

// WithCapture returns a logger that writes both to the parent logger's
// output and into a transcript.
func WithCapture(parent zerolog.Logger) (zerolog.Logger, *Transcript) {
	transcript := &Transcript{}
	captured := parent.Output(zerolog.MultiLevelWriter(os.Stderr, transcript))
	return captured, transcript
}
