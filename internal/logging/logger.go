package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process logger. Format "console" writes human-readable
// lines; anything else writes JSON. Logs go to stderr so command output on
// stdout stays machine-readable.
func New(level, format string) (zerolog.Logger, error) {
	return newWithWriter(os.Stderr, level, format)
}

func newWithWriter(out io.Writer, level, format string) (zerolog.Logger, error) {
	parsedLevel, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("parse log level %q: %w", level, err)
	}

	writer := out
	if strings.EqualFold(strings.TrimSpace(format), "console") {
		writer = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	logger := zerolog.New(writer).
		Level(parsedLevel).
		With().
		Timestamp().
		Str("service", "popfinder").
		Logger()

	return logger, nil
}
