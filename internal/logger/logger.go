package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/oops"
)

// Setup builds the process logger. level is a zerolog level name; an unknown
// or empty level falls back to info. dev switches to console output.
func Setup(level string, dev bool) zerolog.Logger {
	return New(os.Stderr, level, dev)
}

// New is Setup writing to out.
func New(out io.Writer, level string, dev bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if dev && lvl > zerolog.DebugLevel {
		lvl = zerolog.DebugLevel
	}

	logger := zerolog.New(out).Level(lvl).With().Timestamp().Caller().Logger()

	if dev {
		logger = logger.Output(zerolog.ConsoleWriter{Out: out, FormatTimestamp: func(i any) string {
			return time.Now().Format(time.RFC3339)
		}}).Level(lvl).With().Stack().Logger()
	}

	return logger
}

// WithError attaches err to event, adding the oops code and context when err
// carries them.
func WithError(event *zerolog.Event, err error) *zerolog.Event {
	if err == nil {
		return event
	}

	event = event.Err(err)

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return event
	}
	if code := oopsErr.Code(); code != nil {
		event = event.Interface("code", code)
	}
	if ctx := oopsErr.Context(); len(ctx) > 0 {
		event = event.Fields(ctx)
	}
	return event
}
