package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger receives reconciliation events. Implementations must be safe for
// concurrent use.
type Logger interface {
	Transition(session, from, to string)
	Resolved(session, path, hash string)
	Submitted(session, commitID string, decisions int)
	Error(operation, path string, err error)
	Debug(format string, args ...any)
}

type ZerologLogger struct {
	log zerolog.Logger
}

// New builds a logger writing to w. format is "console" or "json"; level is a
// zerolog level name and defaults to info.
func New(w io.Writer, level, format string) (*ZerologLogger, error) {
	lvl := zerolog.InfoLevel
	if level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		lvl = parsed
	}

	switch format {
	case "", "console":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	case "json":
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}

	return &ZerologLogger{log: zerolog.New(w).Level(lvl).With().Timestamp().Logger()}, nil
}

// NewStderr is New writing to standard error.
func NewStderr(level, format string) (*ZerologLogger, error) {
	return New(os.Stderr, level, format)
}

func (l *ZerologLogger) Transition(session, from, to string) {
	l.log.Info().
		Str("session", session).
		Str("from", from).
		Str("to", to).
		Msg("session state changed")
}

func (l *ZerologLogger) Resolved(session, path, hash string) {
	l.log.Debug().
		Str("session", session).
		Str("path", path).
		Str("hash", hash).
		Msg("conflict resolved")
}

func (l *ZerologLogger) Submitted(session, commitID string, decisions int) {
	l.log.Info().
		Str("session", session).
		Str("commit_id", commitID).
		Int("decisions", decisions).
		Msg("merge submitted")
}

func (l *ZerologLogger) Error(operation, path string, err error) {
	ev := l.log.Error().Err(err).Str("operation", operation)
	if path != "" {
		ev = ev.Str("path", path)
	}
	ev.Msg("operation failed")
}

func (l *ZerologLogger) Debug(format string, args ...any) {
	l.log.Debug().Msgf(format, args...)
}

type NullLogger struct{}

func (l *NullLogger) Transition(session, from, to string) {}

func (l *NullLogger) Resolved(session, path, hash string) {}

func (l *NullLogger) Submitted(session, commitID string, decisions int) {}

func (l *NullLogger) Error(operation, path string, err error) {}

func (l *NullLogger) Debug(format string, args ...any) {}
