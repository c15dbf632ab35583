// Package logs builds the process logger: a text handler for the terminal
// and, when configured, a JSON handler appending to a file, fanned out with
// slog-multi.
package logs

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

type Options struct {
	Level string
	File  string
	// Terminal receives human-readable logs. Nil means stderr; io.Discard
	// turns terminal logging off (the TUI owns the screen).
	Terminal io.Writer
}

// ParseLevel maps debug/info/warn/error to a slog level. Unknown names
// mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// New returns the logger and a func that closes the log file, if any.
func New(opt Options) (*slog.Logger, func() error, error) {
	level := new(slog.LevelVar)
	level.Set(ParseLevel(opt.Level))

	var handlers []slog.Handler
	term := opt.Terminal
	if term == nil {
		term = os.Stderr
	}
	if term != io.Discard {
		handlers = append(handlers, slog.NewTextHandler(term, &slog.HandlerOptions{Level: level}))
	}

	closer := func() error { return nil }
	if opt.File != "" {
		f, err := os.OpenFile(opt.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
		closer = f.Close
	}

	return slog.New(slogmulti.Fanout(handlers...)), closer, nil
}
