package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
)

// NewNop returns a logger that discards every record.
func NewNop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// NewSplit builds a logger that writes to console and, when file is non-nil,
// to file. Both start at level; the returned LevelVar controls the console
// side only, so callers can quiet the terminal while a progress bar is drawn
// and keep full detail in the log file.
func NewSplit(console, file io.Writer, level, format string) (*slog.Logger, *slog.LevelVar, error) {
	consoleLevel := new(slog.LevelVar)
	consoleLevel.Set(parseLevel(level))
	consoleHandler, err := newHandler(console, consoleLevel, format, false)
	if err != nil {
		return nil, nil, err
	}
	if file == nil {
		return slog.New(consoleHandler), consoleLevel, nil
	}
	fileLevel := new(slog.LevelVar)
	fileLevel.Set(parseLevel(level))
	fileHandler, err := newHandler(file, fileLevel, format, false)
	if err != nil {
		return nil, nil, err
	}
	return slog.New(teeHandler{consoleHandler, fileHandler}), consoleLevel, nil
}

// teeHandler hands each record to every member that accepts its level.
type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, h := range t {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}
