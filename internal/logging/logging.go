// Package logging sets up the process logger: text on stderr and, when a log
// file is configured, JSON records in a rotated file.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects log outputs.
type Config struct {
	// File is the rotated JSON log; empty disables file logging.
	File  string
	Debug bool

	// Console defaults to os.Stderr.
	Console io.Writer
}

// multiHandler dispatches log records to multiple handlers based on level.
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, sub := range h.handlers {
		if sub.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, sub := range h.handlers {
		if !sub.Enabled(ctx, r.Level) {
			continue
		}
		if err := sub.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := &multiHandler{handlers: make([]slog.Handler, len(h.handlers))}
	for i, sub := range h.handlers {
		out.handlers[i] = sub.WithAttrs(attrs)
	}
	return out
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	out := &multiHandler{handlers: make([]slog.Handler, len(h.handlers))}
	for i, sub := range h.handlers {
		out.handlers[i] = sub.WithGroup(name)
	}
	return out
}

// Setup builds the logger described by cfg and installs it as the slog
// default. The returned cleanup closes the log file.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	console := cfg.Console
	if console == nil {
		console = os.Stderr
	}
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}

	handlers := []slog.Handler{
		slog.NewTextHandler(console, &slog.HandlerOptions{Level: level}),
	}
	cleanup := func() {}

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, nil, err
		}
		// lumberjack handles log rotation
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    10, // MB
			MaxBackups: 3,
			LocalTime:  true,
		}
		handlers = append(handlers, slog.NewJSONHandler(lj, &slog.HandlerOptions{
			Level:     slog.LevelDebug,
			AddSource: true,
		}))
		cleanup = func() {
			if err := lj.Close(); err != nil {
				slog.Error("Failed to close log file", "error", err)
			}
		}
	}

	logger := slog.New(&multiHandler{handlers: handlers})
	slog.SetDefault(logger)
	return logger, cleanup, nil
}
