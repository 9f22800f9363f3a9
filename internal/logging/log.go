// Package logging provides the stream runtime's logging interface.
//
// Built on the standard library's log/slog; components obtain a
// component-scoped logger via Logger(name) rather than holding a concrete
// *slog.Logger, so that SetDefault/SetOutput can redirect output at runtime
// without every component re-fetching a handle.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
)

var defaultLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
	Level: slog.LevelInfo,
}))

// SetDefault sets the process-wide default logger.
func SetDefault(l *slog.Logger) {
	defaultLogger = l
}

// Default returns the process-wide default logger.
func Default() *slog.Logger {
	return defaultLogger
}

// New creates a text-format logger writing to w.
func New(w io.Writer, opts *slog.HandlerOptions) *slog.Logger {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// SetOutput redirects the default logger to w at info level.
func SetOutput(w io.Writer) {
	defaultLogger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// SetLevel rebuilds the default logger at the given level, writing to stderr.
func SetLevel(level slog.Level) {
	defaultLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Component is a lazily-bound, component-scoped logger: every call reads
// the current Default() logger so output redirection takes effect without
// components needing to re-fetch a handle.
type Component struct {
	name string
}

// Logger returns a component-scoped logger named name.
func Logger(name string) *Component {
	return &Component{name: name}
}

func (c *Component) Debug(msg string, args ...any) { defaultLogger.With("component", c.name).Debug(msg, args...) }
func (c *Component) Info(msg string, args ...any)  { defaultLogger.With("component", c.name).Info(msg, args...) }
func (c *Component) Warn(msg string, args ...any)  { defaultLogger.With("component", c.name).Warn(msg, args...) }
func (c *Component) Error(msg string, args ...any) { defaultLogger.With("component", c.name).Error(msg, args...) }

func (c *Component) DebugContext(ctx context.Context, msg string, args ...any) {
	defaultLogger.With("component", c.name).DebugContext(ctx, msg, args...)
}
func (c *Component) InfoContext(ctx context.Context, msg string, args ...any) {
	defaultLogger.With("component", c.name).InfoContext(ctx, msg, args...)
}
func (c *Component) WarnContext(ctx context.Context, msg string, args ...any) {
	defaultLogger.With("component", c.name).WarnContext(ctx, msg, args...)
}
func (c *Component) ErrorContext(ctx context.Context, msg string, args ...any) {
	defaultLogger.With("component", c.name).ErrorContext(ctx, msg, args...)
}

// With returns a *slog.Logger carrying this component's name plus extra attrs.
func (c *Component) With(args ...any) *slog.Logger {
	return defaultLogger.With("component", c.name).With(args...)
}
