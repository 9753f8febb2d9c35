// Package log provides the engine's logging facade.
//
// It wraps log/slog so every component logs through the same structured
// sink, and lets callers redirect or relevel output without threading a
// *slog.Logger through every constructor.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/mr-tron/base58"
)

var defaultLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

// SetDefault installs l as the package-wide logger.
func SetDefault(l *slog.Logger) {
	defaultLogger = l
	slog.SetDefault(l)
}

// SetOutput redirects the default logger to w, keeping the text handler.
func SetOutput(w io.Writer) {
	defaultLogger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// SetLevel rebuilds the default logger at the given level.
func SetLevel(level slog.Level) {
	defaultLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Logger returns a component-scoped logger. Each call reads the current
// default so output redirection and re-levelling take effect immediately,
// even for loggers captured earlier.
func Logger(component string) *Component {
	return &Component{component: component}
}

// Component is a logger bound to one subsystem name.
type Component struct {
	component string
}

func (c *Component) Debug(msg string, args ...any) { defaultLogger.With("component", c.component).Debug(msg, args...) }
func (c *Component) Info(msg string, args ...any)  { defaultLogger.With("component", c.component).Info(msg, args...) }
func (c *Component) Warn(msg string, args ...any)  { defaultLogger.With("component", c.component).Warn(msg, args...) }
func (c *Component) Error(msg string, args ...any) { defaultLogger.With("component", c.component).Error(msg, args...) }

func (c *Component) DebugContext(ctx context.Context, msg string, args ...any) {
	defaultLogger.With("component", c.component).DebugContext(ctx, msg, args...)
}
func (c *Component) InfoContext(ctx context.Context, msg string, args ...any) {
	defaultLogger.With("component", c.component).InfoContext(ctx, msg, args...)
}

// TruncateID safely shortens an identifier for log output.
func TruncateID(id string, maxLen int) string {
	if len(id) <= maxLen {
		return id
	}
	return id[:maxLen]
}

// Base58 renders an opaque byte identifier (message id, signed record)
// for log output the way libp2p-style tooling renders peer ids and CIDs,
// since the raw bytes are frequently not valid UTF-8.
func Base58(b []byte) string {
	return base58.Encode(b)
}
