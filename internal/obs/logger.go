// Package obs provides the engine's structured logging: a thin layered
// wrapper over log/slog used by internal/restore, pkg/engine, and
// cmd/driftd to emit events (tx_id, offset, bytes) instead of ad hoc
// fmt.Printf calls.
//
// Grounded on jinterlante1206-AleutianLocal/pkg/logging/logger.go's
// layered-handler Logger (stderr by default, optional JSON file sink).
// The enterprise LogExporter extension point there has no analog here —
// this engine has no cloud-export requirement — so it is dropped rather
// than carried as dead surface; see DESIGN.md.
package obs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Level mirrors slog's severity levels under the engine's own name, so
// callers don't need to import log/slog directly.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) toSlog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config configures a Logger. The zero Config logs Debug+ (LevelDebug is
// the zero Level) to stderr as text.
type Config struct {
	Level   Level
	LogDir  string // non-empty enables an additional JSON file sink
	Service string
	JSON    bool
	Quiet   bool // disable the stderr sink entirely
}

// Logger wraps an slog.Logger with an optional file sink and owns that
// file's lifecycle.
type Logger struct {
	slog *slog.Logger
	file *os.File
	mu   sync.Mutex
}

// New builds a Logger per config.
func New(config Config) *Logger {
	var handlers []slog.Handler
	opts := &slog.HandlerOptions{Level: config.Level.toSlog()}

	if !config.Quiet {
		if config.JSON {
			handlers = append(handlers, slog.NewJSONHandler(os.Stderr, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(os.Stderr, opts))
		}
	}

	lg := &Logger{}

	if config.LogDir != "" {
		if err := os.MkdirAll(config.LogDir, 0o750); err == nil {
			service := config.Service
			if service == "" {
				service = "driftd"
			}
			name := fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02"))
			if f, err := os.OpenFile(filepath.Join(config.LogDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640); err == nil {
				lg.file = f
				handlers = append(handlers, slog.NewJSONHandler(f, opts))
			}
		}
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		handler = slog.NewJSONHandler(discardWriter{}, opts)
	case 1:
		handler = handlers[0]
	default:
		handler = &fanoutHandler{handlers: handlers}
	}
	if config.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("service", config.Service)})
	}

	lg.slog = slog.New(handler)
	return lg
}

// Default returns a stderr-only, Info-level logger named "driftd".
func Default() *Logger {
	return New(Config{Level: LevelInfo, Service: "driftd"})
}

func (l *Logger) Debug(msg string, args ...any) { l.slog.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.slog.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.slog.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.slog.Error(msg, args...) }

// With returns a child logger carrying additional attributes on every
// subsequent call.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slog: l.slog.With(args...), file: l.file}
}

// Close syncs and closes the file sink, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	_ = l.file.Sync()
	return l.file.Close()
}

// discardWriter backs the handler used when both the stderr sink and
// the file sink are disabled.
type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// fanoutHandler sends every record to all of its handlers, enabling
// simultaneous stderr text output and JSON file output.
type fanoutHandler struct {
	handlers []slog.Handler
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, hd := range h.handlers {
		if hd.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, hd := range h.handlers {
		if !hd.Enabled(ctx, r.Level) {
			continue
		}
		if err := hd.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(h.handlers))
	for i, hd := range h.handlers {
		out[i] = hd.WithAttrs(attrs)
	}
	return &fanoutHandler{handlers: out}
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(h.handlers))
	for i, hd := range h.handlers {
		out[i] = hd.WithGroup(name)
	}
	return &fanoutHandler{handlers: out}
}
