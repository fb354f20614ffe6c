//go:build !rp2040 && !rp2350

package logx

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	mu       sync.RWMutex
	levelVar = new(slog.LevelVar)
	base     = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar}))
)

// Configure replaces the process-wide handler. json selects JSON records.
func Configure(w io.Writer, lvl string, json bool) {
	levelVar.Set(toSlog(parseLevel(lvl)))
	opts := &slog.HandlerOptions{Level: levelVar}
	var h slog.Handler
	if json {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	mu.Lock()
	base = slog.New(h)
	mu.Unlock()
}

func toSlog(l level) slog.Level {
	switch l {
	case lvlDebug:
		return slog.LevelDebug
	case lvlWarn:
		return slog.LevelWarn
	case lvlError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger tags every record with its component.
type Logger struct {
	tag   string
	attrs []any
}

func New(tag string) *Logger { return &Logger{tag: tag} }

// With returns a child logger carrying extra key/value pairs.
func (l *Logger) With(kv ...any) *Logger {
	attrs := make([]any, 0, len(l.attrs)+len(kv))
	attrs = append(attrs, l.attrs...)
	return &Logger{tag: l.tag, attrs: append(attrs, kv...)}
}

func (l *Logger) slog() *slog.Logger {
	mu.RLock()
	b := base
	mu.RUnlock()
	return b.With("component", l.tag).With(l.attrs...)
}

func (l *Logger) Debug(msg string, kv ...any) { l.slog().Debug(msg, kv...) }
func (l *Logger) Info(msg string, kv ...any)  { l.slog().Info(msg, kv...) }
func (l *Logger) Warn(msg string, kv ...any)  { l.slog().Warn(msg, kv...) }
func (l *Logger) Error(msg string, kv ...any) { l.slog().Error(msg, kv...) }
