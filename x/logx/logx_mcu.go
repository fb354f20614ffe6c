//go:build rp2040 || rp2350

package logx

import (
	"io"

	"signalcode-go/x/conv"
)

var (
	minLevel = lvlInfo
	out      io.Writer // nil: builtin println
)

// Configure sets the minimum level and, when w is non-nil, redirects output
// (typically to the console ring). json is ignored on MCU builds.
func Configure(w io.Writer, lvl string, json bool) {
	minLevel = parseLevel(lvl)
	out = w
}

type Logger struct {
	tag   string
	attrs []any
}

func New(tag string) *Logger { return &Logger{tag: tag} }

func (l *Logger) With(kv ...any) *Logger {
	attrs := make([]any, 0, len(l.attrs)+len(kv))
	attrs = append(attrs, l.attrs...)
	return &Logger{tag: l.tag, attrs: append(attrs, kv...)}
}

func (l *Logger) Debug(msg string, kv ...any) { l.emit(lvlDebug, "D", msg, kv) }
func (l *Logger) Info(msg string, kv ...any)  { l.emit(lvlInfo, "I", msg, kv) }
func (l *Logger) Warn(msg string, kv ...any)  { l.emit(lvlWarn, "W", msg, kv) }
func (l *Logger) Error(msg string, kv ...any) { l.emit(lvlError, "E", msg, kv) }

func (l *Logger) emit(lv level, mark, msg string, kv []any) {
	if lv < minLevel {
		return
	}
	b := make([]byte, 0, 64)
	b = append(b, '[')
	b = append(b, l.tag...)
	b = append(b, "] "...)
	b = append(b, mark...)
	b = append(b, ' ')
	b = append(b, msg...)
	b = appendKV(b, l.attrs)
	b = appendKV(b, kv)
	if out != nil {
		b = append(b, '\n')
		_, _ = out.Write(b)
		return
	}
	println(string(b))
}

func appendKV(b []byte, kv []any) []byte {
	for i := 0; i+1 < len(kv); i += 2 {
		b = append(b, ' ')
		if k, ok := kv[i].(string); ok {
			b = append(b, k...)
		}
		b = append(b, '=')
		b = appendVal(b, kv[i+1])
	}
	return b
}

func appendVal(b []byte, v any) []byte {
	switch x := v.(type) {
	case string:
		return append(b, x...)
	case int:
		return conv.AppendInt(b, int64(x))
	case int64:
		return conv.AppendInt(b, x)
	case uint8:
		return conv.AppendUint(b, uint64(x))
	case uint16:
		return conv.AppendHex(b, uint64(x), 2)
	case uint32:
		return conv.AppendUint(b, uint64(x))
	case bool:
		if x {
			return append(b, "true"...)
		}
		return append(b, "false"...)
	case error:
		return append(b, x.Error()...)
	case interface{ String() string }:
		return append(b, x.String()...)
	default:
		return append(b, '?')
	}
}
