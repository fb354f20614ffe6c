// Package logx is the levelled logger shared by every service. Host builds
// emit structured records through log/slog; MCU builds print tagged lines.
package logx

import "strings"

// Level strings accepted by Configure.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

type level int8

const (
	lvlDebug level = iota - 1
	lvlInfo
	lvlWarn
	lvlError
)

// parseLevel is case-insensitive; anything unknown is INFO.
func parseLevel(s string) level {
	switch strings.ToUpper(s) {
	case LevelDebug:
		return lvlDebug
	case LevelWarn:
		return lvlWarn
	case LevelError:
		return lvlError
	default:
		return lvlInfo
	}
}
