// internal/logging/levels.go
package logging

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// TraceLevel sits below Debug (-1) and is meant for raw model requests and
// responses. It is almost always filtered.
const TraceLevel = zapcore.Level(-2)

// LevelFromString parses a level name, case-insensitively, supporting
// "trace" and the "warning" spelling.
func LevelFromString(level string) (zapcore.Level, error) {
	switch l := strings.ToLower(strings.TrimSpace(level)); l {
	case "trace":
		return TraceLevel, nil
	case "warning":
		return zapcore.WarnLevel, nil
	default:
		var parsed zapcore.Level
		if err := parsed.UnmarshalText([]byte(l)); err != nil {
			return zapcore.InfoLevel, err
		}
		return parsed, nil
	}
}
