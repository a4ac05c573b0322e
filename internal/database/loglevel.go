package database

import (
	"fmt"
	"strings"
)

// LogLevel is the database log verbosity.
type LogLevel int

const (
	// LogLevelNone logs nothing.
	LogLevelNone LogLevel = iota
	// LogLevelBasic logs connections and migrations.
	LogLevelBasic
	// LogLevelFull additionally logs every statement.
	LogLevelFull
)

// String returns the lowercase name of the level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelNone:
		return "none"
	case LogLevelBasic:
		return "basic"
	case LogLevelFull:
		return "full"
	default:
		return fmt.Sprintf("LogLevel(%d)", int(l))
	}
}

// IsValid checks if the level is one of the allowed values.
func (l LogLevel) IsValid() bool {
	return l >= LogLevelNone && l <= LogLevelFull
}

// ParseLogLevel converts "none", "basic" or "full" to a LogLevel.
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return LogLevelNone, nil
	case "basic":
		return LogLevelBasic, nil
	case "full":
		return LogLevelFull, nil
	default:
		return LogLevelNone, fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, s)
	}
}
