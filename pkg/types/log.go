package types

import "time"

// Level is a log severity level
type Level string

// Log levels, most to least severe
const (
	LevelFatal Level = "fatal"
	LevelError Level = "error"
	LevelWarn  Level = "warn"
	LevelInfo  Level = "info"
	LevelDebug Level = "debug"
	LevelTrace Level = "trace"
)

// Valid reports whether l is one of the supported levels
func (l Level) Valid() bool {
	switch l {
	case LevelFatal, LevelError, LevelWarn, LevelInfo, LevelDebug, LevelTrace:
		return true
	}
	return false
}

// LogEntry is an append-only log record. Entries are removed only by
// retention sweeps, never updated in place.
type LogEntry struct {
	ID             string
	Timestamp      time.Time
	Level          Level
	Service        string
	Message        string
	Metadata       map[string]any
	IndexedContent string // derived searchable string, populated on append
	ProcessID      string
	SessionID      string
	TraceID        string
}

// Validate checks log entry invariants before a write
func (e *LogEntry) Validate() error {
	if !e.Level.Valid() {
		return ErrInvalidLogLevel
	}
	if e.Service == "" {
		return ErrEmptyLogService
	}
	if e.Message == "" {
		return ErrEmptyLogMessage
	}
	return nil
}
