package logging

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// Level is a log severity level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a level name to its Level. Unknown names fall back to
// info.
func ParseLevel(name string) Level {
	switch name {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger receives leveled lines from the pipeline, caches and indexes.
// Implementations must be safe for concurrent use.
type Logger interface {
	Debug(message string, details map[string]interface{})
	Info(message string, details map[string]interface{})
	Warn(message string, details map[string]interface{})
	Error(message string, details map[string]interface{})
}

// WriterLogger writes leveled log lines to an io.Writer.
type WriterLogger struct {
	mu    sync.Mutex
	w     io.Writer
	level Level
}

// New creates a logger that writes entries at or above level to w.
func New(w io.Writer, level Level) *WriterLogger {
	return &WriterLogger{w: w, level: level}
}

func (l *WriterLogger) log(level Level, message string, details map[string]interface{}) {
	if l == nil || level < l.level {
		return
	}

	line := fmt.Sprintf("[%s] %s: %s", time.Now().Format("2006-01-02 15:04:05.000"), level, message)

	// Sort keys so lines are stable across runs.
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		line += fmt.Sprintf(" %s=%v", k, details[k])
	}
	line += "\n"

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = io.WriteString(l.w, line)
}

func (l *WriterLogger) Debug(message string, details map[string]interface{}) {
	l.log(LevelDebug, message, details)
}

func (l *WriterLogger) Info(message string, details map[string]interface{}) {
	l.log(LevelInfo, message, details)
}

func (l *WriterLogger) Warn(message string, details map[string]interface{}) {
	l.log(LevelWarn, message, details)
}

func (l *WriterLogger) Error(message string, details map[string]interface{}) {
	l.log(LevelError, message, details)
}

type nopLogger struct{}

func (nopLogger) Debug(string, map[string]interface{}) {}
func (nopLogger) Info(string, map[string]interface{})  {}
func (nopLogger) Warn(string, map[string]interface{})  {}
func (nopLogger) Error(string, map[string]interface{}) {}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return nopLogger{}
}
