// Package logger provides leveled logging with support for debug, info, warn, and error levels.
// Output is either plain text lines tagged with the level and caller, or one JSON object per line.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Level represents a logging level
type Level int

const (
	// DebugLevel logs are typically voluminous, and are usually disabled in production.
	DebugLevel Level = iota
	// InfoLevel is the default logging priority.
	InfoLevel
	// WarnLevel logs are more important than Info, but don't need individual human review.
	WarnLevel
	// ErrorLevel logs are high-priority. If an application is running smoothly, it shouldn't generate any error-level logs.
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	default:
		return "ERROR"
	}
}

// ParseLevel maps a config string to a Level, falling back to InfoLevel.
func ParseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Logger provides leveled logging
type Logger struct {
	mu    sync.Mutex
	level Level
	json  bool
	out   io.Writer
}

type jsonLine struct {
	Time   string `json:"time"`
	Level  string `json:"level"`
	Caller string `json:"caller,omitempty"`
	Msg    string `json:"msg"`
}

var defaultLogger *Logger

// Init initializes the default logger with the specified level and format
func Init(level string, format string) {
	InitWriter(level, format, os.Stderr)
}

// InitWriter is Init with an explicit destination.
func InitWriter(level string, format string, out io.Writer) {
	defaultLogger = &Logger{
		level: ParseLevel(level),
		json:  strings.ToLower(format) == "json",
		out:   out,
	}
}

func (l *Logger) write(skip int, lvl Level, msg string) {
	caller := ""
	if _, file, line, ok := runtime.Caller(skip); ok {
		caller = fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.json {
		b, err := json.Marshal(jsonLine{
			Time:   now.UTC().Format(time.RFC3339Nano),
			Level:  strings.ToLower(lvl.String()),
			Caller: caller,
			Msg:    msg,
		})
		if err != nil {
			return
		}
		_, _ = l.out.Write(append(b, '\n'))
		return
	}
	_, _ = fmt.Fprintf(l.out, "%s %s: [%s] %s\n", now.Format("2006/01/02 15:04:05.000000"), caller, lvl, msg)
}

func logf(lvl Level, format string, args ...interface{}) {
	if defaultLogger == nil || defaultLogger.level > lvl {
		return
	}
	defaultLogger.write(3, lvl, fmt.Sprintf(format, args...))
}

// Debug logs a message at DebugLevel
func Debug(format string, args ...interface{}) {
	logf(DebugLevel, format, args...)
}

// Info logs a message at InfoLevel
func Info(format string, args ...interface{}) {
	logf(InfoLevel, format, args...)
}

// Warn logs a message at WarnLevel
func Warn(format string, args ...interface{}) {
	logf(WarnLevel, format, args...)
}

// Error logs a message at ErrorLevel
func Error(format string, args ...interface{}) {
	logf(ErrorLevel, format, args...)
}

// Fatal logs a message at ErrorLevel and exits
func Fatal(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if defaultLogger != nil {
		defaultLogger.write(2, ErrorLevel, "FATAL "+msg)
	} else {
		fmt.Fprintln(os.Stderr, "[FATAL] "+msg)
	}
	os.Exit(1)
}
