// internal/logger/logger.go
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu   sync.RWMutex
	base = newLogger(os.Stderr, "console")
)

func newLogger(w io.Writer, format string) zerolog.Logger {
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(zerolog.InfoLevel)
}

// Init initializes the logger with the default console output
func Init() {
	zerolog.TimeFieldFormat = time.RFC3339
}

// Configure sets the output format ("console" or "json") and level in one step
func Configure(w io.Writer, format, level string) {
	mu.Lock()
	base = newLogger(w, strings.ToLower(format))
	mu.Unlock()
	SetLevel(level)
}

// SetLevel sets the log level
func SetLevel(levelStr string) {
	mu.Lock()
	defer mu.Unlock()

	var level zerolog.Level
	switch strings.ToLower(levelStr) {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn", "warning":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	base = base.Level(level)
}

// L returns the underlying structured logger
func L() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()

	l := base
	return &l
}

// Debug logs a debug message
func Debug(format string, v ...interface{}) {
	L().Debug().Msg(fmt.Sprintf(format, v...))
}

// Info logs an info message
func Info(format string, v ...interface{}) {
	L().Info().Msg(fmt.Sprintf(format, v...))
}

// Warn logs a warning message
func Warn(format string, v ...interface{}) {
	L().Warn().Msg(fmt.Sprintf(format, v...))
}

// Error logs an error message
func Error(format string, v ...interface{}) {
	L().Error().Msg(fmt.Sprintf(format, v...))
}
