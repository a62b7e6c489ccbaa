// Package logging provides level-gated logging for the UDI runtime.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"sync"

	"github.com/petermattis/goid"
)

// Logger wraps stdlib log with level support and a reentrant write lock.
//
// The runtime's signal dispatcher and its event publisher can both log from
// deep call chains that occasionally loop back into the logger itself (for
// example, reporting a write failure encountered while logging a prior
// message). A plain sync.Mutex would deadlock the owning goroutine in that
// case, so the lock tracks its holder's goroutine ID and allows reentry.
type Logger struct {
	logger *log.Logger
	out    io.Writer
	level  LogLevel
	mu     reentrantMutex
}

var (
	defaultLogger *Logger
	mu            sync.RWMutex
)

// LogLevel represents the available log levels.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Config holds logging configuration.
type Config struct {
	Level  LogLevel
	Output io.Writer
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	}
}

// NewLogger creates a new logger.
func NewLogger(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	output := config.Output
	if output == nil {
		output = os.Stderr
	}
	return &Logger{
		logger: log.New(output, "", log.LstdFlags),
		out:    output,
		level:  config.Level,
	}
}

// Default returns the default logger, creating it if necessary.
func Default() *Logger {
	mu.RLock()
	if defaultLogger != nil {
		defer mu.RUnlock()
		return defaultLogger
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewLogger(nil)
	}
	return defaultLogger
}

// SetDefault sets the default logger.
func SetDefault(logger *Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = logger
}

// formatArgs converts key-value pairs to a string.
func formatArgs(args []any) string {
	if len(args) == 0 {
		return ""
	}
	var result string
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			if result != "" {
				result += " "
			}
			result += fmt.Sprintf("%v=%v", args[i], args[i+1])
		}
	}
	if result != "" {
		return " " + result
	}
	return ""
}

func (l *Logger) log(level LogLevel, prefix, msg string, args ...any) {
	if level < l.level {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	// A fresh log.Logger per write: a log.Logger holds its own non-reentrant
	// mutex across the underlying Write, so a nested call from inside that
	// Write would block on it.
	log.New(l.out, l.logger.Prefix(), l.logger.Flags()).Printf("%s %s%s", prefix, msg, formatArgs(args))
}

func (l *Logger) Debug(msg string, args ...any) {
	l.log(LevelDebug, "[DEBUG]", msg, args...)
}

func (l *Logger) Info(msg string, args ...any) {
	l.log(LevelInfo, "[INFO]", msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.log(LevelWarn, "[WARN]", msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	l.log(LevelError, "[ERROR]", msg, args...)
}

// Printf-style logging.
func (l *Logger) Debugf(format string, args ...any) {
	l.log(LevelDebug, "[DEBUG]", fmt.Sprintf(format, args...))
}

func (l *Logger) Infof(format string, args ...any) {
	l.log(LevelInfo, "[INFO]", fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...any) {
	l.log(LevelWarn, "[WARN]", fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...any) {
	l.log(LevelError, "[ERROR]", fmt.Sprintf(format, args...))
}

// Printf for compatibility.
func (l *Logger) Printf(format string, args ...any) {
	l.Infof(format, args...)
}

// Global convenience functions.
func Debug(msg string, args ...any) {
	Default().Debug(msg, args...)
}

func Info(msg string, args ...any) {
	Default().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	Default().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	Default().Error(msg, args...)
}

// reentrantMutex is a mutex that the same goroutine may lock more than
// once without blocking on itself. It is not fair and is not meant for
// general use outside this package: it exists only so the logger can be
// called safely from within its own write path.
type reentrantMutex struct {
	mu    sync.Mutex
	owner int64
	count int
}

func (m *reentrantMutex) Lock() {
	gid := goid.Get()
	m.mu.Lock()
	if m.count > 0 && m.owner == gid {
		m.count++
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.acquire(gid)
}

func (m *reentrantMutex) acquire(gid int64) {
	for {
		m.mu.Lock()
		if m.count == 0 {
			m.owner = gid
			m.count = 1
			m.mu.Unlock()
			return
		}
		if m.owner == gid {
			m.count++
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()
		runtime.Gosched()
	}
}

func (m *reentrantMutex) Unlock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.count == 0 || m.owner != goid.Get() {
		panic("logging: Unlock of unlocked or foreign reentrantMutex")
	}
	m.count--
}
