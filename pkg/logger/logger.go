package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

var (
	// logger is the global logger instance
	logger *Logger
	once   sync.Once
)

// Logger wraps logrus with printf-style helpers and color support
type Logger struct {
	*logrus.Logger
	green  *color.Color
	cyan   *color.Color
	red    *color.Color
	yellow *color.Color
	bold   *color.Color
}

// New returns the process-wide logger, creating it on first use
func New() *Logger {
	once.Do(func() {
		logger = &Logger{
			Logger: logrus.New(),
			green:  color.New(color.FgGreen),
			cyan:   color.New(color.FgCyan),
			red:    color.New(color.FgRed),
			yellow: color.New(color.FgYellow),
			bold:   color.New(color.Bold),
		}

		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: "2006/01/02 15:04:05",
			FullTimestamp:   true,
			ForceColors:     true,
			DisableSorting:  true,
		})

		// DEBUG=true wins over anything set later through SetLevelName
		if os.Getenv("DEBUG") == "true" {
			logger.SetLevel(logrus.DebugLevel)
			logger.Info("Debug logging enabled")
		} else {
			logger.SetLevel(logrus.InfoLevel)
		}
	})
	return logger
}

// SetLevelName sets the level from a config string such as "debug" or "warn".
// Unknown names leave the level untouched.
func (l *Logger) SetLevelName(name string) {
	if os.Getenv("DEBUG") == "true" || strings.TrimSpace(name) == "" {
		return
	}
	level, err := logrus.ParseLevel(name)
	if err != nil {
		l.Warn("Unknown log level %q, keeping %s", name, l.GetLevel())
		return
	}
	l.SetLevel(level)
}

// Discard silences the logger, used by tests that exercise noisy paths
func (l *Logger) Discard() {
	l.SetOutput(io.Discard)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.Logger.Debug(fmt.Sprintf(format, args...))
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.Logger.Info(fmt.Sprintf(format, args...))
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.Logger.Warn(fmt.Sprintf(format, args...))
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.Logger.Error(fmt.Sprintf(format, args...))
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(format string, args ...interface{}) {
	l.Logger.Fatal(fmt.Sprintf(format, args...))
}

// Success logs an info message rendered in green
func (l *Logger) Success(format string, args ...interface{}) {
	l.Logger.Info(l.green.Sprintf(format, args...))
}

// Highlight returns s rendered bold cyan, for paths and URLs inside log lines
func (l *Logger) Highlight(s string) string {
	return l.bold.Sprint(l.cyan.Sprint(s))
}

// Failure returns s rendered in red
func (l *Logger) Failure(s string) string {
	return l.red.Sprint(s)
}

// Notice returns s rendered in yellow
func (l *Logger) Notice(s string) string {
	return l.yellow.Sprint(s)
}

// IsDebugEnabled returns whether debug logging is enabled
func (l *Logger) IsDebugEnabled() bool {
	return l.GetLevel() == logrus.DebugLevel
}
