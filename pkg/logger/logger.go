// Package logger provides the logging interface used across domain-mon.
// Messages are written through logrus so every line carries a level prefix
// and goes to stderr, leaving stdout free for the rendered report.
package logger

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger wraps a logrus logger behind the small printf-style API the rest of
// the application uses.
type Logger struct {
	log *logrus.Logger
}

// prefixFormatter renders entries as "LEVEL: message".
type prefixFormatter struct{}

// Format implements logrus.Formatter
func (prefixFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer
	level := strings.ToUpper(entry.Level.String())
	if entry.Level == logrus.WarnLevel {
		level = "WARN"
	}
	b.WriteString(level)
	b.WriteString(": ")
	b.WriteString(entry.Message)
	for k, v := range entry.Data {
		fmt.Fprintf(&b, " %s=%v", k, v)
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

// New creates a new logger instance writing to stderr. Debug output is
// enabled when the DEBUG environment variable is "true".
func New() *Logger {
	return NewWithWriter(os.Stderr)
}

// NewWithWriter creates a logger writing to w
func NewWithWriter(w io.Writer) *Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(prefixFormatter{})
	l.SetLevel(logrus.InfoLevel)
	if strings.ToLower(os.Getenv("DEBUG")) == "true" {
		l.SetLevel(logrus.DebugLevel)
	}
	return &Logger{log: l}
}

// Debugf logs debug messages when debug is enabled
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log.Debugf(format, args...)
}

// Infof logs informational messages
func (l *Logger) Infof(format string, args ...interface{}) {
	l.log.Infof(format, args...)
}

// Warnf logs warning messages
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log.Warnf(format, args...)
}

// Errorf logs error messages
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log.Errorf(format, args...)
}

// Fatalf logs fatal messages and exits the program with status 2
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.log.Logf(logrus.FatalLevel, format, args...)
	l.log.Exit(2)
}

// SetDebug enables or disables debug logging
func (l *Logger) SetDebug(enabled bool) {
	if enabled {
		l.log.SetLevel(logrus.DebugLevel)
		return
	}
	l.log.SetLevel(logrus.InfoLevel)
}

// DebugEnabled reports whether debug messages are written
func (l *Logger) DebugEnabled() bool {
	return l.log.IsLevelEnabled(logrus.DebugLevel)
}

// SetOutput redirects all log output to w
func (l *Logger) SetOutput(w io.Writer) {
	l.log.SetOutput(w)
}

// WithField returns a logger that appends key=value to every message
func (l *Logger) WithField(key string, value interface{}) *Entry {
	return &Entry{entry: l.log.WithField(key, value)}
}

// Entry is a logger carrying structured fields
type Entry struct {
	entry *logrus.Entry
}

// Infof logs informational messages with the entry's fields
func (e *Entry) Infof(format string, args ...interface{}) {
	e.entry.Infof(format, args...)
}

// Warnf logs warning messages with the entry's fields
func (e *Entry) Warnf(format string, args ...interface{}) {
	e.entry.Warnf(format, args...)
}

// Debugf logs debug messages with the entry's fields
func (e *Entry) Debugf(format string, args ...interface{}) {
	e.entry.Debugf(format, args...)
}
