// Package logger provides the logging interface shared by warpq components.
// The default backend is logrus; tests use MockLogger or NopLogger.
package logger

import (
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger defines the interface for logging across all warpq components.
type Logger interface {
	// Debug logs a diagnostic message (e.g., "dispatching key").
	Debug(format string, args ...interface{})

	// Info logs an informational message (e.g., "Daemon started").
	Info(format string, args ...interface{})

	// Warning logs a warning message (e.g., "keyring unavailable, using file").
	Warning(format string, args ...interface{})

	// Error logs an error message (e.g., "Failed to start server: connection refused").
	Error(format string, args ...interface{})

	// Close releases resources held by the logger (e.g., an open log file).
	// Safe to call multiple times. Returns nil for loggers without resources.
	Close() error
}

// LogrusLogger adapts a logrus entry to Logger.
type LogrusLogger struct {
	entry  *logrus.Entry
	closer io.Closer
	once   sync.Once
}

// NewLogrusLogger wraps l. Fields are attached to every message, typically
// the component name.
func NewLogrusLogger(l *logrus.Logger, fields logrus.Fields) *LogrusLogger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return &LogrusLogger{entry: logrus.NewEntry(l).WithFields(fields)}
}

// New creates a text logger writing to w. debug lowers the level to Debug.
// If w is an io.Closer it is closed by Close.
func New(w io.Writer, debug bool) *LogrusLogger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if debug {
		l.SetLevel(logrus.DebugLevel)
	}
	ll := NewLogrusLogger(l, nil)
	if c, ok := w.(io.Closer); ok {
		ll.closer = c
	}
	return ll
}

// With returns a logger sharing the backend with one more field.
func (s *LogrusLogger) With(key string, value interface{}) *LogrusLogger {
	return &LogrusLogger{entry: s.entry.WithField(key, value)}
}

// Debug logs at debug level.
func (s *LogrusLogger) Debug(format string, args ...interface{}) {
	s.entry.Debugf(format, args...)
}

// Info logs at info level.
func (s *LogrusLogger) Info(format string, args ...interface{}) {
	s.entry.Infof(format, args...)
}

// Warning logs at warning level.
func (s *LogrusLogger) Warning(format string, args ...interface{}) {
	s.entry.Warnf(format, args...)
}

// Error logs at error level.
func (s *LogrusLogger) Error(format string, args ...interface{}) {
	s.entry.Errorf(format, args...)
}

// Close closes the output if New was given a closer.
func (s *LogrusLogger) Close() error {
	var err error
	s.once.Do(func() {
		if s.closer != nil {
			err = s.closer.Close()
		}
	})
	return err
}

// NopLogger is a logger that discards all messages.
type NopLogger struct{}

// NewNopLogger creates a logger that discards all messages.
func NewNopLogger() *NopLogger {
	return &NopLogger{}
}

func (n *NopLogger) Debug(format string, args ...interface{})   {}
func (n *NopLogger) Info(format string, args ...interface{})    {}
func (n *NopLogger) Warning(format string, args ...interface{}) {}
func (n *NopLogger) Error(format string, args ...interface{})   {}
func (n *NopLogger) Close() error                               { return nil }

// Ensure implementations satisfy the Logger interface.
var (
	_ Logger = (*LogrusLogger)(nil)
	_ Logger = (*NopLogger)(nil)
)

// MockLogger implements Logger for testing purposes.
// It records all log calls for verification in tests and may be used from
// several goroutines.
type MockLogger struct {
	mu           sync.Mutex
	DebugCalls   []string
	InfoCalls    []string
	WarningCalls []string
	ErrorCalls   []string
	CloseCalled  bool
}

// NewMockLogger creates a new MockLogger for testing.
func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

func (m *MockLogger) record(dst *[]string, format string, args []interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*dst = append(*dst, fmt.Sprintf(format, args...))
}

// Debug records the formatted message.
func (m *MockLogger) Debug(format string, args ...interface{}) {
	m.record(&m.DebugCalls, format, args)
}

// Info records the formatted message.
func (m *MockLogger) Info(format string, args ...interface{}) {
	m.record(&m.InfoCalls, format, args)
}

// Warning records the formatted message.
func (m *MockLogger) Warning(format string, args ...interface{}) {
	m.record(&m.WarningCalls, format, args)
}

// Error records the formatted message.
func (m *MockLogger) Error(format string, args ...interface{}) {
	m.record(&m.ErrorCalls, format, args)
}

// Errors returns a copy of the recorded error messages.
func (m *MockLogger) Errors() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.ErrorCalls...)
}

// Close records that Close was called.
func (m *MockLogger) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalled = true
	return nil
}

var _ Logger = (*MockLogger)(nil)
