package logger

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func newBufferedLogger(debug bool) (*LogrusLogger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return New(buf, debug), buf
}

func TestLogrusLogger_Levels(t *testing.T) {
	tests := []struct {
		name  string
		log   func(l Logger)
		level string
		msg   string
	}{
		{"info", func(l Logger) { l.Info("test message %d", 123) }, "level=info", "test message 123"},
		{"warning", func(l Logger) { l.Warning("warning message %s", "test") }, "level=warning", "warning message test"},
		{"error", func(l Logger) { l.Error("error message: %v", "failed") }, "level=error", "error message: failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, buf := newBufferedLogger(false)
			tt.log(l)
			out := buf.String()
			if !strings.Contains(out, tt.level) {
				t.Errorf("expected %q in output, got: %s", tt.level, out)
			}
			if !strings.Contains(out, tt.msg) {
				t.Errorf("expected message content, got: %s", out)
			}
		})
	}
}

func TestLogrusLogger_DebugRequiresDebugLevel(t *testing.T) {
	l, buf := newBufferedLogger(false)
	l.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected no output at info level, got: %s", buf.String())
	}

	l, buf = newBufferedLogger(true)
	l.Debug("shown %s", "now")
	if !strings.Contains(buf.String(), "shown now") {
		t.Fatalf("expected debug output, got: %s", buf.String())
	}
}

func TestLogrusLogger_Fields(t *testing.T) {
	buf := &bytes.Buffer{}
	base := logrus.New()
	base.SetOutput(buf)
	l := NewLogrusLogger(base, logrus.Fields{"component": "scheduler"}).With("key", "a")
	l.Info("dispatch")
	out := buf.String()
	if !strings.Contains(out, "component=scheduler") || !strings.Contains(out, "key=a") {
		t.Fatalf("expected fields in output, got: %s", out)
	}
}

type closeRecorder struct {
	bytes.Buffer
	closed int
}

func (c *closeRecorder) Close() error {
	c.closed++
	return nil
}

func TestLogrusLogger_CloseOnce(t *testing.T) {
	w := &closeRecorder{}
	l := New(w, false)
	if err := l.Close(); err != nil {
		t.Fatalf("Close() returned error: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("second Close() returned error: %v", err)
	}
	if w.closed != 1 {
		t.Fatalf("expected writer closed once, got %d", w.closed)
	}
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Debug("x")
	l.Info("x")
	l.Warning("x")
	l.Error("x")
	if err := l.Close(); err != nil {
		t.Errorf("expected nil error, got: %v", err)
	}
}

func TestMockLogger_RecordsCalls(t *testing.T) {
	m := NewMockLogger()
	m.Debug("debug %d", 0)
	m.Info("info %d", 1)
	m.Warning("warning %d", 2)
	m.Error("error %d", 3)

	if len(m.DebugCalls) != 1 || m.DebugCalls[0] != "debug 0" {
		t.Errorf("unexpected debug calls: %v", m.DebugCalls)
	}
	if len(m.InfoCalls) != 1 || m.InfoCalls[0] != "info 1" {
		t.Errorf("unexpected info calls: %v", m.InfoCalls)
	}
	if len(m.WarningCalls) != 1 || m.WarningCalls[0] != "warning 2" {
		t.Errorf("unexpected warning calls: %v", m.WarningCalls)
	}
	if got := m.Errors(); len(got) != 1 || got[0] != "error 3" {
		t.Errorf("unexpected error calls: %v", got)
	}
	_ = m.Close()
	if !m.CloseCalled {
		t.Error("expected CloseCalled to be true")
	}
}

func TestMultiLogger_BroadcastsToAll(t *testing.T) {
	m1 := NewMockLogger()
	m2 := NewMockLogger()
	multi := NewMultiLogger(m1, m2)

	multi.Debug("d")
	multi.Info("i")
	multi.Warning("w")
	multi.Error("e")

	for i, m := range []*MockLogger{m1, m2} {
		if len(m.DebugCalls) != 1 || len(m.InfoCalls) != 1 || len(m.WarningCalls) != 1 || len(m.ErrorCalls) != 1 {
			t.Errorf("logger %d did not receive every message", i)
		}
	}
}

// FailingCloseLogger is a logger that returns an error on Close().
type FailingCloseLogger struct {
	NopLogger
	closeErr error
}

func (f *FailingCloseLogger) Close() error {
	return f.closeErr
}

func TestMultiLogger_Close_ReturnsFirstError(t *testing.T) {
	err1 := errors.New("logger1 failed to close")
	err2 := errors.New("logger2 failed to close")
	mock := NewMockLogger()

	multi := NewMultiLogger(&FailingCloseLogger{closeErr: err1}, mock, &FailingCloseLogger{closeErr: err2})

	err := multi.Close()
	if !errors.Is(err, err1) {
		t.Errorf("expected first error %v, got %v", err1, err)
	}
	if !mock.CloseCalled {
		t.Error("expected mock logger to be closed even after first error")
	}
}

func TestMultiLogger_EmptyLoggers(t *testing.T) {
	multi := NewMultiLogger()
	multi.Info("nothing")
	if err := multi.Close(); err != nil {
		t.Errorf("expected nil error, got: %v", err)
	}
}
