package log

import (
	"testing"
)

type testLogger struct {
	entries []string
}

func (l *testLogger) Debug(_ map[string]any, msg string) { l.entries = append(l.entries, "DEBUG:"+msg) }
func (l *testLogger) Info(_ map[string]any, msg string)  { l.entries = append(l.entries, "INFO:"+msg) }
func (l *testLogger) Warn(_ map[string]any, msg string)  { l.entries = append(l.entries, "WARN:"+msg) }
func (l *testLogger) Error(_ map[string]any, msg string) { l.entries = append(l.entries, "ERROR:"+msg) }
func (l *testLogger) Fatal(_ map[string]any, msg string) {}

func TestActualZapLogger(t *testing.T) {
	// test with fields and message
	Debug(map[string]any{
		"key1": "value1",
		"key2": 42,
		"key3": true,
	}, "test debug")
	// test with just a message
	Info(nil, "test info")
	Warn(nil, "test warn")
	Error(nil, "test error")
	// Note: Fatal will stop the test, so we don't call it here.
}

func TestSetLoggerAndGlobalLogging(t *testing.T) {
	// set up test fixtures
	orig := GetLogger()
	defer func() {
		SetLogger(orig) // Restore original logger after test
	}()
	tlog := &testLogger{}
	SetLogger(tlog)

	Info(nil, "info msg")
	Error(nil, "error msg")
	Debug(nil, "debug msg")
	Warn(nil, "warn msg")

	expected := []string{
		"INFO:info msg",
		"ERROR:error msg",
		"DEBUG:debug msg",
		"WARN:warn msg",
	}
	if len(tlog.entries) != len(expected) {
		t.Fatalf("expected %d entries, got %d", len(expected), len(tlog.entries))
	}
	for i, want := range expected {
		if tlog.entries[i] != want {
			t.Errorf("entry %d: expected %q, got %q", i, want, tlog.entries[i])
		}
	}
}

func TestConfigure(t *testing.T) {
	orig := GetLogger()
	defer SetLogger(orig)

	if err := Configure("dev", "debug"); err != nil {
		t.Fatalf("Configure(dev, debug) returned error: %v", err)
	}
	if err := Configure("prod", "warn"); err != nil {
		t.Fatalf("Configure(prod, warn) returned error: %v", err)
	}
	if err := Configure("prod", "verbose"); err == nil {
		t.Fatal("expected error for invalid level, got nil")
	}
}

func TestNoopLogger(t *testing.T) {
	l := NewNoopLogger()
	l.Debug(nil, "dropped")
	l.Info(map[string]any{"k": "v"}, "dropped")
	l.Warn(nil, "dropped")
	l.Error(nil, "dropped")
	l.Fatal(nil, "dropped")
}
