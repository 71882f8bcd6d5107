package logging

import (
	"log/slog"
	"testing"
)

func TestSubscribeReceivesPublishedEvents(t *testing.T) {
	logger := New(false)
	var events []Event
	cancel := logger.Subscribe(func(event Event) {
		events = append(events, event)
	})

	logger.Info("first", Field("key", "value"))
	logger.Warn("second")

	if len(events) != 2 {
		t.Fatalf("received %d events, want 2", len(events))
	}
	if events[0].Message != "first" || events[0].Level != slog.LevelInfo {
		t.Fatalf("events[0] = %+v", events[0])
	}
	if got := events[0].Fields["key"]; got != "value" {
		t.Fatalf("field = %v", got)
	}

	cancel()
	logger.Error("after cancel")
	if len(events) != 2 {
		t.Fatalf("subscriber fired after cancel")
	}
}

func TestDebugHiddenUnlessEnabled(t *testing.T) {
	logger := New(false)
	var events []Event
	defer logger.Subscribe(func(event Event) {
		events = append(events, event)
	})()

	logger.Debug("hidden")
	if len(events) != 0 {
		t.Fatalf("debug event published with debug disabled")
	}

	logger.SetDebugEnabled(true)
	logger.Debugf("visible %d", 7)
	if len(events) != 1 || events[0].Message != "visible 7" {
		t.Fatalf("events = %+v", events)
	}
}

func TestNilLoggerIsInert(t *testing.T) {
	var logger *Logger
	logger.Debug("x")
	logger.Info("x")
	logger.Warn("x")
	logger.Error("x")
	logger.SetDebugEnabled(true)
	if err := logger.Close(); err != nil {
		t.Fatalf("nil Close() = %v", err)
	}
}

func TestAttrsToMapSkipsEmptyKeys(t *testing.T) {
	fields := attrsToMap([]slog.Attr{
		Field("", "dropped"),
		Field("kept", 1),
	})
	if len(fields) != 1 || fields["kept"] != int64(1) {
		t.Fatalf("fields = %v", fields)
	}
	if attrsToMap(nil) != nil {
		t.Fatalf("empty attrs should map to nil")
	}
}
