package runctx

import (
	"context"
	"testing"

	"flywheel-console/internal/logging"
)

func TestRecvOrDone(t *testing.T) {
	logger := logging.New(false)
	in := make(chan int, 1)
	in <- 42

	got, ok := RecvOrDone(context.Background(), "test loop", logger, in)
	if !ok || got != 42 {
		t.Fatalf("RecvOrDone() = (%d, %v), want (42, true)", got, ok)
	}

	close(in)
	got, ok = RecvOrDone(context.Background(), "test loop", logger, in)
	if ok || got != 0 {
		t.Fatalf("RecvOrDone(closed) = (%d, %v), want (0, false)", got, ok)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, ok := RecvOrDone(ctx, "test loop", logger, make(chan int)); ok {
		t.Fatalf("RecvOrDone(canceled) reported success")
	}
}

func TestSendOrDone(t *testing.T) {
	logger := logging.New(false)
	out := make(chan string, 1)

	if !SendOrDone(context.Background(), "test loop", logger, out, "payload") {
		t.Fatalf("SendOrDone() = false with buffered capacity")
	}
	if got := <-out; got != "payload" {
		t.Fatalf("received %q", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if SendOrDone(ctx, "test loop", logger, make(chan string), "payload") {
		t.Fatalf("SendOrDone(canceled) = true on full channel")
	}
}

func TestTrySendCoalesces(t *testing.T) {
	out := make(chan int, 1)

	if !TrySend(out, 1) {
		t.Fatalf("TrySend() = false with free capacity")
	}
	if TrySend(out, 2) {
		t.Fatalf("TrySend() = true on full channel")
	}
	if got := <-out; got != 1 {
		t.Fatalf("received %d, want the first queued value", got)
	}
	if !TrySend(out, 3) {
		t.Fatalf("TrySend() = false after drain")
	}
}
