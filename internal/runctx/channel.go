package runctx

import (
	"context"

	"flywheel-console/internal/logging"
)

// Helpers for goroutine loops that must unblock promptly on shutdown. The loop
// name only feeds shutdown diagnostics.

func RecvOrDone[T any](ctx context.Context, loop string, logger *logging.Logger, in <-chan T) (T, bool) {
	if logger == nil {
		panic("runctx.RecvOrDone: logger must not be nil")
	}
	select {
	case <-ctx.Done():
		logger.Debug(loop+" stopping: context canceled", logging.Field("error", ctx.Err()))
		var zero T
		return zero, false
	case v, ok := <-in:
		if !ok {
			logger.Debug(loop + " stopping: input channel closed")
		}
		return v, ok
	}
}

func SendOrDone[T any](ctx context.Context, loop string, logger *logging.Logger, out chan<- T, value T) bool {
	if logger == nil {
		panic("runctx.SendOrDone: logger must not be nil")
	}
	select {
	case <-ctx.Done():
		logger.Debug(loop+" stopping: context canceled before send", logging.Field("error", ctx.Err()))
		return false
	case out <- value:
		return true
	}
}

// TrySend is a non-blocking send. A full channel drops the value, which is the
// coalescing behavior staleness signals want.
func TrySend[T any](out chan<- T, value T) bool {
	select {
	case out <- value:
		return true
	default:
		return false
	}
}
