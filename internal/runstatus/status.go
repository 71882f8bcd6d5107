package runstatus

import (
	"strings"

	"flywheel-console/internal/realtime"
)

// Operator-facing status labels for the connection indicator.
const (
	Connected        = "Connected"
	Connecting       = "Connecting"
	Reconnecting     = "Reconnecting"
	Disconnected     = "Disconnected"
	DisconnectedAuth = "Disconnected (auth)"
	GaveUp           = "Disconnected (gave up)"
)

// FromSnapshot maps the realtime connection snapshot to a status label.
func FromSnapshot(snapshot realtime.Snapshot) string {
	switch snapshot.State {
	case realtime.StateConnected:
		return Connected
	case realtime.StateConnecting:
		if snapshot.Attempt > 0 {
			return Reconnecting
		}
		return Connecting
	case realtime.StateErrored:
		return DisconnectedAuth
	default:
		if snapshot.GaveUp {
			return GaveUp
		}
		return Disconnected
	}
}

func Key(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}
