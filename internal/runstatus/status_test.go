package runstatus

import (
	"testing"

	"flywheel-console/internal/realtime"
)

func TestFromSnapshot(t *testing.T) {
	cases := []struct {
		name     string
		snapshot realtime.Snapshot
		want     string
	}{
		{"connected", realtime.Snapshot{State: realtime.StateConnected}, Connected},
		{"first connect", realtime.Snapshot{State: realtime.StateConnecting}, Connecting},
		{"retrying", realtime.Snapshot{State: realtime.StateConnecting, Attempt: 2}, Reconnecting},
		{"auth rejected", realtime.Snapshot{State: realtime.StateErrored}, DisconnectedAuth},
		{"idle", realtime.Snapshot{State: realtime.StateDisconnected}, Disconnected},
		{"exhausted", realtime.Snapshot{State: realtime.StateDisconnected, GaveUp: true}, GaveUp},
	}
	for _, tc := range cases {
		if got := FromSnapshot(tc.snapshot); got != tc.want {
			t.Errorf("%s: FromSnapshot() = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestKey(t *testing.T) {
	if Key("  Disconnected (auth)  ") != "disconnected (auth)" {
		t.Fatalf("Key() did not normalize")
	}
	if Key(Connected) != Key("connected") {
		t.Fatalf("Key() mismatch for equivalent labels")
	}
}
