package realtime

import (
	"encoding/json"
	"strings"
	"time"
)

// Channel is a named topic the platform multiplexes onto the single admin socket.
type Channel string

const (
	ChannelJobStatus          Channel = "job-status"
	ChannelTransactionUpdates Channel = "transaction-updates"
	ChannelLaunchUpdates      Channel = "launch-updates"
	ChannelBalanceUpdates     Channel = "balance-updates"
	ChannelLogs               Channel = "logs"
	ChannelFlywheelLogs       Channel = "flywheel-logs"
	ChannelIntegrationLogs    Channel = "integration-logs"
)

var knownChannels = []Channel{
	ChannelJobStatus,
	ChannelTransactionUpdates,
	ChannelLaunchUpdates,
	ChannelBalanceUpdates,
	ChannelLogs,
	ChannelFlywheelLogs,
	ChannelIntegrationLogs,
}

var logChannels = []Channel{
	ChannelLogs,
	ChannelFlywheelLogs,
	ChannelIntegrationLogs,
}

// KnownChannels returns the fixed channel set the backend multiplexes.
func KnownChannels() []Channel {
	return append([]Channel(nil), knownChannels...)
}

// LogChannels returns the channels whose events are retained in log buffers.
func LogChannels() []Channel {
	return append([]Channel(nil), logChannels...)
}

// IsLog reports whether events on the channel are buffered for display rather
// than treated as cache-invalidation signals.
func (c Channel) IsLog() bool {
	switch c {
	case ChannelLogs, ChannelFlywheelLogs, ChannelIntegrationLogs:
		return true
	default:
		return false
	}
}

// IsKnown reports whether the channel belongs to the fixed backend set.
func (c Channel) IsKnown() bool {
	for _, known := range knownChannels {
		if c == known {
			return true
		}
	}
	return false
}

// ParseChannel normalizes a raw channel identifier from config or settings.
func ParseChannel(raw string) (Channel, bool) {
	candidate := Channel(strings.ToLower(strings.TrimSpace(raw)))
	if candidate.IsKnown() {
		return candidate, true
	}
	return "", false
}

type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// LogEntry is one buffered event from a log channel, most recent first.
type LogEntry struct {
	Level     Level
	Message   string
	Timestamp time.Time
	Source    string
	Details   json.RawMessage
}

// State is the lifecycle state of the single logical admin connection.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateErrored      State = "errored"
)

// Credentials is the auth payload for the realtime handshake. The server
// validates correctness; the client only checks the fields are present.
type Credentials struct {
	Token     string `json:"token"`
	AccountID string `json:"account_id"`
}

func (c Credentials) validate() error {
	if strings.TrimSpace(c.Token) == "" {
		return ErrMissingToken
	}
	if strings.TrimSpace(c.AccountID) == "" {
		return ErrMissingAccountID
	}
	return nil
}

// Snapshot is a point-in-time copy of connection state and log buffers.
// Safe to read from any goroutine; mutations never alias into it.
type Snapshot struct {
	State      State
	Connected  bool
	Connecting bool
	LastError  string
	GaveUp     bool
	Attempt    int
	Subscribed []Channel
	Logs       map[Channel][]LogEntry
}

const (
	frameTypeAuth        = "auth"
	frameTypeSubscribe   = "subscribe"
	frameTypeUnsubscribe = "unsubscribe"
	frameTypePing        = "ping"
	frameTypeAuthSuccess = "auth_success"
	frameTypeAuthError   = "auth_error"
)

type authFrame struct {
	Type      string `json:"type"`
	Token     string `json:"token"`
	AccountID string `json:"account_id"`
}

type controlFrame struct {
	Type     string    `json:"type"`
	Channels []Channel `json:"channels,omitempty"`
}

type inboundFrame struct {
	Type      string          `json:"type,omitempty"`
	Error     string          `json:"error,omitempty"`
	Channel   Channel         `json:"channel,omitempty"`
	Event     string          `json:"event,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

type logEventPayload struct {
	Level    string          `json:"level"`
	Message  string          `json:"message"`
	Source   string          `json:"source"`
	Token    string          `json:"token"`
	Username string          `json:"username"`
	Details  json.RawMessage `json:"details"`
}

func decodeLogEntry(frame inboundFrame) LogEntry {
	entry := LogEntry{
		Level:     LevelInfo,
		Timestamp: time.Now(),
	}
	if frame.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339, frame.Timestamp); err == nil {
			entry.Timestamp = ts
		}
	}

	payload := logEventPayload{}
	if len(frame.Data) == 0 || json.Unmarshal(frame.Data, &payload) != nil {
		entry.Message = frame.Event
		entry.Details = append(json.RawMessage(nil), frame.Data...)
		return entry
	}

	switch strings.ToLower(strings.TrimSpace(payload.Level)) {
	case "debug":
		entry.Level = LevelDebug
	case "warn", "warning":
		entry.Level = LevelWarn
	case "error":
		entry.Level = LevelError
	}
	entry.Message = payload.Message
	if entry.Message == "" {
		entry.Message = frame.Event
	}
	// Source tag is free-form: token symbol for launch logs, telegram username
	// for bot logs.
	switch {
	case payload.Source != "":
		entry.Source = payload.Source
	case payload.Token != "":
		entry.Source = payload.Token
	case payload.Username != "":
		entry.Source = payload.Username
	}
	entry.Details = append(json.RawMessage(nil), payload.Details...)
	return entry
}
