package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"flywheel-console/internal/logging"
)

const (
	// MaxLogEntries caps each log channel buffer; overflow evicts the oldest.
	MaxLogEntries = 500

	defaultReconnectBaseDelay = 3 * time.Second
	reconnectMaxDelay         = 30 * time.Second
	defaultMaxReconnects      = 10
	defaultKeepaliveInterval  = 25 * time.Second
	defaultAuthTimeout        = 10 * time.Second
)

// Options configures one admin realtime connection.
type Options struct {
	// Endpoint is the WebSocket URL (see config.BuildEndpoints).
	Endpoint string
	// Channels is the configured subscription set, re-issued on every
	// successful auth handshake.
	Channels []Channel
	// DisableAutoReconnect turns off retry after an involuntary close.
	// Zero value keeps reconnect enabled.
	DisableAutoReconnect bool
	ReconnectBaseDelay   time.Duration
	MaxReconnectAttempts int
	KeepaliveInterval    time.Duration
	// AuthTimeout bounds the handshake; expiry is handled like an
	// involuntary close so the client never hangs in the connecting state.
	AuthTimeout time.Duration
	// MaxLogEntries overrides the per-channel buffer cap.
	MaxLogEntries int
	// Dial overrides the transport; nil dials gorilla/websocket.
	Dial DialFunc
}

// Hooks are the caller-supplied collaborators for inbound events.
type Hooks struct {
	// Invalidators map invalidation channels to cache-refresh callbacks.
	// Every event triggers its own call; the cache layer coalesces if needed.
	Invalidators map[Channel]func()
	// OnLog observes each entry appended to a log buffer.
	OnLog func(Channel, LogEntry)
}

// Client owns the single logical connection to the admin realtime endpoint:
// auth handshake, channel subscriptions, event routing, keepalive, and
// reconnect with exponential backoff. All failure is surfaced through
// Snapshot state, never as a panic or error from event handling.
type Client struct {
	opts   Options
	hooks  Hooks
	logger *logging.Logger
	dial   DialFunc

	// afterFunc is a seam so tests can intercept reconnect scheduling.
	afterFunc func(time.Duration, func()) *time.Timer

	mu             sync.Mutex
	state          State
	lastError      string
	attempt        int
	gaveUp         bool
	active         bool
	creds          Credentials
	gen            uint64
	conn           Conn
	subscribed     map[Channel]struct{}
	buffers        map[Channel]*logBuffer
	retry          *backoff.ExponentialBackOff
	reconnectTimer *time.Timer
	authTimer      *time.Timer
	keepaliveStop  chan struct{}

	observerMu   sync.Mutex
	observers    map[int]func()
	nextObserver int
}

func New(opts Options, hooks Hooks, logger *logging.Logger) *Client {
	if logger == nil {
		panic("realtime.New: logger must not be nil")
	}
	if opts.ReconnectBaseDelay <= 0 {
		opts.ReconnectBaseDelay = defaultReconnectBaseDelay
	}
	if opts.MaxReconnectAttempts <= 0 {
		opts.MaxReconnectAttempts = defaultMaxReconnects
	}
	if opts.KeepaliveInterval <= 0 {
		opts.KeepaliveInterval = defaultKeepaliveInterval
	}
	if opts.AuthTimeout <= 0 {
		opts.AuthTimeout = defaultAuthTimeout
	}
	if opts.MaxLogEntries <= 0 {
		opts.MaxLogEntries = MaxLogEntries
	}
	dial := opts.Dial
	if dial == nil {
		dial = dialWebSocket
	}

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = opts.ReconnectBaseDelay
	retry.MaxInterval = reconnectMaxDelay
	retry.Multiplier = 1.5
	retry.RandomizationFactor = 0
	retry.Reset()

	buffers := map[Channel]*logBuffer{}
	for _, channel := range logChannels {
		buffers[channel] = newLogBuffer(opts.MaxLogEntries)
	}

	return &Client{
		opts:       opts,
		hooks:      hooks,
		logger:     logger,
		dial:       dial,
		afterFunc:  time.AfterFunc,
		state:      StateDisconnected,
		subscribed: map[Channel]struct{}{},
		buffers:    buffers,
		retry:      retry,
		observers:  map[int]func(){},
	}
}

// Activate opens the connection and starts the auth handshake. Success is
// observed asynchronously through the state transition to connected. Calling
// Activate while a socket is already open (or opening) is a no-op, so exactly
// one socket ever exists per client.
func (c *Client) Activate(creds Credentials) error {
	if err := creds.validate(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		c.logger.Debug("realtime activate ignored: connection already active")
		return nil
	}
	c.active = true
	c.creds = creds
	c.attempt = 0
	c.gaveUp = false
	c.lastError = ""
	c.retry.Reset()
	c.state = StateConnecting
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	c.logger.Debug("realtime connection activating",
		logging.Field("endpoint", c.opts.Endpoint),
		logging.Field("channels", c.opts.Channels),
	)
	c.notifyObservers()
	go c.connect(gen)
	return nil
}

// Deactivate tears the connection down: pending reconnect and keepalive timers
// are canceled before the socket closes, so no reconnect can fire afterwards.
func (c *Client) Deactivate() {
	c.mu.Lock()
	c.active = false
	c.stopTimersLocked()
	conn := c.conn
	c.conn = nil
	c.gen++
	c.subscribed = map[Channel]struct{}{}
	c.state = StateDisconnected
	c.lastError = ""
	c.attempt = 0
	c.gaveUp = false
	c.retry.Reset()
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	c.logger.Debug("realtime connection deactivated")
	c.notifyObservers()
}

// Subscribe adds channels to the live session. Wire effect only while
// connected; ad-hoc subscriptions do not survive a reconnect (the configured
// channel set is what gets re-issued after each auth handshake).
func (c *Client) Subscribe(channels ...Channel) {
	c.sendChannelControl(frameTypeSubscribe, channels)
}

// Unsubscribe removes channels from the live session. No-op while disconnected.
func (c *Client) Unsubscribe(channels ...Channel) {
	c.sendChannelControl(frameTypeUnsubscribe, channels)
}

func (c *Client) sendChannelControl(frameType string, channels []Channel) {
	requested := dedupeChannels(channels)
	if len(requested) == 0 {
		return
	}

	c.mu.Lock()
	if c.state != StateConnected || c.conn == nil {
		c.mu.Unlock()
		c.logger.Debug("dropping channel control while disconnected",
			logging.Field("type", frameType),
			logging.Field("channels", requested),
		)
		return
	}
	err := c.conn.WriteJSON(controlFrame{Type: frameType, Channels: requested})
	if err == nil {
		for _, channel := range requested {
			if frameType == frameTypeSubscribe {
				c.subscribed[channel] = struct{}{}
			} else {
				delete(c.subscribed, channel)
			}
		}
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("failed to send channel control frame",
			logging.Field("type", frameType),
			logging.Field("error", err),
		)
		return
	}
	c.notifyObservers()
}

// SetChannels replaces the configured channel set, the one re-issued after
// every auth handshake. While connected it also diffs the live session,
// subscribing added channels and unsubscribing removed ones.
func (c *Client) SetChannels(channels []Channel) {
	desired := dedupeChannels(channels)

	c.mu.Lock()
	previous := c.opts.Channels
	c.opts.Channels = desired
	connected := c.state == StateConnected && c.conn != nil
	c.mu.Unlock()

	if !connected {
		return
	}
	added, removed := diffChannels(previous, desired)
	if len(added) > 0 {
		c.Subscribe(added...)
	}
	if len(removed) > 0 {
		c.Unsubscribe(removed...)
	}
}

func diffChannels(previous []Channel, desired []Channel) (added []Channel, removed []Channel) {
	before := make(map[Channel]struct{}, len(previous))
	for _, channel := range previous {
		before[channel] = struct{}{}
	}
	after := make(map[Channel]struct{}, len(desired))
	for _, channel := range desired {
		after[channel] = struct{}{}
	}
	for _, channel := range desired {
		if _, ok := before[channel]; !ok {
			added = append(added, channel)
		}
	}
	for _, channel := range previous {
		if _, ok := after[channel]; !ok {
			removed = append(removed, channel)
		}
	}
	return added, removed
}

// ClearLogs empties the buffers for the given log channels, or every log
// buffer when called with no arguments. Local only, never fails.
func (c *Client) ClearLogs(channels ...Channel) {
	c.mu.Lock()
	if len(channels) == 0 {
		for _, buffer := range c.buffers {
			buffer.clear()
		}
	} else {
		for _, channel := range channels {
			if buffer, ok := c.buffers[channel]; ok {
				buffer.clear()
			}
		}
	}
	c.mu.Unlock()
	c.notifyObservers()
}

// Snapshot returns a copy of the connection state and log buffers.
func (c *Client) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	subscribed := make([]Channel, 0, len(c.subscribed))
	for channel := range c.subscribed {
		subscribed = append(subscribed, channel)
	}
	logs := make(map[Channel][]LogEntry, len(c.buffers))
	for channel, buffer := range c.buffers {
		logs[channel] = buffer.snapshot()
	}
	return Snapshot{
		State:      c.state,
		Connected:  c.state == StateConnected,
		Connecting: c.state == StateConnecting,
		LastError:  c.lastError,
		GaveUp:     c.gaveUp,
		Attempt:    c.attempt,
		Subscribed: subscribed,
		Logs:       logs,
	}
}

// Watch registers an observer invoked after every state or buffer mutation.
// The returned function cancels the registration.
func (c *Client) Watch(fn func()) func() {
	if fn == nil {
		panic("realtime.Client.Watch: callback must not be nil")
	}
	c.observerMu.Lock()
	id := c.nextObserver
	c.nextObserver++
	c.observers[id] = fn
	c.observerMu.Unlock()
	return func() {
		c.observerMu.Lock()
		delete(c.observers, id)
		c.observerMu.Unlock()
	}
}

func (c *Client) notifyObservers() {
	c.observerMu.Lock()
	callbacks := make([]func(), 0, len(c.observers))
	for _, cb := range c.observers {
		callbacks = append(callbacks, cb)
	}
	c.observerMu.Unlock()
	for _, cb := range callbacks {
		cb()
	}
}

func (c *Client) connect(gen uint64) {
	conn, err := c.dial(context.Background(), c.opts.Endpoint)

	c.mu.Lock()
	if !c.active || gen != c.gen {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		c.mu.Unlock()
		c.logger.Debug("realtime dial failed", logging.Field("error", err))
		c.socketClosed(gen, err)
		return
	}

	c.conn = conn
	// The auth frame is the only traffic allowed before auth_success.
	writeErr := conn.WriteJSON(authFrame{
		Type:      frameTypeAuth,
		Token:     c.creds.Token,
		AccountID: c.creds.AccountID,
	})
	if writeErr != nil {
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()
		c.socketClosed(gen, writeErr)
		return
	}
	c.authTimer = c.afterFunc(c.opts.AuthTimeout, func() {
		c.authTimedOut(gen)
	})
	c.mu.Unlock()

	go c.readPump(gen, conn)
}

func (c *Client) readPump(gen uint64, conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.socketClosed(gen, err)
			return
		}
		c.handleFrame(gen, data)
	}
}

// handleFrame routes one inbound text frame. Malformed frames are dropped
// with a diagnostic log and never tear down the connection.
func (c *Client) handleFrame(gen uint64, data []byte) {
	frame := inboundFrame{}
	if err := json.Unmarshal(data, &frame); err != nil {
		c.logger.Warn("dropping malformed realtime frame",
			logging.Field("error", err),
			logging.Field("payload", logging.Truncate(string(data))),
		)
		return
	}

	switch {
	case frame.Type == frameTypeAuthSuccess:
		c.handleAuthSuccess(gen)
	case frame.Type == frameTypeAuthError:
		c.handleAuthError(gen, frame.Error)
	case frame.Channel != "":
		c.handleChannelEvent(gen, frame)
	default:
		c.logger.Debug("ignoring unrecognized realtime frame",
			logging.Field("type", frame.Type),
		)
	}
}

func (c *Client) handleAuthSuccess(gen uint64) {
	c.mu.Lock()
	if !c.active || gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.stopAuthTimerLocked()
	c.state = StateConnected
	c.lastError = ""
	c.attempt = 0
	c.gaveUp = false
	c.retry.Reset()

	channels := dedupeChannels(append(append([]Channel(nil), c.opts.Channels...), setToSlice(c.subscribed)...))
	conn := c.conn
	if len(channels) > 0 && conn != nil {
		if err := conn.WriteJSON(controlFrame{Type: frameTypeSubscribe, Channels: channels}); err != nil {
			// Write failure surfaces through the read pump shortly after.
			c.logger.Warn("failed to send subscribe frame", logging.Field("error", err))
		} else {
			for _, channel := range channels {
				c.subscribed[channel] = struct{}{}
			}
		}
	}
	c.startKeepaliveLocked(gen)
	c.mu.Unlock()

	c.logger.Info("realtime connection established",
		logging.Field("channels", channels),
	)
	c.notifyObservers()
}

// An auth error is terminal for the session: the server rejected the
// credentials, so retrying without fresh ones would spin. The caller observes
// the errored state and re-activates with new credentials.
func (c *Client) handleAuthError(gen uint64, message string) {
	c.mu.Lock()
	if !c.active || gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.stopTimersLocked()
	conn := c.conn
	c.conn = nil
	c.gen++
	c.active = false
	c.subscribed = map[Channel]struct{}{}
	c.state = StateErrored
	if message == "" {
		message = errAuthRejected.Error()
	}
	c.lastError = message
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	c.logger.Warn("realtime authentication rejected", logging.Field("error", message))
	c.notifyObservers()
}

func (c *Client) handleChannelEvent(gen uint64, frame inboundFrame) {
	c.mu.Lock()
	if !c.active || gen != c.gen {
		c.mu.Unlock()
		return
	}

	if frame.Channel.IsLog() {
		entry := decodeLogEntry(frame)
		buffer, ok := c.buffers[frame.Channel]
		if ok {
			buffer.prepend(entry)
		}
		c.mu.Unlock()
		if !ok {
			return
		}
		if c.hooks.OnLog != nil {
			c.hooks.OnLog(frame.Channel, entry)
		}
		c.notifyObservers()
		return
	}
	c.mu.Unlock()

	if !frame.Channel.IsKnown() {
		c.logger.Debug("ignoring event on unknown channel",
			logging.Field("channel", frame.Channel),
			logging.Field("event", frame.Event),
		)
		return
	}
	// Invalidation events carry no payload worth retaining; each one triggers
	// its own callback and the caller's cache layer coalesces bursts.
	if fn := c.hooks.Invalidators[frame.Channel]; fn != nil {
		fn()
	}
}

func (c *Client) authTimedOut(gen uint64) {
	c.mu.Lock()
	if !c.active || gen != c.gen || c.state != StateConnecting {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.logger.Warn("realtime auth handshake timed out")
	c.socketClosed(gen, errAuthTimeout)
}

// socketClosed handles any involuntary end of the current socket: dial
// failure, read error, or auth timeout. Retries are scheduled with
// exponential backoff until attempts are exhausted.
func (c *Client) socketClosed(gen uint64, cause error) {
	c.mu.Lock()
	if !c.active || gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.stopTimersLocked()
	conn := c.conn
	c.conn = nil
	c.gen++
	// Ad-hoc subscriptions are per-socket; reconnect re-issues the configured
	// set only.
	c.subscribed = map[Channel]struct{}{}
	if cause != nil {
		c.lastError = cause.Error()
	}

	if c.opts.DisableAutoReconnect || c.attempt >= c.opts.MaxReconnectAttempts {
		exhausted := !c.opts.DisableAutoReconnect
		c.active = false
		c.gaveUp = exhausted
		c.state = StateDisconnected
		if exhausted {
			c.lastError = errRetryExceeded.Error() + ": " + c.lastError
		}
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		c.logger.Warn("realtime connection closed, not retrying",
			logging.Field("error", cause),
			logging.Field("retries_exhausted", exhausted),
		)
		c.notifyObservers()
		return
	}

	delay := c.retry.NextBackOff()
	c.attempt++
	c.state = StateConnecting
	nextGen := c.gen
	c.reconnectTimer = c.afterFunc(delay, func() {
		c.reconnect(nextGen)
	})
	attempt := c.attempt
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	c.logger.Debug("scheduling realtime reconnect",
		logging.Field("error", cause),
		logging.Field("attempt", attempt),
		logging.Field("delay", delay.String()),
	)
	c.notifyObservers()
}

func (c *Client) reconnect(gen uint64) {
	c.mu.Lock()
	if !c.active || gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.reconnectTimer = nil
	c.mu.Unlock()
	c.connect(gen)
}

func (c *Client) startKeepaliveLocked(gen uint64) {
	// A repeated handshake ack must replace the previous loop, not stack one.
	if c.keepaliveStop != nil {
		close(c.keepaliveStop)
	}
	stop := make(chan struct{})
	c.keepaliveStop = stop
	interval := c.opts.KeepaliveInterval

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.mu.Lock()
				if !c.active || gen != c.gen || c.state != StateConnected || c.conn == nil {
					c.mu.Unlock()
					return
				}
				err := c.conn.WriteJSON(controlFrame{Type: frameTypePing})
				c.mu.Unlock()
				if err != nil {
					// Fire-and-forget; the read pump notices the dead socket.
					c.logger.Debug("keepalive ping failed", logging.Field("error", err))
					return
				}
			}
		}
	}()
}

func (c *Client) stopTimersLocked() {
	c.stopAuthTimerLocked()
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	if c.keepaliveStop != nil {
		close(c.keepaliveStop)
		c.keepaliveStop = nil
	}
}

func (c *Client) stopAuthTimerLocked() {
	if c.authTimer != nil {
		c.authTimer.Stop()
		c.authTimer = nil
	}
}

func dedupeChannels(channels []Channel) []Channel {
	seen := make(map[Channel]struct{}, len(channels))
	out := make([]Channel, 0, len(channels))
	for _, channel := range channels {
		if channel == "" {
			continue
		}
		if _, ok := seen[channel]; ok {
			continue
		}
		seen[channel] = struct{}{}
		out = append(out, channel)
	}
	return out
}

func setToSlice(set map[Channel]struct{}) []Channel {
	out := make([]Channel, 0, len(set))
	for channel := range set {
		out = append(out, channel)
	}
	return out
}
