package app

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"flywheel-console/internal/client"
	"flywheel-console/internal/config"
	"flywheel-console/internal/logging"
	"flywheel-console/internal/realtime"
	"flywheel-console/internal/runctx"
	"flywheel-console/internal/runstatus"
)

// ConsoleApp is the composition root: it owns one realtime client instance,
// supplies it credentials from the REST collaborator, and bridges invalidation
// events into cache refetches. There is deliberately no package-level
// singleton; tests and embedders construct independent instances.
type ConsoleApp struct {
	opts   config.Options
	client *client.ConsoleClient
	logger *logging.Logger
	hooks  Callbacks
	status statusState

	mirrorMu sync.RWMutex
	mirror   Resources
}

// Callbacks deliver app-level observations to whatever front end embeds the
// agent. All callbacks are optional.
type Callbacks struct {
	OnStatusChange   func(string)
	OnResourceUpdate func(Resources)
	OnLogEntry       func(realtime.Channel, realtime.LogEntry)
}

// Resources is the console's mirror of the cached admin views, refreshed
// whenever the matching invalidation channel fires.
type Resources struct {
	Jobs         []client.JobSummary
	Launches     []client.LaunchSummary
	Transactions []client.TransactionSummary
	Balances     []client.BalanceSummary
}

func New(opts config.Options, client *client.ConsoleClient, logger *logging.Logger, hooks Callbacks) *ConsoleApp {
	if client == nil {
		panic("app.New: client must not be nil")
	}
	if logger == nil {
		panic("app.New: logger must not be nil")
	}
	return &ConsoleApp{opts: opts, client: client, logger: logger, hooks: hooks}
}

func (a *ConsoleApp) Run() error {
	return a.RunContext(context.Background())
}

func (a *ConsoleApp) RunContext(ctx context.Context) error {
	endpoints, err := config.BuildEndpoints(a.opts.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}

	channels, err := a.configuredChannels()
	if err != nil {
		return err
	}
	a.logger.Info("console agent starting",
		logging.Field("endpoint", endpoints.RealtimeWSURL),
		logging.Field("channels", channels),
	)

	creds, err := a.client.FetchRealtimeCredentials(ctx)
	if err != nil {
		return fmt.Errorf("failed to obtain realtime credentials: %w", err)
	}

	// Invalidation events only signal staleness; refetches run on a worker
	// goroutine so bursts never block the socket read loop, and the buffered
	// channel coalesces them per resource.
	refetchQueue := make(chan realtime.Channel, len(realtime.KnownChannels()))
	invalidators := map[realtime.Channel]func(){}
	for _, channel := range []realtime.Channel{
		realtime.ChannelJobStatus,
		realtime.ChannelLaunchUpdates,
		realtime.ChannelTransactionUpdates,
		realtime.ChannelBalanceUpdates,
	} {
		ch := channel
		invalidators[ch] = func() {
			runctx.TrySend(refetchQueue, ch)
		}
	}

	rt := realtime.New(realtime.Options{
		Endpoint:             endpoints.RealtimeWSURL,
		Channels:             channels,
		DisableAutoReconnect: a.opts.NoReconnect,
	}, realtime.Hooks{
		Invalidators: invalidators,
		OnLog:        a.hooks.OnLogEntry,
	}, a.logger)

	unwatch := rt.Watch(func() {
		a.setStatus(runstatus.FromSnapshot(rt.Snapshot()))
	})
	defer unwatch()

	if err := rt.Activate(creds); err != nil {
		return err
	}
	defer rt.Deactivate()

	go a.runRefetchLoop(ctx, refetchQueue)
	go a.watchSettings(ctx, rt)

	<-ctx.Done()
	a.logger.Info("console agent stopping", logging.Field("error", ctx.Err()))
	return nil
}

// Snapshot returns the latest mirrored resource rows.
func (a *ConsoleApp) Snapshot() Resources {
	a.mirrorMu.RLock()
	defer a.mirrorMu.RUnlock()
	return Resources{
		Jobs:         append([]client.JobSummary(nil), a.mirror.Jobs...),
		Launches:     append([]client.LaunchSummary(nil), a.mirror.Launches...),
		Transactions: append([]client.TransactionSummary(nil), a.mirror.Transactions...),
		Balances:     append([]client.BalanceSummary(nil), a.mirror.Balances...),
	}
}

func (a *ConsoleApp) configuredChannels() ([]realtime.Channel, error) {
	raw := a.opts.Channels
	if len(raw) == 0 {
		return realtime.KnownChannels(), nil
	}
	channels := make([]realtime.Channel, 0, len(raw))
	for _, name := range raw {
		channel, ok := realtime.ParseChannel(name)
		if !ok {
			return nil, fmt.Errorf("unknown realtime channel %q", name)
		}
		channels = append(channels, channel)
	}
	return channels, nil
}

func (a *ConsoleApp) runRefetchLoop(ctx context.Context, queue <-chan realtime.Channel) {
	for {
		channel, ok := runctx.RecvOrDone(ctx, "cache refetch loop", a.logger, queue)
		if !ok {
			return
		}
		if err := a.refetch(ctx, channel); err != nil {
			if ctx.Err() != nil {
				return
			}
			a.logger.Warn("cache refetch failed",
				logging.Field("channel", channel),
				logging.Field("error", err),
			)
			continue
		}
		a.notifyResources()
	}
}

func (a *ConsoleApp) refetch(ctx context.Context, channel realtime.Channel) error {
	switch channel {
	case realtime.ChannelJobStatus:
		jobs, err := a.client.FetchJobs(ctx)
		if err != nil {
			return err
		}
		a.mirrorMu.Lock()
		a.mirror.Jobs = jobs
		a.mirrorMu.Unlock()
	case realtime.ChannelLaunchUpdates:
		launches, err := a.client.FetchLaunches(ctx)
		if err != nil {
			return err
		}
		a.mirrorMu.Lock()
		a.mirror.Launches = launches
		a.mirrorMu.Unlock()
	case realtime.ChannelTransactionUpdates:
		transactions, err := a.client.FetchTransactions(ctx)
		if err != nil {
			return err
		}
		a.mirrorMu.Lock()
		a.mirror.Transactions = transactions
		a.mirrorMu.Unlock()
	case realtime.ChannelBalanceUpdates:
		balances, err := a.client.FetchBalances(ctx)
		if err != nil {
			return err
		}
		a.mirrorMu.Lock()
		a.mirror.Balances = balances
		a.mirrorMu.Unlock()
	}
	return nil
}

// watchSettings applies channel-set edits from the settings file to the live
// connection without a restart.
func (a *ConsoleApp) watchSettings(ctx context.Context, rt *realtime.Client) {
	updates, err := config.WatchSettings(ctx, a.logger)
	if err != nil {
		a.logger.Warn("settings watcher unavailable", logging.Field("error", err))
		return
	}
	for {
		settings, ok := runctx.RecvOrDone(ctx, "settings watcher loop", a.logger, updates)
		if !ok {
			return
		}
		if len(settings.Channels) == 0 {
			continue
		}
		channels := make([]realtime.Channel, 0, len(settings.Channels))
		for _, name := range settings.Channels {
			if channel, ok := realtime.ParseChannel(name); ok {
				channels = append(channels, channel)
			} else {
				a.logger.Warn("ignoring unknown channel from settings", logging.Field("channel", name))
			}
		}
		if len(channels) == 0 {
			continue
		}
		a.logger.Info("applying channel set from settings", logging.Field("channels", channels))
		rt.SetChannels(channels)
	}
}

func (a *ConsoleApp) notifyResources() {
	if a.hooks.OnResourceUpdate == nil {
		return
	}
	a.hooks.OnResourceUpdate(a.Snapshot())
}

func (a *ConsoleApp) setStatus(status string) {
	previous, next, changed := a.status.update(status)
	if !changed {
		return
	}
	a.logger.Debug("runtime status transition",
		logging.Field("from", previous),
		logging.Field("to", next),
	)
	if a.hooks.OnStatusChange != nil {
		a.hooks.OnStatusChange(next)
	}
}

type statusState struct {
	mu      sync.Mutex
	current string
}

func (s *statusState) update(status string) (string, string, bool) {
	trimmed := strings.TrimSpace(status)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == trimmed {
		return s.current, trimmed, false
	}
	previous := s.current
	s.current = trimmed
	return previous, trimmed, true
}
