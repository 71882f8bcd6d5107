package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flags "github.com/jessevdk/go-flags"

	"flywheel-console/internal/app"
	"flywheel-console/internal/client"
	"flywheel-console/internal/config"
	"flywheel-console/internal/logging"
	"flywheel-console/internal/realtime"
	"flywheel-console/internal/runstatus"
)

var BuildVersion = "dev"

func main() {
	rootCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	opts, err := config.ParseOptions()
	if err != nil {
		var flagErr *flags.Error
		if errors.As(err, &flagErr) && flagErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if saved, loadErr := config.LoadSettings(); loadErr == nil {
		opts = config.MergeOptionsWithSettings(opts, saved)
	}
	if err := config.ValidateRequired(opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	lock, lockedByOther, lockErr := acquireInstanceLock()
	if lockErr != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize single-instance lock:", lockErr)
		os.Exit(2)
	}
	if lockedByOther {
		fmt.Fprintln(os.Stderr, "Flywheel console agent is already running.")
		os.Exit(1)
	}
	defer func() {
		_ = lock.Release()
	}()

	logger := logging.New(opts.Debug)
	defer func() {
		_ = logger.Close()
	}()
	if err := logger.EnableFilePersistence(0); err != nil {
		logger.Warn("log file persistence unavailable", logging.Field("error", err))
	}
	logger.Info("flywheel console agent", logging.Field("version", BuildVersion))

	endpoints, err := config.BuildEndpoints(opts.BaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	consoleClient := client.New(httpClient, opts.Token, endpoints, logger)

	consoleApp := app.New(opts, consoleClient, logger, app.Callbacks{
		OnStatusChange: func(status string) {
			logger.Info("connection status", logging.Field("status", status))
			if runstatus.Key(status) == runstatus.Key(runstatus.GaveUp) {
				logger.Warn("reconnect attempts exhausted, restart the agent to retry")
			}
		},
		OnLogEntry: func(channel realtime.Channel, entry realtime.LogEntry) {
			logger.Debug("platform log entry",
				logging.Field("channel", channel),
				logging.Field("level", entry.Level),
				logging.Field("source", entry.Source),
				logging.Field("message", logging.Truncate(entry.Message)),
			)
		},
	})

	if runErr := consoleApp.RunContext(rootCtx); runErr != nil && rootCtx.Err() == nil {
		logger.Error("console agent failed", logging.Field("error", runErr))
		os.Exit(1)
	}
}
