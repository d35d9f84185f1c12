package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pulseboard/dashsync/internal/backoff"
	"github.com/pulseboard/dashsync/internal/config"
	"github.com/pulseboard/dashsync/internal/connection"
	"github.com/pulseboard/dashsync/internal/event"
	"github.com/pulseboard/dashsync/internal/fetch"
	"github.com/pulseboard/dashsync/internal/poller"
	"github.com/pulseboard/dashsync/internal/router"
	syncer "github.com/pulseboard/dashsync/internal/sync"
	"github.com/pulseboard/dashsync/internal/version"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "configs/dashsync.yaml", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.Log.Level),
	}))
	slog.SetDefault(logger)

	logger.Info("starting dashsync",
		"version", version.Version,
		"commit", version.Commit,
		"instance_id", cfg.Instance.ID,
		"ws_url", cfg.Sync.WSURL,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Snapshot client for the fallback polling path
	snapshots := fetch.NewClient(
		cfg.Snapshot.BaseURL,
		cfg.Sync.AuthToken,
		fetch.WithLogger(logger),
		fetch.WithTimeout(cfg.Snapshot.Timeout),
		fetch.WithRetries(cfg.Snapshot.MaxRetries, time.Second),
	)

	// Live channel transport
	transport := connection.NewWebsocketTransport(connection.ClientConfig{
		HandshakeTimeout: cfg.Channel.HandshakeTimeout,
		PingTimeout:      cfg.Channel.PingTimeout,
		WriteTimeout:     cfg.Channel.WriteTimeout,
		BufferSize:       cfg.Channel.BufferSize,
	}, logger)

	coord := syncer.New(
		syncer.Config{
			URL: cfg.Sync.WSURL,
			Policy: backoff.Policy{
				Base:        cfg.Reconnect.BaseDelay,
				Max:         cfg.Reconnect.MaxDelay,
				MaxAttempts: cfg.Reconnect.MaxAttempts,
			},
			Poll: poller.Config{
				Interval:     cfg.Poll.Interval,
				FetchTimeout: cfg.Poll.FetchTimeout,
			},
		},
		transport,
		snapshots.Snapshot,
		logger,
	)

	// Log every update the way a dashboard panel would consume it.
	_, err = coord.Subscribe(event.AllTypes(), router.HandlerFunc(func(env event.Envelope) error {
		logger.Info("update applied",
			"type", env.Type,
			"seq", env.Sequence,
			"ts", env.Time().Format(time.RFC3339Nano),
		)
		return nil
	}))
	if err != nil {
		logger.Error("failed to subscribe", "error", err)
		os.Exit(1)
	}

	// Connection banner
	coord.OnStatusChange(func(s connection.State) {
		logger.Info("connection status", "state", s)
	})

	if err := coord.Start(ctx, func() string { return cfg.Sync.AuthToken }); err != nil {
		logger.Error("failed to start coordinator", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()

	logger.Info("shutting down")
	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()
	if err := coord.Stop(stopCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	cursor := coord.Cursor()
	logger.Info("dashsync stopped", "last_applied_seq", cursor.LastAppliedSequence)
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
