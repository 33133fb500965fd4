// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Livegate Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/livegate/livegate/internal/auth"
	"github.com/livegate/livegate/internal/config"
	"github.com/livegate/livegate/internal/core"
	"github.com/livegate/livegate/internal/logging"
	"github.com/livegate/livegate/internal/observability"
	"github.com/livegate/livegate/internal/store"
	"github.com/livegate/livegate/internal/transport/sse"
	"github.com/livegate/livegate/internal/transport/ws"
)

const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the fan-out gateway",
		Long: `Start the gateway process which accepts SSE and WebSocket
subscribers, replays backlog on connect, and fans published records out to
all current subscribers of a topic.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd)
		},
	}

	cmd.Flags().String("listen_addr", ":8080", "gateway listen address")
	cmd.Flags().String("metrics_addr", "127.0.0.1:9100", "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("storage", config.StoragePostgres, "storage backend (postgres or memory)")
	cmd.Flags().String("database_url", "", "PostgreSQL connection URL (default: DATABASE_URL env)")
	cmd.Flags().String("token_secret", "", "signing secret for subscriber tokens (default: TOKEN_SECRET env)")
	cmd.Flags().Int("backlog_limit", 50, "records replayed to a new subscriber")
	cmd.Flags().Duration("heartbeat_interval", 30*time.Second, "keepalive interval for idle connections")
	cmd.Flags().String("log_format", "json", "log format (json or text)")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.TokenSecret == "" {
		cfg.TokenSecret = os.Getenv("TOKEN_SECRET")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logging.SetDefault("livegate", version, cfg.LogFormat)

	slog.Info("starting gateway",
		"listen_addr", cfg.ListenAddr,
		"storage", cfg.Storage,
		"backlog_limit", cfg.BacklogLimit,
		"heartbeat_interval", cfg.HeartbeatInterval,
	)

	var recordStore core.RecordStore
	if cfg.Storage == config.StoragePostgres {
		pgStore, err := store.NewPostgresRecordStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pgStore.Close()
		recordStore = pgStore
		slog.Info("connected to database")
	} else {
		recordStore = core.NewMemoryRecordStore()
		slog.Warn("using in-memory storage, records are lost on restart")
	}

	verifier, err := auth.NewVerifier(cfg.TokenSecret)
	if err != nil {
		return err
	}

	registry := core.NewRegistry()
	lifecycle := core.NewLifecycle(registry, recordStore,
		core.WithBacklogLimit(cfg.BacklogLimit),
		core.WithHeartbeatInterval(cfg.HeartbeatInterval),
	)
	publisher := core.NewPublisher(recordStore, registry)

	mux := http.NewServeMux()
	sse.NewHandler(lifecycle, publisher).RegisterRoutes(mux)
	ws.NewHandler(lifecycle, publisher, verifier).RegisterRoutes(mux)

	listener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return err
	}
	httpSrv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Observability server on its own listener, if configured.
	var obsServer *observability.Server
	if cfg.MetricsAddr != "" {
		obsServer = observability.NewServer(cfg.MetricsAddr, func() bool { return true })
		obsErrChan, err := obsServer.Start()
		if err != nil {
			_ = listener.Close()
			return err
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- serveErr
		}
	}()

	cmd.Println("Gateway started")
	slog.Info("gateway ready", "addr", listener.Addr().String())

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case err := <-errChan:
		return err
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("error stopping gateway server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}

	slog.Info("shutdown complete")
	return nil
}

// monitorServerErrors watches a server's error channel and cancels the
// context on error, so a failed auxiliary server triggers graceful shutdown
// of the whole process.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
