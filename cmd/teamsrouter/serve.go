package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/madhavipuliraju/teams-outbound-handler/internal/bus"
	"github.com/madhavipuliraju/teams-outbound-handler/internal/channel"
	"github.com/madhavipuliraju/teams-outbound-handler/internal/domain"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook ingress and dispatch workers",
		Long:  "Starts the HTTP webhook ingress, the per-user dispatch workers and the metrics endpoint. Press Ctrl+C to stop.",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}

	queue := bus.New(cfg.Server.Shards, cfg.Server.QueueSize, logger)

	// Workers outlive the signal context so queued events still drain.
	workers := make(chan struct{})
	go func() {
		defer close(workers)
		queue.Run(context.Background(), func(ctx context.Context, ev domain.Event) {
			if err := a.router.Dispatch(ctx, ev); err != nil {
				logger.Error("dispatch failed", "user", ev.AuthID, "err", err)
			}
		})
	}()

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Endpoint
	}
	hook := channel.NewWebhook(channel.WebhookConfig{
		Addr:            net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Path:            cfg.Server.Path,
		Secret:          cfg.Server.Secret,
		RateLimit:       cfg.Server.RateLimit,
		Burst:           cfg.Server.Burst,
		MetricsPath:     metricsPath,
		ShutdownTimeout: seconds(cfg.Server.ShutdownTimeoutSeconds),
		Logger:          logger,
	}, queue)

	serveErr := hook.Start(ctx)

	logger.Info("draining queued events")
	queue.Close()
	<-workers

	shutdownCtx, cancel := context.WithTimeout(context.Background(), seconds(cfg.Server.ShutdownTimeoutSeconds))
	defer cancel()
	if err := a.Close(shutdownCtx); err != nil {
		logger.Warn("store close failed", "err", err)
	}

	if serveErr != nil {
		return fmt.Errorf("serve: %w", serveErr)
	}
	logger.Info("stopped")
	return nil
}
