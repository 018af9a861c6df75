package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"cassa/internal/amqp"
	"cassa/internal/auth"
	"cassa/internal/bus"
	"cassa/internal/cache"
	"cassa/internal/cli"
	apphttp "cassa/internal/http"
	"cassa/internal/log"
	"cassa/internal/poller"
	"cassa/internal/services"
)

const cacheSweepInterval = time.Minute

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat)

	repo := cli.InitSQLite(context.Background(), logger, cfg)
	defer repo.Close()

	caps, err := auth.LoadCapabilities(cfg.CapabilitiesFile)
	if err != nil {
		logger.Error("Failed to load capabilities", "error", err, "path", cfg.CapabilitiesFile)
		os.Exit(1)
	}

	origin := cli.Origin("cassa")
	b := bus.New(origin, logger.WithComponent(log.ComponentBus).Logger)
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)

	srv := apphttp.NewServer(apphttp.Options{
		Addr:            ":" + cfg.Port,
		Location:        cfg.Location(),
		InvoiceBaseURL:  cfg.InvoiceBaseURL,
		RateLimitPerMin: cfg.RateLimitPerMin,
		SessionTTL:      cfg.SessionTTL,
		Logger:          logger,
	}, repo, b, tokens, caps)

	// No WriteTimeout: signal streams stay open.
	srv.ReadTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	caches := cache.NewManager(logger.WithComponent(log.ComponentCache).Logger)
	caches.Register(srv.Caches()...)

	reminders := services.NewReminderProcessor(repo, b)

	// Server-side watch over every pending expense; growth reaches admins
	// as new-approvals on their signal streams.
	approvals := poller.New(
		poller.CounterFunc(func(ctx context.Context) (int64, error) { return repo.CountPending(ctx, 0) }),
		nil,
		b,
		poller.Config{Logger: logger.WithComponent(log.ComponentPoller).Logger},
	)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		caches.Run(gctx, cacheSweepInterval)
		return nil
	})
	g.Go(func() error {
		return reminders.Run(gctx, cfg.ReminderInterval, nil)
	})
	if cfg.AMQPURL != "" {
		bridge := amqp.NewBridge(amqp.Config{URL: cfg.AMQPURL, Exchange: cfg.AMQPExchange, Logger: logger}, b)
		g.Go(func() error { return bridge.Run(gctx) })
	} else {
		logger.Info("AMQP bridge disabled, signals stay in this process")
	}
	if err := approvals.Start(gctx, "server"); err != nil {
		logger.Error("Failed to start approvals poller", "error", err)
	}

	g.Go(func() error {
		logger.Info("Starting cassa server", "addr", srv.Addr, "origin", origin, "timezone", cfg.Timezone)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", srv.Addr, err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		approvals.Stop()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	approvals.Stop()
	logger.Info("Server stopped gracefully")
}
