package main

import (
	"context"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"cassa/internal/amqp"
	"cassa/internal/bus"
	"cassa/internal/cli"
	"cassa/internal/log"
	"cassa/internal/services"
	"cassa/internal/sheets"
	gsheet "cassa/internal/sheets/google"
	mem "cassa/internal/sheets/memory"
	"cassa/internal/storage"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat).WithComponent(log.ComponentWorker)

	logger.Info("Starting cassa-worker")

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	var ledger sheets.LedgerWriter
	if cfg.SheetsEnabled() {
		client, err := gsheet.New(context.Background(), gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		if err := client.EnsureHeader(context.Background()); err != nil {
			logger.Error("Failed to prepare ledger sheet", "error", err, "sheet", cfg.GoogleSheetName)
			os.Exit(1)
		}
		ledger = client
		logger.Info("Google Sheets ledger initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		ledger = mem.New()
		logger.Warn("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, ledger rows are kept in memory")
	}

	b := bus.New(cli.Origin("cassa-worker"), logger.WithComponent(log.ComponentBus).Logger)

	processor := services.NewSyncProcessor(repo, ledger, services.SyncProcessorConfig{
		PollInterval:   cfg.SyncInterval,
		BatchSize:      cfg.SyncBatchSize,
		InvoiceBaseURL: cfg.InvoiceBaseURL,
	})
	unsubscribe := processor.Subscribe(b)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		unsubscribe()
		if err := processor.Stop(ctx); err != nil {
			logger.Error("Sync processor shutdown error", "error", err)
		}
	})

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start sync processor", "error", err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.AMQPURL != "" {
		// approvals made in the web process arrive over the bridge and kick
		// an immediate sweep
		bridge := amqp.NewBridge(amqp.Config{URL: cfg.AMQPURL, Exchange: cfg.AMQPExchange, Logger: logger}, b)
		g.Go(func() error { return bridge.Run(gctx) })
	} else {
		logger.Info("AMQP bridge disabled, relying on the periodic sweep", "interval", cfg.SyncInterval)
	}

	cli.WaitForShutdown(ctx, done)
	if err := g.Wait(); err != nil {
		logger.Error("Worker error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
