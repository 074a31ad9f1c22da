package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"invoicer/internal/amqp"
	"invoicer/internal/backend"
	"invoicer/internal/cli"
	applog "invoicer/internal/log"
	gsheet "invoicer/internal/sheets/google"
	"invoicer/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL")).WithComponent(applog.ComponentWorker)
	logger.Info("Starting invoicer-worker")

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.Fatal(logger, "Configuration validation failed", err)
	}
	if err := cfg.ValidateWorker(); err != nil {
		cli.Fatal(logger, "Worker configuration invalid", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The worker only reads invoices, so it never publishes.
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	bcfg.AMQPURL = ""
	result, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		cli.Fatal(logger, "Failed to open data backend", err, "backend", cfg.DataBackend)
	}
	defer result.Close()

	mirror, err := gsheet.NewFromEnv(ctx)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize Google Sheets client", err)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize AMQP client", err)
	}
	defer amqpClient.Close()

	mirrorWorker := worker.NewMirrorWorker(result.Repository, mirror, worker.Config{ResyncInterval: cfg.SyncInterval})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeMessages(gctx, mirrorWorker.HandleMessage)
	})
	g.Go(func() error {
		if err := mirrorWorker.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return mirrorWorker.Stop(stopCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
