package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"invoicer/internal/assist"
	"invoicer/internal/cli"
	apphttp "invoicer/internal/http"
	"invoicer/internal/repository"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.Fatal(logger, "Configuration validation failed", err)
	}

	st, backendResult, err := cli.OpenStore(context.Background(), logger, cfg)
	if err != nil {
		cli.Fatal(logger, "Failed to open data backend", err, "backend", cfg.DataBackend)
	}

	assistClient, err := assist.NewFromKey(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		logger.Warn("Text generation unavailable", "error", err)
		assistClient = assist.New(nil)
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Store:  st,
		Assist: assistClient,
		Logger: logger,
		Ready: func(ctx context.Context) error {
			return repository.Ping(ctx, backendResult.Repository)
		},
	})
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		// Let background writes finish before the backend goes away.
		st.Wait()
		if err := backendResult.Close(); err != nil {
			logger.Error("Backend close error", "error", err)
		}
	})

	logger.Info("Starting invoicer server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"publishing", backendResult.Publishing,
		"assist", assistClient.Enabled())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cli.Fatal(logger, "Server error", err, "port", cfg.Port)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
