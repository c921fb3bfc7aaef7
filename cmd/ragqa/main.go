package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ragqa/internal/api"
	"ragqa/internal/app"
	"ragqa/internal/config"
	"ragqa/internal/logging"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ./config.yaml or ~/.config/ragqa/config.yaml if not provided)")
	flag.Parse()

	cfg, usedPath, err := app.LoadConfig(cfgPath, os.Getenv)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := logging.Setup(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		logger.Warn("log level ignored", "error", err)
	}
	logger.Info("config loaded", "path", usedPath, "mode", cfg.Retrieval.Mode, "generator", cfg.Generator.Type)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) error {
	a, err := app.New(ctx, cfg, os.Getenv, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	snap, err := a.Load(ctx)
	if err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}
	logger.Info("corpus ready", "units", snap.Len(), "generation", snap.Generation)

	srv := api.NewServer(a.Service, a.Engine, a.Metrics, api.Options{
		AdminToken:  os.Getenv(cfg.Server.AdminTokenEnv),
		CORSOrigins: cfg.Server.CORSOrigins,
	}, logger)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", httpServer.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSecs)*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
