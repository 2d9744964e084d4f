package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/freekieb7/go-duedate/container"
	"github.com/freekieb7/go-duedate/internal/config"
	"github.com/joho/godotenv"
)

const shutdownTimeout = 5 * time.Second

func main() {
	ctx := context.Background()

	if err := Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func Run(ctx context.Context) error {
	// Stop serving on interrupt so the deferred cleanup runs
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	// A missing .env is fine, the real environment wins either way
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return errors.Join(errors.New("load config failed"), err)
	}

	logger := newLogger(cfg.Server.Environment)
	slog.SetDefault(logger)

	c, err := container.New(ctx, cfg, logger)
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("Cleanup failed", "error", err)
		}
	}()
	if err != nil {
		return err
	}

	server := c.HttpServer

	srvErr := make(chan error, 1)
	go func() {
		logger.Info("Listening and serving", "addr", server.Addr, "environment", cfg.Server.Environment, "moodle", cfg.Moodle.BaseURL)
		srvErr <- server.ListenAndServe()
	}()

	select {
	case err := <-srvErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("Shutdown signal received")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return err
		}

		logger.Info("Shutdown completed")
	}

	return nil
}

func newLogger(environment config.Environment) *slog.Logger {
	if environment == config.EnvProduction {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
