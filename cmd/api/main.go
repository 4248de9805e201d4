package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"bloodwork-backend/internal/bootstrap"
	"bloodwork-backend/internal/shared/config"
	"bloodwork-backend/internal/shared/server"
	"bloodwork-backend/internal/shared/telemetry"
	"bloodwork-backend/internal/shared/tracing"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()
	if !telemetry.SetLevel(cfg.LogLevel) {
		telemetry.Warn("config.invalid_log_level", map[string]any{"value": cfg.LogLevel})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, "bloodwork-api")
	if err != nil {
		log.Fatalf("tracing init: %v", err)
	}

	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}

	// A run may wait on the model for the full call timeout plus one retry.
	writeTimeout := 2*cfg.LLMTimeout + 30*time.Second
	srv := &http.Server{
		Addr:              server.Addr(cfg.Port),
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		telemetry.Info("server.start", map[string]any{"addr": srv.Addr, "env": cfg.Env})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		telemetry.Info("server.shutdown", map[string]any{"addr": srv.Addr})

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if tErr := shutdownTracing(shutdownCtx); tErr != nil {
			telemetry.Warn("tracing.shutdown_failed", map[string]any{"error": tErr.Error()})
		}
		if cErr := app.Close(); cErr != nil {
			telemetry.Warn("app.close_failed", map[string]any{"error": cErr.Error()})
		}
		return err
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("server error: %v", err)
	}
	telemetry.Info("server.stopped", nil)
}
