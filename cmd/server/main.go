package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/veritas-legal/clausecore/internal/app"
	"github.com/veritas-legal/clausecore/internal/middleware"
	"github.com/veritas-legal/clausecore/internal/router"
)

// Version, GitCommit and BuiltAt are injected at build time via -ldflags.
var (
	Version   = "dev"
	GitCommit = ""
	BuiltAt   = ""
)

func run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a, err := app.New(ctx, Version, GitCommit, BuiltAt)
	if err != nil {
		return err
	}
	defer a.Close()

	queryLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		MaxRequests: a.Config.RateLimitPerMin,
		Window:      time.Minute,
	})
	defer queryLimiter.Stop()
	slackLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		MaxRequests: 20,
		Window:      time.Minute,
	})
	defer slackLimiter.Stop()

	routerDeps := &router.Dependencies{
		DB:                 a,
		Audit:              a.AuditSink,
		Build:              a.Build,
		Metrics:            a.Metrics,
		MetricsReg:         a.MetricsReg,
		Orchestrator:       a.Orchestrator,
		SourceStore:        a.ChunkStore,
		APIBearerToken:     a.Config.APIBearerToken,
		ChatSigningSecret:  a.Config.ChatSigningSecret,
		DefaultSlackSource: envOr("SLACK_DEFAULT_SOURCE", ""),
		RequestTimeout:     a.Config.RequestDeadline,
		QueryRateLimiter:   queryLimiter,
		SlackRateLimiter:   slackLimiter,
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Port),
		Handler:      router.New(routerDeps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("clausecore starting", "version", Version, "port", a.Config.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("received signal, shutting down gracefully", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
