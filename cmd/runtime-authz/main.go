package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/astro-web3/runtime-authz/internal/config"
	httptransport "github.com/astro-web3/runtime-authz/internal/transport/http"
	"github.com/astro-web3/runtime-authz/pkg/logger"
	"github.com/astro-web3/runtime-authz/pkg/otel"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.MustLoad()
	ctx := context.Background()

	// NewServer initializes the logger before anything else can fail.
	srv, err := httptransport.NewServer(cfg)
	if err != nil {
		logger.ErrorContext(ctx, "failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	serverErrChan := make(chan error, 1)
	go func() {
		logger.InfoContext(ctx, "starting runtime authz", startupAttrs(cfg)...)
		if listenErr := srv.ListenAndServe(); listenErr != nil &&
			!errors.Is(listenErr, http.ErrServerClosed) {
			serverErrChan <- listenErr
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.InfoContext(ctx, "shutting down", slog.String("signal", sig.String()))
	case serverErr := <-serverErrChan:
		logger.ErrorContext(ctx, "server failed, shutting down", slog.String("error", serverErr.Error()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, shutdownTimeout)
	defer shutdownCancel()

	// Also closes the permission store and the tenant cache.
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.ErrorContext(ctx, "server forced to shutdown", slog.String("error", shutdownErr.Error()))
	} else {
		logger.InfoContext(ctx, "server stopped")
	}

	if shutdownErr := otel.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.ErrorContext(ctx, "failed to shutdown tracer provider", slog.String("error", shutdownErr.Error()))
	}
}

func startupAttrs(cfg *config.Config) []slog.Attr {
	permissionStore := "deny_all"
	if cfg.Database.DSN != "" {
		permissionStore = "postgres"
	}

	tenantMode := "static"
	switch {
	case cfg.Tenant.DirectoryURL != "" && cfg.Redis.URL != "":
		tenantMode = "directory_cached"
	case cfg.Tenant.DirectoryURL != "":
		tenantMode = "directory"
	}

	return []slog.Attr{
		slog.String("addr", cfg.Server.Addr),
		slog.String("mode", cfg.Server.Mode),
		slog.String("permission_store", permissionStore),
		slog.Bool("auto_migrate", cfg.Database.AutoMigrate),
		slog.String("tenant_mode", tenantMode),
		slog.String("tenant_header", cfg.Tenant.Header),
		slog.String("tenant_base_domain", cfg.Tenant.BaseDomain),
		slog.String("upstream", cfg.Upstream.URL),
		slog.Bool("metrics", cfg.Observability.MetricsEnabled),
		slog.Bool("tracing", cfg.Observability.TraceEnabled),
	}
}
