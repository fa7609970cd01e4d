// Package main runs the studio HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	app "github.com/R3E-Network/studio_layer/internal/app"
	"github.com/R3E-Network/studio_layer/internal/app/bootstrap"
	"github.com/R3E-Network/studio_layer/internal/app/httpapi"
	"github.com/R3E-Network/studio_layer/internal/config"
	"github.com/R3E-Network/studio_layer/internal/middleware"
	"github.com/R3E-Network/studio_layer/pkg/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	envFile := flag.String("env", ".env", "Path to an optional .env file")
	addr := flag.String("addr", "", "Listen address (overrides SERVER_ADDR)")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *addr != "" {
		cfg.ServerAddr = *addr
	}

	rootLog, err := logger.New("studio-server", logger.LoggingConfig{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: cfg.LogOutput,
	})
	if err != nil {
		log.Fatalf("configure logging: %v", err)
	}

	if err := run(cfg, rootLog); err != nil {
		rootLog.WithError(err).Fatal("server stopped with error")
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.Build(ctx, cfg, log.Named("bootstrap"))
	if err != nil {
		return err
	}
	defer rt.Close()

	application, err := app.New(rt.Stores, rt.Options, log.Named("app"))
	if err != nil {
		return err
	}

	var limiter *middleware.RateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = middleware.NewRateLimiter(float64(cfg.RateLimitRPS), cfg.RateLimitBurst, log.Named("ratelimit"))
		if err := application.Attach(limiter); err != nil {
			return err
		}
	}

	sink, err := httpapi.NewFileAuditSink(cfg.AuditLogPath)
	if err != nil {
		return err
	}
	defer sink.Close()
	var auditSink httpapi.AuditSink
	if sink != nil {
		auditSink = sink
	}

	if err := application.Start(ctx); err != nil {
		return err
	}

	opts := httpapi.Options{
		Version:     version,
		CORSOrigins: cfg.AllowedOrigins(),
		RateLimiter: limiter,
		Audit:       httpapi.NewAuditLog(httpapi.DefaultAuditSize, auditSink),
		Log:         log.Named("httpapi"),
	}
	if rt.Upstream != nil {
		opts.Upstream = rt.Upstream
	}
	handler := httpapi.NewHandler(application, opts)
	server := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(map[string]interface{}{
			"addr":    cfg.ServerAddr,
			"version": version,
			"backend": cfg.StoreBackend,
		}).Info("studio API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			_ = application.Stop(context.Background())
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("service shutdown")
	}
	log.Info("stopped")
	return nil
}
