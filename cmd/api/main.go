package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/esc-funnel/cmd/mainconfig"
	"github.com/wolfman30/esc-funnel/internal/api/router"
	"github.com/wolfman30/esc-funnel/internal/app/bootstrap"
	appconfig "github.com/wolfman30/esc-funnel/internal/config"
	"github.com/wolfman30/esc-funnel/internal/funnel"
	"github.com/wolfman30/esc-funnel/internal/observability/metrics"
	"github.com/wolfman30/esc-funnel/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.ForEnv(cfg.Env, cfg.LogLevel)
	logger.Info("starting esc-funnel API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      app.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	app.close(shutdownCtx)
	logger.Info("server stopped")
}

type app struct {
	handler http.Handler
	closers []func(ctx context.Context) error
	logger  *logging.Logger
}

func (a *app) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("shutdown step failed", "error", err)
		}
	}
}

// buildApp wires every component behind one router: the funnel session API,
// the ClickUp relay the funnel submits to, health and metrics.
func buildApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*app, error) {
	a := &app{logger: logger}
	registry := prometheus.NewRegistry()
	metricsHandler := setupMetrics(registry)
	funnelMetrics := metrics.NewFunnelMetrics(registry)
	relayMetrics := metrics.NewRelayMetrics(registry)
	loadAWS := mainconfig.LazyAWSConfig(cfg)

	tenants, err := bootstrap.BuildTenants(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	checks := map[string]router.HealthCheck{}
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		checks["redis"] = redisCheck(redisClient)
		a.closers = append(a.closers, func(context.Context) error { return redisClient.Close() })
	}

	sender, provider, err := bootstrap.BuildEmailSender(ctx, cfg, loadAWS, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("lead e-mail configured", "provider", provider)

	relayHandler, err := bootstrap.BuildRelay(cfg, tenants, sender, relayMetrics, false, logger)
	if err != nil {
		return nil, err
	}
	submitter, err := bootstrap.BuildSubmitter(cfg, logger)
	if err != nil {
		return nil, err
	}
	dispatcher, err := bootstrap.BuildAnalytics(ctx, cfg, tenants, loadAWS, funnelMetrics, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, dispatcher.Close)

	svc := funnel.NewService(funnel.ServiceConfig{
		Registry:   tenants.Registry,
		Default:    tenants.Default,
		Store:      bootstrap.BuildDraftStore(cfg, redisClient, logger),
		Submitter:  submitter,
		Notifier:   dispatcher,
		Cities:     bootstrap.BuildCityProvider(cfg, redisClient, logger),
		Metrics:    funnelMetrics,
		PurgeDelay: cfg.DraftPurgeDelay,
		WhatsApp:   funnel.WhatsApp{Number: cfg.WhatsAppNumber, Message: cfg.WhatsAppMessage},
		Logger:     logger,
	})

	a.handler = router.New(&router.Config{
		Logger:             logger,
		Funnel:             funnel.NewHandler(svc, logger).Routes,
		Relay:              relayHandler,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		HealthChecks:       checks,
	})
	logger.Info("funnel ready", "relay_url", bootstrap.RelayURL(cfg), "tenants", tenants.Registry.Len())
	return a, nil
}

func setupMetrics(registry *prometheus.Registry) http.Handler {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

func redisCheck(client *redis.Client) router.HealthCheck {
	return func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping: %w", err)
		}
		return nil
	}
}
