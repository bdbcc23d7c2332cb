package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/nimbus/internal/client"
	"github.com/kjstillabower/nimbus/internal/config"
	"github.com/kjstillabower/nimbus/internal/dashboard"
	httphandler "github.com/kjstillabower/nimbus/internal/http"
	"github.com/kjstillabower/nimbus/internal/observability"
	"github.com/kjstillabower/nimbus/internal/session"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	weatherClient, err := client.NewWeatherAPIClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.WeatherAPITimeout)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}

	healthConfig := &httphandler.HealthConfig{
		DegradedWindow:   cfg.DegradedWindow,
		DegradedErrorPct: cfg.DegradedErrorPct,
	}

	store, memcached := newSessionStore(cfg, logger)
	if memcached != nil {
		healthConfig.StorePing = memcached.Ping
	}

	handler := httphandler.NewHandler(weatherClient, store, newDashboardConfig(cfg), healthConfig, logger)

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}

	observability.RegisterRateLimitGauges(cfg.DegradedWindow)
	if len(cfg.TrackedLocations) > 0 {
		observability.SetTrackedLocations(cfg.TrackedLocations)
	}

	router := httphandler.NewRouter(handler, logger, limiter, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:        ":" + cfg.ServerPort,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		// Searches run two sequential upstream calls; leave room past the request timeout.
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting",
			zap.String("addr", ":"+cfg.ServerPort),
			zap.String("default_location", cfg.DefaultLocation),
			zap.String("default_unit", string(cfg.DefaultUnit)),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	handler.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, cfg.ShutdownInFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if memcached != nil {
		if err := memcached.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}

// newSessionStore builds the configured session backend. The memcached store is also returned
// so the caller can ping and close it.
func newSessionStore(cfg *config.Config, logger *zap.Logger) (session.Store, *session.MemcachedStore) {
	if cfg.SessionBackend == config.BackendMemcached {
		mc := session.NewMemcachedStore(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		logger.Info("session backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
		return mc, mc
	}
	logger.Info("session backend: in_memory", zap.Int("max_entries", cfg.SessionMaxEntries))
	return session.NewInMemoryStoreWithLimit(cfg.SessionMaxEntries), nil
}

func newDashboardConfig(cfg *config.Config) httphandler.DashboardConfig {
	return httphandler.DashboardConfig{
		Initial:           dashboard.InitialState{Location: cfg.DefaultLocation, Unit: cfg.DefaultUnit},
		ForecastDays:      cfg.ForecastDays,
		SessionTTL:        cfg.SessionTTL,
		LoadingExpiry:     cfg.LoadingExpiry,
		LocationMinLength: cfg.LocationMinLength,
		LocationMaxLength: cfg.LocationMaxLength,
	}
}
