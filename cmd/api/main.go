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
	"github.com/wolfman30/context-rot-monitor/internal/api/router"
	"github.com/wolfman30/context-rot-monitor/internal/app/bootstrap"
	appconfig "github.com/wolfman30/context-rot-monitor/internal/config"
	httpmiddleware "github.com/wolfman30/context-rot-monitor/internal/http/middleware"
	"github.com/wolfman30/context-rot-monitor/internal/monitor"
	"github.com/wolfman30/context-rot-monitor/internal/observability/metrics"
	"github.com/wolfman30/context-rot-monitor/pkg/logging"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting context-rot-monitor API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"version", cfg.Version,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, svc, err := buildServer(ctx, cfg, logger, prometheus.NewRegistry())
	if err != nil {
		logger.Error("failed to build server", "error", err)
		os.Exit(1)
	}
	go svc.Run(ctx)

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
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// setupMetrics registers the drift collectors plus the process and Go
// runtime collectors, and returns the scrape handler.
func setupMetrics(reg *prometheus.Registry) (http.Handler, *metrics.DriftMetrics) {
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewDriftMetrics(reg)
}

// buildServer wires the monitor service and HTTP stack. ctx bounds the
// background goroutines owned by the rate limiter.
func buildServer(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, reg *prometheus.Registry) (*http.Server, *monitor.Service, error) {
	metricsHandler, driftMetrics := setupMetrics(reg)

	analyst, provider, err := bootstrap.BuildSupervisor(ctx, cfg, bootstrap.LoadAWSConfig, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("build supervisor: %w", err)
	}

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	svc, err := monitor.NewService(cfg.SessionOptions(), monitor.Dependencies{
		Analyst:  analyst,
		Alerts:   bootstrap.BuildAlertJournal(redisClient, cfg, logger),
		Metrics:  driftMetrics,
		Gatherer: reg,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("build monitor service: %w", err)
	}

	var limiter *httpmiddleware.RateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = httpmiddleware.NewRateLimiter(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	handler := router.New(&router.Config{
		Logger: logger,
		Monitor: monitor.NewHandler(svc, monitor.HandlerConfig{
			Version:            cfg.Version,
			SupervisorProvider: provider,
		}, logger),
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        limiter,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, svc, nil
}
