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

	"github.com/wolfman30/medspa-booking-flow/cmd/mainconfig"
	"github.com/wolfman30/medspa-booking-flow/internal/api/router"
	"github.com/wolfman30/medspa-booking-flow/internal/app/bootstrap"
	"github.com/wolfman30/medspa-booking-flow/internal/catalog"
	appconfig "github.com/wolfman30/medspa-booking-flow/internal/config"
	"github.com/wolfman30/medspa-booking-flow/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/medspa-booking-flow/internal/http/middleware"
	"github.com/wolfman30/medspa-booking-flow/internal/observability/metrics"
	"github.com/wolfman30/medspa-booking-flow/pkg/logging"
)

func main() {
	// A local .env is optional.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting booking flow API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsHandler, flowMetrics := setupMetrics()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}
	handoffStore := bootstrap.BuildHandoffStore(cfg, redisClient, logger)

	submitter, err := bootstrap.BuildSubmitter(ctx, cfg, mainconfig.NewBookingQueueClient, logger)
	if err != nil {
		logger.Error("failed to set up booking submission", "error", err)
		os.Exit(1)
	}

	manager, err := bootstrap.BuildManager(cfg, handoffStore, submitter, flowMetrics, logger)
	if err != nil {
		logger.Error("failed to set up page manager", "error", err)
		os.Exit(1)
	}
	go manager.Run(ctx)

	var (
		records        handlers.RecordSource
		catalogHandler *handlers.CatalogHandler
	)
	if pool := bootstrap.ConnectPostgresPool(ctx, cfg.DatabaseURL, logger); pool != nil {
		defer pool.Close()
		repo := catalog.NewRepository(pool, logger)
		records = repo
		catalogHandler = handlers.NewCatalogHandler(repo, logger)
	}

	limiter := httpmiddleware.NewPageOpenLimiter(cfg.PageOpenRate, cfg.PageOpenBurst)
	go limiter.Run(ctx, 5*time.Minute)

	r := router.New(&router.Config{
		Logger: logger,
		Pages: handlers.NewPagesHandler(handlers.PagesConfig{
			Manager:              manager,
			Catalog:              records,
			ServiceSelectionPath: cfg.ServiceSelectionPath,
			AllowedOrigins:       cfg.CORSAllowedOrigins,
			Logger:               logger,
		}),
		Catalog:             catalogHandler,
		PageOpenLimiter:     limiter,
		MetricsHandler:      metricsHandler,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		SecureCookies:       cfg.SecureCookies,
		CatalogEditorSecret: cfg.CatalogEditorSecret,
	})

	// No WriteTimeout: widget websockets are long-lived and manage their own
	// deadlines.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Closing pages first disconnects widget websockets, which Shutdown does
	// not wait for.
	cancel()
	manager.Shutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

func setupMetrics() (http.Handler, *metrics.FlowMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewFlowMetrics(reg)
}
