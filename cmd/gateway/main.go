package main

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/streamspace/authgateway/internal/apperr"
	"github.com/streamspace/authgateway/internal/cache"
	"github.com/streamspace/authgateway/internal/config"
	"github.com/streamspace/authgateway/internal/forwarder"
	"github.com/streamspace/authgateway/internal/gateway"
	"github.com/streamspace/authgateway/internal/logging"
	"github.com/streamspace/authgateway/internal/metrics"
	"github.com/streamspace/authgateway/internal/middleware"
	"github.com/streamspace/authgateway/internal/permclient"
	"github.com/streamspace/authgateway/internal/registry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logging.Initialize(cfg.LogLevel, cfg.LogPretty)
	log := logging.Gateway()

	mirror, err := cache.New(cache.Config{
		Addr:    cfg.RedisAddr,
		Enabled: cfg.RedisEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("could not initialize cache")
	}
	defer mirror.Close()

	sidecarParsed, err := url.Parse(cfg.SidecarURL)
	if err != nil {
		log.Fatal().Err(err).Str("sidecar_url", cfg.SidecarURL).Msg("invalid SIDECAR_URL")
	}

	reg := registry.New()
	permClient := permclient.New(cfg.PermissionURL, cfg.Permissions, mirror)
	fwd := forwarder.New(sidecarParsed)

	handler := gateway.New(cfg, reg, permClient, fwd)
	handler.SetMirror(mirror)

	var metricsCollector *metrics.Collector
	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		metricsCollector, metricsHandler = metrics.New()
		handler.SetMetrics(metricsCollector)
	}

	sweeper := registry.NewSweeper(reg, mirror, cfg.SweepInterval)
	sweeper.Start()
	defer sweeper.Stop()

	if cfg.MetricsEnabled {
		go reportRegistrySize(reg, metricsCollector)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(apperr.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.StructuredLogger())
	router.Use(middleware.AllowedHTTPMethods())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.Timeout(middleware.DefaultTimeoutConfig()))
	router.Use(middleware.DefaultSizeLimiter())
	router.Use(apperr.Handler())

	if cfg.MetricsEnabled {
		router.Use(metricsCollector.Middleware())
		router.GET("/metrics", gin.WrapH(metricsHandler))
	}

	ipLimiter := middleware.NewRateLimiter(50, 100)
	router.Use(ipLimiter.Middleware())
	router.GET(
		"/get_websocket_key",
		ipLimiter.StrictMiddleware(middleware.DefaultSocketKeyRequestsPerMinute),
		middleware.Gzip(middleware.DefaultCompression),
		handler.Dispatch,
	)

	handler.Register(router)

	srv := &http.Server{
		Addr:    cfg.ListeningAddress,
		Handler: router,

		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.ListeningAddress).Msg("gateway listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("server forced to shut down")
	}
}

// reportRegistrySize periodically mirrors the registry's live session count
// into the gauge metrics exposes, since sessions are inserted/evicted from
// several call sites (dispatch, sweep, per-session timer) and polling is
// simpler than threading a callback through all of them.
func reportRegistrySize(reg *registry.SafeSessions, collector *metrics.Collector) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		collector.SetRegistrySize(reg.Len())
	}
}
