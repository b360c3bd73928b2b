package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/disaster-alert/internal/cache"
	"github.com/kjstillabower/disaster-alert/internal/client"
	"github.com/kjstillabower/disaster-alert/internal/config"
	"github.com/kjstillabower/disaster-alert/internal/events"
	httphandler "github.com/kjstillabower/disaster-alert/internal/http"
	"github.com/kjstillabower/disaster-alert/internal/lifecycle"
	"github.com/kjstillabower/disaster-alert/internal/monitor"
	"github.com/kjstillabower/disaster-alert/internal/notify"
	"github.com/kjstillabower/disaster-alert/internal/observability"
	"github.com/kjstillabower/disaster-alert/internal/risk"
	"github.com/kjstillabower/disaster-alert/internal/service"
	"github.com/kjstillabower/disaster-alert/internal/traffic"
)

const (
	inFlightCheckInterval = 100 * time.Millisecond
	warmTimeout           = 2 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := observability.NewLogger(observability.LoggerOptions{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	weatherClient, err := client.NewScrapeClient(cfg.SourceURL, cfg.UserAgent, cfg.HTTPTimeout, cfg.ScrapeRPS)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}

	cacheSvc, err := cache.Open(cache.Options{
		Backend:        cfg.CacheBackend,
		Dir:            cfg.CacheDir,
		MemcachedAddrs: cfg.MemcachedAddrs,
		ValkeyAddr:     cfg.ValkeyAddr,
		Timeout:        cfg.HTTPTimeout,
	})
	if err != nil {
		logger.Fatal("cache", zap.Error(err))
	}
	logger.Info("cache backend", zap.String("backend", cacheSvc.Backend()))

	// Concurrent /risk calls for one city share a single scrape.
	weatherService := service.NewWeatherService(weatherClient, cacheSvc, cfg.CacheTTL,
		service.WithLogger(logger),
		service.WithCoalescing(cfg.RequestTimeout))
	model := risk.DefaultModel().WithLogger(logger)
	mailer := notify.NewMailer(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		From:     cfg.Email,
		Password: cfg.Password,
		Timeout:  cfg.SMTPTimeout,
	}, logger)

	monitorOpts := []monitor.Option{monitor.WithLogger(logger), monitor.WithOutput(io.Discard)}
	var publisher *events.KafkaPublisher
	if len(cfg.EventBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.EventBrokers, cfg.EventTopic)
		monitorOpts = append(monitorOpts, monitor.WithPublisher(publisher))
		logger.Info("event sink enabled", zap.Strings("brokers", cfg.EventBrokers), zap.String("topic", cfg.EventTopic))
	}
	sweeper := monitor.New(weatherService, model, mailer, cfg.Recipient, monitorOpts...)

	tracker := traffic.NewTracker(nil)
	handlerOpts := []httphandler.HandlerOption{
		httphandler.WithHandlerLogger(logger),
		httphandler.WithTraffic(tracker, cfg.DegradedWindow, cfg.DegradedErrorPct),
	}
	if pinger, ok := cacheSvc.(cache.Pinger); ok {
		handlerOpts = append(handlerOpts, httphandler.WithCachePing(pinger.Ping))
	}
	handler := httphandler.NewHandler(weatherService, model, sweeper, cfg.Locations, handlerOpts...)

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	router := httphandler.NewRouter(handler, httphandler.RouterConfig{
		Logger:         logger,
		Limiter:        limiter,
		RequestTimeout: cfg.RequestTimeout,
		Traffic:        tracker,
	})

	ctx, stop := lifecycle.SignalContext(context.Background())
	defer stop()

	go func() {
		warmCtx, cancel := context.WithTimeout(ctx, warmTimeout)
		defer cancel()
		if err := cache.NewWarmer(weatherService, logger).Warm(warmCtx, cfg.Locations); err != nil {
			logger.Warn("cache warming incomplete", zap.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:        ":" + cfg.ServerPort,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.Int("locations", len(cfg.Locations)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests", zap.Int64("count", httphandler.InFlightCount()))
	if err := httphandler.WaitForInFlight(shutdownCtx, inFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("event sink close", zap.Error(err))
		}
	}
	if closer, ok := cacheSvc.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logger.Error("cache close", zap.Error(err))
		}
	}
	if err := observability.FlushTelemetry(context.Background(), logger, cfg.PushGatewayURL); err != nil {
		fmt.Fprintf(os.Stderr, "telemetry flush: %v\n", err)
	}
}
