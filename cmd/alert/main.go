package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/kjstillabower/disaster-alert/internal/cache"
	"github.com/kjstillabower/disaster-alert/internal/client"
	"github.com/kjstillabower/disaster-alert/internal/config"
	"github.com/kjstillabower/disaster-alert/internal/events"
	"github.com/kjstillabower/disaster-alert/internal/monitor"
	"github.com/kjstillabower/disaster-alert/internal/notify"
	"github.com/kjstillabower/disaster-alert/internal/observability"
	"github.com/kjstillabower/disaster-alert/internal/risk"
	"github.com/kjstillabower/disaster-alert/internal/service"
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
	if cfg.DefaultsWritten {
		logger.Info("default config written", zap.String("path", cfg.Path))
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

	weatherService := service.NewWeatherService(weatherClient, cacheSvc, cfg.CacheTTL, service.WithLogger(logger))
	model := risk.DefaultModel().WithLogger(logger)
	mailer := notify.NewMailer(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		From:     cfg.Email,
		Password: cfg.Password,
		Timeout:  cfg.SMTPTimeout,
	}, logger)

	opts := []monitor.Option{monitor.WithLogger(logger), monitor.WithOutput(os.Stdout)}
	var publisher *events.KafkaPublisher
	if len(cfg.EventBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.EventBrokers, cfg.EventTopic)
		opts = append(opts, monitor.WithPublisher(publisher))
		logger.Info("event sink enabled", zap.Strings("brokers", cfg.EventBrokers), zap.String("topic", cfg.EventTopic))
	}

	m := monitor.New(weatherService, model, mailer, cfg.Recipient, opts...)
	m.Run(context.Background(), cfg.Locations)

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
