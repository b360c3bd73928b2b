package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/kjstillabower/disaster-alert/internal/cache"
	"github.com/kjstillabower/disaster-alert/internal/client"
	"github.com/kjstillabower/disaster-alert/internal/models"
	"github.com/kjstillabower/disaster-alert/internal/observability"
)

// ErrAcquisition wraps every failure to obtain a sample for a location.
var ErrAcquisition = errors.New("weather acquisition failed")

// WeatherService serves samples cache-aside: a fresh entry is returned as is, anything else
// triggers one upstream fetch whose result replaces the entry.
type WeatherService struct {
	client    client.WeatherClient
	cache     cache.Cache
	ttl       time.Duration
	clock     clockwork.Clock
	logger    *zap.Logger
	coalescer *requestCoalescer // nil unless WithCoalescing
}

// Option configures a WeatherService.
type Option func(*WeatherService)

// WithClock replaces the wall clock used for entry timestamps and freshness checks.
func WithClock(clock clockwork.Clock) Option {
	return func(s *WeatherService) { s.clock = clock }
}

// WithLogger sets the logger used when the request context carries none.
func WithLogger(logger *zap.Logger) Option {
	return func(s *WeatherService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCoalescing shares one upstream fetch among concurrent callers for the same location.
// timeout bounds how long a caller waits; 0 disables coalescing.
func WithCoalescing(timeout time.Duration) Option {
	return func(s *WeatherService) {
		if timeout > 0 {
			s.coalescer = newRequestCoalescer(timeout)
		}
	}
}

// NewWeatherService creates a WeatherService. ttl is the maximum age of a cache entry served without refetching.
func NewWeatherService(client client.WeatherClient, cache cache.Cache, ttl time.Duration, opts ...Option) *WeatherService {
	s := &WeatherService{
		client: client,
		cache:  cache,
		ttl:    ttl,
		clock:  clockwork.NewRealClock(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchWeather returns the sample for location. A cache read error is logged and treated as a miss;
// fetch and cache write errors are returned wrapped in ErrAcquisition. Samples with missing fields
// are returned and cached like complete ones.
func (s *WeatherService) FetchWeather(ctx context.Context, location string) (models.WeatherSample, error) {
	start := s.clock.Now()
	logger := observability.LoggerFromContext(ctx, s.logger).With(zap.String("location", location))
	backend := s.cache.Backend()

	entry, ok, err := s.cache.Get(ctx, location)
	switch {
	case err != nil:
		observability.CacheErrorsTotal.WithLabelValues("get", backend).Inc()
		logger.Warn("cache read failed, fetching live", zap.String("backend", backend), zap.Error(err))
	case ok && s.fresh(entry, start):
		observability.CacheHitsTotal.WithLabelValues(backend).Inc()
		logger.Info("cache hit", zap.Time("captured_at", entry.CapturedAt))
		return entry.Sample, nil
	}
	observability.CacheMissesTotal.WithLabelValues(backend).Inc()
	logger.Debug("cache miss, fetching upstream", zap.Bool("stale", ok))

	var sample models.WeatherSample
	if s.coalescer != nil {
		var joined bool
		sample, joined, err = s.coalescer.GetOrDo(ctx, cache.Key(location), func() (models.WeatherSample, error) {
			return s.fetchAndStore(context.WithoutCancel(ctx), location)
		})
		if joined {
			logger.Debug("joined in-flight fetch")
		}
	} else {
		sample, err = s.fetchAndStore(ctx, location)
	}
	if err != nil {
		category := client.CategorizeError(err)
		observability.AcquisitionErrorsTotal.WithLabelValues(string(category)).Inc()
		logger.Error("weather acquisition failed", zap.String("category", string(category)), zap.Error(err))
		return models.WeatherSample{}, fmt.Errorf("%w for %s: %w", ErrAcquisition, location, err)
	}

	logger.Info("weather fetched", zap.Bool("complete", sample.Complete()), zap.Duration("duration", s.clock.Since(start)))
	return sample, nil
}

// fresh reports whether entry is younger than the TTL at now. Entries stamped in the future are stale.
func (s *WeatherService) fresh(entry models.CacheEntry, now time.Time) bool {
	age := now.Sub(entry.CapturedAt)
	return age >= 0 && age < s.ttl
}

func (s *WeatherService) fetchAndStore(ctx context.Context, location string) (models.WeatherSample, error) {
	sample, err := s.client.FetchSample(ctx, location)
	if err != nil {
		return models.WeatherSample{}, err
	}

	entry := models.CacheEntry{
		Location:   location,
		CapturedAt: s.clock.Now(),
		Sample:     sample,
	}
	if err := s.cache.Set(ctx, entry, s.ttl); err != nil {
		observability.CacheErrorsTotal.WithLabelValues("set", s.cache.Backend()).Inc()
		return models.WeatherSample{}, fmt.Errorf("write cache entry: %w", err)
	}
	return sample, nil
}
