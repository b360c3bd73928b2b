package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/disaster-alert/internal/models"
	"github.com/kjstillabower/disaster-alert/internal/observability"
)

// WeatherFetcher is implemented by the service layer to fetch weather for a location.
// Used by Warmer to avoid a circular dependency on the service package.
type WeatherFetcher interface {
	FetchWeather(ctx context.Context, location string) (models.WeatherSample, error)
}

// Warmer fills the cache for a list of locations so the first requests after startup are hits.
type Warmer struct {
	fetcher WeatherFetcher
	logger  *zap.Logger
}

// NewWarmer creates a Warmer that uses the given fetcher and logger.
func NewWarmer(fetcher WeatherFetcher, logger *zap.Logger) *Warmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Warmer{fetcher: fetcher, logger: logger}
}

// Warm fetches each location in order. Fetches go one at a time so the scrape limiter is respected.
// Returns the joined errors of the locations that failed; stops early if ctx is done.
func (w *Warmer) Warm(ctx context.Context, locations []string) error {
	start := time.Now()
	w.logger.Info("warming cache", zap.Int("locations", len(locations)))

	var errs []error
	for _, loc := range locations {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if _, err := w.fetcher.FetchWeather(ctx, loc); err != nil {
			errs = append(errs, fmt.Errorf("warm %s: %w", loc, err))
		}
	}

	duration := time.Since(start).Seconds()
	observability.CacheWarmingDuration.Observe(duration)
	w.logger.Info("cache warming complete", zap.Int("locations", len(locations)), zap.Int("errors", len(errs)), zap.Float64("duration_seconds", duration))
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
