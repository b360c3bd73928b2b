package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"
)

// PushJob is the Pushgateway job label for sweep metrics.
const PushJob = "disaster_alert"

// PushMetrics sends the registry to a Prometheus Pushgateway. The one-shot sweep exits before
// anything could scrape it, so this is how its counters reach Prometheus. No-op when url is empty.
func PushMetrics(ctx context.Context, url string) error {
	if url == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := push.New(url, PushJob).Gatherer(registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}

// FlushTelemetry pushes metrics (when a gateway is configured) and flushes logs before process exit.
func FlushTelemetry(ctx context.Context, logger *zap.Logger, pushURL string) error {
	var firstErr error
	if err := PushMetrics(ctx, pushURL); err != nil {
		firstErr = err
	}
	if logger != nil {
		if err := logger.Sync(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("flush logs: %w", err)
		}
	}
	return firstErr
}
