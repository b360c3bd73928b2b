package observability

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

// TestLoggerFromContext verifies request-scoped loggers win over the fallback.
func TestLoggerFromContext(t *testing.T) {
	base := zap.NewExample()
	scoped := zap.NewExample().With(zap.String("correlation_id", "abc"))

	if got := LoggerFromContext(context.Background(), base); got != base {
		t.Error("LoggerFromContext() without scoped logger should return fallback")
	}
	if got := LoggerFromContext(WithLogger(context.Background(), scoped), base); got != scoped {
		t.Error("LoggerFromContext() should return scoped logger")
	}
	if got := LoggerFromContext(context.Background(), nil); got == nil {
		t.Error("LoggerFromContext() with nil fallback should return a no-op logger")
	}
}

// TestCorrelationID verifies the correlation ID round trip through a context.
func TestCorrelationID(t *testing.T) {
	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID() = %q, want empty", got)
	}
	ctx := WithCorrelationID(context.Background(), "req-1")
	if got := CorrelationID(ctx); got != "req-1" {
		t.Errorf("CorrelationID() = %q, want req-1", got)
	}
}
