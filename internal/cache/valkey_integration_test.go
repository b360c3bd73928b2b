//go:build integration
// +build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/kjstillabower/disaster-alert/internal/models"
)

// TestValkeyCache_GetSet_Integration verifies a round trip against a local valkey server.
func TestValkeyCache_GetSet_Integration(t *testing.T) {
	c, err := NewValkeyCache("localhost:6379")
	if err != nil {
		t.Skipf("valkey not reachable: %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	if err := c.Ping(ctx); err != nil {
		t.Skipf("valkey ping failed: %v", err)
	}
	entry := models.CacheEntry{Location: "Itajai", CapturedAt: time.Now().UTC().Truncate(time.Second), Sample: models.NewSample(22, 80, 10)}
	if err := c.Set(ctx, entry, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, err := c.Get(ctx, "Itajai")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if !got.CapturedAt.Equal(entry.CapturedAt) || *got.Sample.Humidity != 80 {
		t.Errorf("Get() = %+v, want %+v", got, entry)
	}

	_, ok, err = c.Get(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("Get(miss) error = %v", err)
	}
	if ok {
		t.Error("Get(miss) ok = true, want false")
	}
}
