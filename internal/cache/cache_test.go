package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjstillabower/disaster-alert/internal/models"
)

// TestKey verifies that cache keys are lower-cased and stripped of separators.
func TestKey(t *testing.T) {
	tests := []struct {
		location string
		want     string
	}{
		{"Blumenau", "blumenau"},
		{"  Itajai ", "itajai"},
		{"Balneário Camboriú", "balneário_camboriú"},
		{"../etc/passwd", "___etc_passwd"},
		{"São José-SC", "são_josé_sc"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Key(tt.location), "Key(%q)", tt.location)
	}
}

// TestInMemoryCache_GetSet verifies that Set stores entries and Get retrieves
// them regardless of the location's case.
func TestInMemoryCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	entry := models.CacheEntry{
		Location:   "Blumenau",
		CapturedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Sample:     models.NewSample(30, 85, 20),
	}
	require.NoError(t, c.Set(ctx, entry, time.Minute))

	got, ok, err := c.Get(ctx, "blumenau")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, entry, got)
	assert.Equal(t, "memory", c.Backend())
}

// TestInMemoryCache_Get_Miss verifies that Get returns ok=false when
// the requested location has never been stored.
func TestInMemoryCache_Get_Miss(t *testing.T) {
	_, ok, err := NewInMemoryCache().Get(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestOpen verifies backend selection by name.
func TestOpen(t *testing.T) {
	c, err := Open(Options{Backend: "file", Dir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "file", c.Backend())

	c, err = Open(Options{Backend: "memory"})
	require.NoError(t, err)
	assert.Equal(t, "memory", c.Backend())

	c, err = Open(Options{Backend: "memcached", MemcachedAddrs: "localhost:11211"})
	require.NoError(t, err)
	assert.Equal(t, "memcached", c.Backend())

	_, err = Open(Options{Backend: "redis"})
	assert.Error(t, err)
}

// TestParseAddrs verifies comma-separated memcached address parsing.
func TestParseAddrs(t *testing.T) {
	assert.Equal(t, []string{"a:1", "b:2"}, parseAddrs(" a:1, ,b:2 "))
	assert.Empty(t, parseAddrs(""))
}
