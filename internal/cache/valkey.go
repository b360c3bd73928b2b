package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/kjstillabower/disaster-alert/internal/models"
)

// ValkeyCache implements Cache using a Valkey (or Redis-compatible) server.
type ValkeyCache struct {
	client valkey.Client
	prefix string
}

// NewValkeyCache dials addr, which is either host:port or a valkey:// / redis:// URL.
func NewValkeyCache(addr string) (*ValkeyCache, error) {
	var (
		opt valkey.ClientOption
		err error
	)
	if strings.Contains(addr, "://") {
		opt, err = valkey.ParseURL(addr)
	} else {
		opt = valkey.ClientOption{InitAddress: []string{addr}}
	}
	if err != nil {
		return nil, fmt.Errorf("parse valkey address: %w", err)
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		return nil, fmt.Errorf("create valkey client: %w", err)
	}
	return NewValkeyCacheWithClient(client, ""), nil
}

// NewValkeyCacheWithClient wraps an existing client. prefix defaults to "weather".
func NewValkeyCacheWithClient(client valkey.Client, prefix string) *ValkeyCache {
	if prefix == "" {
		prefix = "weather"
	}
	return &ValkeyCache{client: client, prefix: prefix}
}

func (c *ValkeyCache) key(location string) string {
	return fmt.Sprintf("%s:%s", c.prefix, Key(location))
}

// Get implements Cache.Get. Returns false, nil when the key does not exist.
func (c *ValkeyCache) Get(ctx context.Context, location string) (models.CacheEntry, bool, error) {
	cmd := c.client.B().Get().Key(c.key(location)).Build()
	payload, err := c.client.Do(ctx, cmd).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return models.CacheEntry{}, false, nil
		}
		return models.CacheEntry{}, false, err
	}
	var entry models.CacheEntry
	if err := json.Unmarshal([]byte(payload), &entry); err != nil {
		return models.CacheEntry{}, false, err
	}
	return entry, true, nil
}

// Set implements Cache.Set with a key expiry of ttl (at least one second).
func (c *ValkeyCache) Set(ctx context.Context, entry models.CacheEntry, ttl time.Duration) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	builder := c.client.B().Set().Key(c.key(entry.Location)).Value(string(payload))
	var cmd valkey.Completed
	if ttl > 0 {
		if ttl < time.Second {
			ttl = time.Second
		}
		cmd = builder.Ex(ttl).Build()
	} else {
		cmd = builder.Build()
	}
	return c.client.Do(ctx, cmd).Error()
}

func (c *ValkeyCache) Backend() string { return "valkey" }

// Ping checks if the server is reachable. Used for health checks.
func (c *ValkeyCache) Ping(ctx context.Context) error {
	return c.client.Do(ctx, c.client.B().Ping().Build()).Error()
}

// Close releases the client's connections.
func (c *ValkeyCache) Close() error {
	c.client.Close()
	return nil
}

var _ Cache = (*ValkeyCache)(nil)
