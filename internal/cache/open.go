package cache

import (
	"context"
	"fmt"
	"time"
)

// Pinger is implemented by networked backends and used by the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options selects and configures a backend.
type Options struct {
	Backend        string // file, memory, memcached, valkey
	Dir            string
	MemcachedAddrs string
	ValkeyAddr     string
	Timeout        time.Duration
}

// Open constructs the backend named by opts.Backend. Callers should Close it when it implements io.Closer.
func Open(opts Options) (Cache, error) {
	switch opts.Backend {
	case "", "file":
		return NewFileCache(opts.Dir)
	case "memory":
		return NewInMemoryCache(), nil
	case "memcached":
		return NewMemcachedCache(opts.MemcachedAddrs, opts.Timeout, 0)
	case "valkey":
		return NewValkeyCache(opts.ValkeyAddr)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}
