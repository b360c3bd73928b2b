package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/kjstillabower/disaster-alert/internal/models"
)

// FileCache keeps one JSON document per location under dir.
// Writes go to a temp file and are renamed into place, so readers never see a partial entry.
// A single writer process per directory is assumed; there is no locking.
type FileCache struct {
	dir string
}

// NewFileCache creates dir if needed. An empty dir means the working directory.
func NewFileCache(dir string) (*FileCache, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileCache{dir: dir}, nil
}

// Path returns the file backing location's entry.
func (c *FileCache) Path(location string) string {
	return filepath.Join(c.dir, "cache_"+Key(location)+".json")
}

// Get returns (entry, true, nil) when a readable entry exists, (zero, false, nil) when the file
// is absent and an error when it cannot be read or decoded.
func (c *FileCache) Get(ctx context.Context, location string) (models.CacheEntry, bool, error) {
	if ctx.Err() != nil {
		return models.CacheEntry{}, false, ctx.Err()
	}
	raw, err := os.ReadFile(c.Path(location))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.CacheEntry{}, false, nil
		}
		return models.CacheEntry{}, false, fmt.Errorf("read cache entry: %w", err)
	}
	var entry models.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return models.CacheEntry{}, false, fmt.Errorf("decode cache entry: %w", err)
	}
	if entry.Location == "" {
		entry.Location = location
	}
	return entry, true, nil
}

// Set overwrites the entry for entry.Location. ttl is ignored; files are never evicted.
func (c *FileCache) Set(ctx context.Context, entry models.CacheEntry, ttl time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	raw, err := json.Marshal(fileEntry{CapturedAt: entry.CapturedAt, Sample: entry.Sample})
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	target := c.Path(entry.Location)
	tmp, err := os.CreateTemp(c.dir, filepath.Base(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

func (c *FileCache) Backend() string { return "file" }

// fileEntry is the on-disk document: {"timestamp": ..., "data": {...}}.
type fileEntry struct {
	CapturedAt time.Time            `json:"timestamp"`
	Sample     models.WeatherSample `json:"data"`
}
