package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kjstillabower/disaster-alert/internal/traffic"
)

// clearEnv blanks the env overrides so a developer's shell does not leak into the tests.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"CONFIG_PATH", "SMTP_PASSWORD", "LOG_LEVEL", "CACHE_BACKEND", "MEMCACHED_ADDRS", "VALKEY_ADDR", "KAFKA_BROKERS"} {
		t.Setenv(k, "")
	}
}

// TestLoadFile_MissingWritesDefaults verifies that a missing config file is created with
// defaults and that the returned config carries those defaults.
func TestLoadFile_MissingWritesDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if !cfg.DefaultsWritten {
		t.Error("DefaultsWritten = false, want true")
	}
	if cfg.CacheTTL != 300*time.Second {
		t.Errorf("CacheTTL = %v, want 300s", cfg.CacheTTL)
	}
	if cfg.SMTPPort != 587 {
		t.Errorf("SMTPPort = %d, want 587", cfg.SMTPPort)
	}
	if cfg.Password != "your_password" {
		t.Errorf("Password = %q, want placeholder written with defaults", cfg.Password)
	}
	if cfg.SMTPHost != "smtp.example.com" {
		t.Errorf("SMTPHost = %q, want smtp.example.com", cfg.SMTPHost)
	}
	if got := strings.Join(cfg.Locations, ","); got != "Blumenau,Itajai,Brusque" {
		t.Errorf("Locations = %q, want Blumenau,Itajai,Brusque", got)
	}
	if cfg.CacheBackend != "file" {
		t.Errorf("CacheBackend = %q, want file", cfg.CacheBackend)
	}
	if cfg.DegradedWindow != 5*time.Minute || cfg.DegradedErrorPct != 50 {
		t.Errorf("degraded = %v/%d%%, want 5m/50%%", cfg.DegradedWindow, cfg.DegradedErrorPct)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("written config is not JSON: %v", err)
	}
	for _, key := range []string{"email", "password", "smtp_server", "smtp_port", "cache_duration"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("written config missing key %q", key)
		}
	}
	if !strings.Contains(string(data), "\n    \"email\"") {
		t.Error("written config should use 4-space indentation")
	}
}

// TestLoadFile_SecondLoadReadsWrittenFile verifies that the file written on first run is read back
// unchanged on the next start.
func TestLoadFile_SecondLoadReadsWrittenFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	if _, err := LoadFile(path); err != nil {
		t.Fatalf("first LoadFile() error = %v", err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("second LoadFile() error = %v", err)
	}
	if cfg.DefaultsWritten {
		t.Error("DefaultsWritten = true on second load, want false")
	}
}

// TestLoadFile_LegacyKeys verifies the minimal five-key file, including the "senha" credential key.
func TestLoadFile_LegacyKeys(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	writeFile(t, path, `{
    "email": "alerts@example.org",
    "senha": "s3cret",
    "smtp_server": "mail.example.org",
    "smtp_port": 2525,
    "cache_duration": 60
}`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Email != "alerts@example.org" {
		t.Errorf("Email = %q", cfg.Email)
	}
	if cfg.Password != "s3cret" {
		t.Errorf("Password = %q, want value from senha", cfg.Password)
	}
	if cfg.SMTPHost != "mail.example.org" || cfg.SMTPPort != 2525 {
		t.Errorf("SMTP = %s:%d, want mail.example.org:2525", cfg.SMTPHost, cfg.SMTPPort)
	}
	if cfg.CacheTTL != time.Minute {
		t.Errorf("CacheTTL = %v, want 1m", cfg.CacheTTL)
	}
	if len(cfg.Locations) != 3 {
		t.Errorf("Locations = %v, want defaults kept when key absent", cfg.Locations)
	}
}

// TestLoadFile_CredentialKeys verifies which key supplies the SMTP credential.
func TestLoadFile_CredentialKeys(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"senha only", `{"email":"a@b.c","senha":"s3cret","smtp_server":"h","smtp_port":587,"cache_duration":300}`, "s3cret"},
		{"password only", `{"password":"pw","cache_duration":300}`, "pw"},
		{"password wins over senha", `{"password":"pw","senha":"s3cret","cache_duration":300}`, "pw"},
		{"empty password falls back to senha", `{"password":"","senha":"s3cret","cache_duration":300}`, "s3cret"},
		{"neither", `{"cache_duration":300}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			path := filepath.Join(t.TempDir(), "config.json")
			writeFile(t, path, tt.content)
			cfg, err := LoadFile(path)
			if err != nil {
				t.Fatalf("LoadFile() error = %v", err)
			}
			if cfg.Password != tt.want {
				t.Errorf("Password = %q, want %q", cfg.Password, tt.want)
			}
		})
	}
}

// TestLoadFile_YAML verifies that .yaml paths are parsed as YAML.
func TestLoadFile_YAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, `
email: ops@example.org
password: pw
smtp_server: smtp.example.org
smtp_port: 465
cache_duration: 120
locations: [Joinville]
cache:
  backend: memcached
  memcached_addrs: "cache1:11211"
events:
  brokers: ["kafka:9092"]
server:
  request_timeout: "5s"
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.CacheBackend != "memcached" || cfg.MemcachedAddrs != "cache1:11211" {
		t.Errorf("cache = %s %s", cfg.CacheBackend, cfg.MemcachedAddrs)
	}
	if len(cfg.Locations) != 1 || cfg.Locations[0] != "Joinville" {
		t.Errorf("Locations = %v", cfg.Locations)
	}
	if len(cfg.EventBrokers) != 1 || cfg.EventBrokers[0] != "kafka:9092" {
		t.Errorf("EventBrokers = %v", cfg.EventBrokers)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Errorf("RequestTimeout = %v, want 5s", cfg.RequestTimeout)
	}
}

// TestLoadFile_EnvOverrides verifies that secrets and addresses from the environment win over the file.
func TestLoadFile_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SMTP_PASSWORD", "from-env")
	t.Setenv("CACHE_BACKEND", "VALKEY")
	t.Setenv("VALKEY_ADDR", "valkey:6379")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Password != "from-env" {
		t.Errorf("Password = %q, want from-env", cfg.Password)
	}
	if cfg.CacheBackend != "valkey" || cfg.ValkeyAddr != "valkey:6379" {
		t.Errorf("cache = %s %s", cfg.CacheBackend, cfg.ValkeyAddr)
	}
	if strings.Join(cfg.EventBrokers, ",") != "k1:9092,k2:9092" {
		t.Errorf("EventBrokers = %v", cfg.EventBrokers)
	}
}

// TestLoad_UsesConfigPathEnv verifies that Load honours CONFIG_PATH.
func TestLoad_UsesConfigPathEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "alert.json")
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Path != path {
		t.Errorf("Path = %q, want %q", cfg.Path, path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("config not written at CONFIG_PATH: %v", err)
	}
}

// TestLoadFile_ValidationErrors verifies that invalid values are rejected after load.
func TestLoadFile_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{"zero ttl", `{"cache_duration": 0}`, "cache_duration"},
		{"bad port", `{"cache_duration": 10, "smtp_port": 70000}`, "smtp_port"},
		{"bad backend", `{"cache_duration": 10, "cache": {"backend": "redis"}}`, "cache.backend"},
		{"no placeholder", `{"cache_duration": 10, "source_url": "https://example.com/weather"}`, "{location}"},
		{"negative rps", `{"cache_duration": 10, "scrape_rps": -1}`, "scrape_rps"},
		{"bad location", `{"cache_duration": 10, "locations": ["Blumenau", "../tmp"]}`, "locations"},
		{"bad degraded pct", `{"cache_duration": 10, "server": {"degraded_error_pct": 150}}`, "degraded_error_pct"},
		{"degraded window too long", `{"cache_duration": 10, "server": {"degraded_window": "1h"}}`, "degraded_window"},
		{"duplicate location", `{"cache_duration": 10, "locations": ["Itajai", "itajai"]}`, "duplicates"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			path := filepath.Join(t.TempDir(), "config.json")
			writeFile(t, path, tt.content)
			cfg, err := LoadFile(path)
			if err == nil {
				t.Fatalf("LoadFile() expected error, got config %+v", cfg)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("LoadFile() error = %v, want message containing %q", err, tt.wantMsg)
			}
		})
	}
}

// TestLoadFile_DegradedWindowAtLimit verifies the longest window the health tracker can serve is accepted.
func TestLoadFile_DegradedWindowAtLimit(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	writeFile(t, path, `{"cache_duration": 10, "server": {"degraded_window": "15m"}}`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.DegradedWindow != traffic.MaxWindow {
		t.Errorf("DegradedWindow = %v, want %v", cfg.DegradedWindow, traffic.MaxWindow)
	}
}

// TestLoadFile_InvalidJSON verifies that a corrupt config file is reported rather than overwritten.
func TestLoadFile_InvalidJSON(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	writeFile(t, path, `{"email": `)

	if _, err := LoadFile(path); err == nil {
		t.Fatal("LoadFile() expected parse error, got nil")
	}
	data, _ := os.ReadFile(path)
	if string(data) != `{"email": ` {
		t.Error("corrupt config file must not be overwritten")
	}
}

// TestParseDuration verifies fallback to the default for empty, invalid and non-positive input.
func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", time.Second},
		{"bogus", time.Second},
		{"-5s", time.Second},
		{"0s", time.Second},
		{" 250ms ", 250 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := parseDuration(tt.in, time.Second); got != tt.want {
			t.Errorf("parseDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
