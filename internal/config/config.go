package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kjstillabower/disaster-alert/internal/traffic"
	"github.com/kjstillabower/disaster-alert/internal/validation"
)

// DefaultPath is the config file used when CONFIG_PATH is not set.
const DefaultPath = "config.json"

// Config holds the alert system configuration. It is loaded once at startup and not modified afterwards.
type Config struct {
	Email       string
	Password    string
	SMTPHost    string
	SMTPPort    int
	SMTPTimeout time.Duration

	CacheTTL time.Duration

	Recipient string
	Locations []string

	SourceURL   string
	UserAgent   string
	HTTPTimeout time.Duration
	ScrapeRPS   float64

	CacheBackend   string // "file", "memory", "memcached" or "valkey"
	CacheDir       string
	MemcachedAddrs string
	ValkeyAddr     string

	LogLevel string
	LogFile  string

	PushGatewayURL string

	EventBrokers []string
	EventTopic   string

	ServerPort      string
	RequestTimeout  time.Duration
	RateLimitRPS    int
	RateLimitBurst  int
	ShutdownTimeout time.Duration

	// DegradedWindow and DegradedErrorPct drive the daemon health check: at or above this share of
	// failed acquisitions within the window, /health reports degraded. A zero percentage disables it.
	DegradedWindow   time.Duration
	DegradedErrorPct int

	// Path is the file the config was read from (or written to).
	Path string
	// DefaultsWritten is true when no file existed and a default one was created.
	DefaultsWritten bool
}

type fileConfig struct {
	Email         string `json:"email" yaml:"email"`
	Password      string `json:"password" yaml:"password"`
	LegacySenha   string `json:"senha,omitempty" yaml:"senha,omitempty"`
	SMTPServer    string `json:"smtp_server" yaml:"smtp_server"`
	SMTPPort      int    `json:"smtp_port" yaml:"smtp_port"`
	SMTPTimeout   string `json:"smtp_timeout" yaml:"smtp_timeout"`
	CacheDuration int    `json:"cache_duration" yaml:"cache_duration"`

	Recipient string   `json:"recipient" yaml:"recipient"`
	Locations []string `json:"locations" yaml:"locations"`

	SourceURL   string  `json:"source_url" yaml:"source_url"`
	UserAgent   string  `json:"user_agent" yaml:"user_agent"`
	HTTPTimeout string  `json:"http_timeout" yaml:"http_timeout"`
	ScrapeRPS   float64 `json:"scrape_rps" yaml:"scrape_rps"`

	Cache struct {
		Backend        string `json:"backend" yaml:"backend"`
		Dir            string `json:"dir" yaml:"dir"`
		MemcachedAddrs string `json:"memcached_addrs" yaml:"memcached_addrs"`
		ValkeyAddr     string `json:"valkey_addr" yaml:"valkey_addr"`
	} `json:"cache" yaml:"cache"`

	LogLevel string `json:"log_level" yaml:"log_level"`
	LogFile  string `json:"log_file" yaml:"log_file"`

	PushGatewayURL string `json:"push_gateway_url" yaml:"push_gateway_url"`

	Events struct {
		Brokers []string `json:"brokers" yaml:"brokers"`
		Topic   string   `json:"topic" yaml:"topic"`
	} `json:"events" yaml:"events"`

	Server struct {
		Port             string `json:"port" yaml:"port"`
		RequestTimeout   string `json:"request_timeout" yaml:"request_timeout"`
		RateLimitRPS     int    `json:"rate_limit_rps" yaml:"rate_limit_rps"`
		RateLimitBurst   int    `json:"rate_limit_burst" yaml:"rate_limit_burst"`
		ShutdownTimeout  string `json:"shutdown_timeout" yaml:"shutdown_timeout"`
		DegradedWindow   string `json:"degraded_window" yaml:"degraded_window"`
		DegradedErrorPct int    `json:"degraded_error_pct" yaml:"degraded_error_pct"`
	} `json:"server" yaml:"server"`
}

const (
	// defaultPassword is written to a fresh config file only, never used as a decode base.
	defaultPassword  = "your_password"
	defaultSourceURL = "https://www.climatempo.com.br/previsao-do-tempo/agora/cidade/107/{location}-sc"
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.3"
)

// defaultFileConfig is what gets written when the config file does not exist.
func defaultFileConfig() fileConfig {
	var fc fileConfig
	fc.Email = "your_email@example.com"
	fc.SMTPServer = "smtp.example.com"
	fc.SMTPPort = 587
	fc.SMTPTimeout = "15s"
	fc.CacheDuration = 300
	fc.Recipient = "recipient@example.com"
	fc.Locations = []string{"Blumenau", "Itajai", "Brusque"}
	fc.SourceURL = defaultSourceURL
	fc.UserAgent = defaultUserAgent
	fc.HTTPTimeout = "10s"
	fc.Cache.Backend = "file"
	fc.Cache.Dir = "."
	fc.Cache.MemcachedAddrs = "localhost:11211"
	fc.Cache.ValkeyAddr = "localhost:6379"
	fc.LogLevel = "info"
	fc.LogFile = "alert_system.log"
	fc.Events.Topic = "disaster-risk-events"
	fc.Server.Port = "8080"
	fc.Server.RequestTimeout = "30s"
	fc.Server.RateLimitRPS = 5
	fc.Server.RateLimitBurst = 10
	fc.Server.ShutdownTimeout = "30s"
	fc.Server.DegradedWindow = "5m"
	fc.Server.DegradedErrorPct = 50
	return fc
}

// Load reads the config file named by CONFIG_PATH (default config.json). When the file does not
// exist, defaults are written to it and used. A .env file in the working directory, if present,
// is loaded first so secrets such as SMTP_PASSWORD can stay out of the config file.
func Load() (*Config, error) {
	path := strings.TrimSpace(os.Getenv("CONFIG_PATH"))
	if path == "" {
		path = DefaultPath
	}
	return LoadFile(path)
}

// LoadFile is Load with an explicit path.
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	fc := defaultFileConfig()
	written := false
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(path, data, &fc); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	case os.IsNotExist(err):
		fc.Password = defaultPassword
		if err := save(path, fc); err != nil {
			return nil, err
		}
		written = true
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := fromFile(fc)
	cfg.Path = path
	cfg.DefaultsWritten = written
	applyEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// save writes fc to path, as YAML for .yaml/.yml paths and as indented JSON otherwise.
func save(path string, fc fileConfig) error {
	var (
		out []byte
		err error
	)
	if isYAML(path) {
		out, err = yaml.Marshal(fc)
	} else {
		out, err = json.MarshalIndent(fc, "", "    ")
	}
	if err != nil {
		return fmt.Errorf("encode default config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	return nil
}

func decode(path string, data []byte, fc *fileConfig) error {
	if isYAML(path) {
		return yaml.Unmarshal(data, fc)
	}
	return json.Unmarshal(data, fc)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func fromFile(fc fileConfig) *Config {
	cfg := &Config{
		Email:           strings.TrimSpace(fc.Email),
		Password:        fc.Password,
		SMTPHost:        strings.TrimSpace(fc.SMTPServer),
		SMTPPort:        fc.SMTPPort,
		SMTPTimeout:     parseDuration(fc.SMTPTimeout, 15*time.Second),
		CacheTTL:        time.Duration(fc.CacheDuration) * time.Second,
		Recipient:       strings.TrimSpace(fc.Recipient),
		Locations:       cleanList(fc.Locations),
		SourceURL:       strings.TrimSpace(fc.SourceURL),
		UserAgent:       fc.UserAgent,
		HTTPTimeout:     parseDuration(fc.HTTPTimeout, 10*time.Second),
		ScrapeRPS:       fc.ScrapeRPS,
		CacheBackend:    strings.TrimSpace(strings.ToLower(fc.Cache.Backend)),
		CacheDir:        strings.TrimSpace(fc.Cache.Dir),
		MemcachedAddrs:  strings.TrimSpace(fc.Cache.MemcachedAddrs),
		ValkeyAddr:      strings.TrimSpace(fc.Cache.ValkeyAddr),
		LogLevel:        strings.TrimSpace(fc.LogLevel),
		LogFile:         strings.TrimSpace(fc.LogFile),
		PushGatewayURL:  strings.TrimSpace(fc.PushGatewayURL),
		EventBrokers:    cleanList(fc.Events.Brokers),
		EventTopic:      strings.TrimSpace(fc.Events.Topic),
		ServerPort:      strings.TrimSpace(fc.Server.Port),
		RequestTimeout:  parseDuration(fc.Server.RequestTimeout, 30*time.Second),
		RateLimitRPS:    fc.Server.RateLimitRPS,
		RateLimitBurst:  fc.Server.RateLimitBurst,
		ShutdownTimeout: parseDuration(fc.Server.ShutdownTimeout, 30*time.Second),

		DegradedWindow:   parseDuration(fc.Server.DegradedWindow, 5*time.Minute),
		DegradedErrorPct: fc.Server.DegradedErrorPct,
	}
	if cfg.Password == "" {
		cfg.Password = fc.LegacySenha
	}
	if cfg.SMTPPort == 0 {
		cfg.SMTPPort = 587
	}
	if cfg.SourceURL == "" {
		cfg.SourceURL = defaultSourceURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "file"
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = "."
	}
	if cfg.EventTopic == "" {
		cfg.EventTopic = "disaster-risk-events"
	}
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	return cfg
}

// applyEnv lets the environment override secrets and deployment-specific addresses.
func applyEnv(cfg *Config) {
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND"))); v != "" {
		cfg.CacheBackend = v
	}
	if v := strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS")); v != "" {
		cfg.MemcachedAddrs = v
	}
	if v := strings.TrimSpace(os.Getenv("VALKEY_ADDR")); v != "" {
		cfg.ValkeyAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); v != "" {
		cfg.EventBrokers = cleanList(strings.Split(v, ","))
	}
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func cleanList(in []string) []string {
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// validate performs post-load validation of configuration values.
func validate(cfg *Config) error {
	if cfg.CacheTTL <= 0 {
		return fmt.Errorf("cache_duration must be positive, got %s", cfg.CacheTTL)
	}
	if cfg.SMTPPort <= 0 || cfg.SMTPPort > 65535 {
		return fmt.Errorf("smtp_port out of range: %d", cfg.SMTPPort)
	}
	if !strings.Contains(cfg.SourceURL, "{location}") {
		return fmt.Errorf("source_url must contain a {location} placeholder")
	}
	if cfg.ScrapeRPS < 0 {
		return fmt.Errorf("scrape_rps must not be negative")
	}
	switch cfg.CacheBackend {
	case "file", "memory", "memcached", "valkey":
		// valid
	default:
		return fmt.Errorf("cache.backend must be one of file, memory, memcached, valkey, got %q", cfg.CacheBackend)
	}
	if cfg.DegradedErrorPct < 0 || cfg.DegradedErrorPct > 100 {
		return fmt.Errorf("server.degraded_error_pct must be 0-100, got %d", cfg.DegradedErrorPct)
	}
	if cfg.DegradedWindow > traffic.MaxWindow {
		return fmt.Errorf("server.degraded_window must be at most %s, got %s", traffic.MaxWindow, cfg.DegradedWindow)
	}
	locations, err := validation.ValidateLocations(cfg.Locations)
	if err != nil {
		return fmt.Errorf("locations: %w", err)
	}
	cfg.Locations = locations
	return nil
}
