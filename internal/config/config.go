package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port          string
	DBPath        string
	APIKey        string
	BaseURL       string
	GeoIPPath     string
	CacheSize     int
	CacheTTL      time.Duration
	SweepInterval time.Duration
	IPFilter      bool
}

func Load() (*Config, error) {
	apiKey := os.Getenv("TRIMR_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("TRIMR_API_KEY is required")
	}

	cfg := &Config{
		Port:          envOrDefault("TRIMR_PORT", "8080"),
		DBPath:        envOrDefault("TRIMR_DB_PATH", "./trimr.db"),
		APIKey:        apiKey,
		GeoIPPath:     os.Getenv("TRIMR_GEOIP_PATH"),
		CacheSize:     parseInt("TRIMR_CACHE_SIZE", 10000),
		CacheTTL:      parseDuration("TRIMR_CACHE_TTL", time.Minute),
		SweepInterval: parseDuration("TRIMR_SWEEP_INTERVAL", 5*time.Minute),
		IPFilter:      os.Getenv("TRIMR_IP_FILTER") == "1",
	}
	cfg.BaseURL = strings.TrimRight(envOrDefault("TRIMR_BASE_URL", "http://localhost:"+cfg.Port), "/")

	if cfg.CacheSize <= 0 {
		return nil, fmt.Errorf("TRIMR_CACHE_SIZE must be positive")
	}
	if cfg.CacheTTL <= 0 {
		return nil, fmt.Errorf("TRIMR_CACHE_TTL must be positive")
	}
	if cfg.SweepInterval <= 0 {
		return nil, fmt.Errorf("TRIMR_SWEEP_INTERVAL must be positive")
	}

	return cfg, nil
}

// ShortURL builds the public form of a short code.
func (c *Config) ShortURL(code string) string {
	return c.BaseURL + "/" + code
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func parseDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
