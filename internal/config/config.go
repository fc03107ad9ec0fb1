package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the full configuration required to initialise the
// feed reconstruction service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Extract   ExtractConfig   `yaml:"extract"`
	Cache     CacheConfig     `yaml:"cache"`
	Robots    RobotsConfig    `yaml:"robots"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig controls the HTTP listener and the client-facing
// surface of §6. Rate-limiting the client-facing layer is out of the
// pipeline's core (§1) but its tuning knobs are carried here so the
// out-of-scope admission middleware has somewhere to read them from.
type ServerConfig struct {
	Addr              string   `yaml:"addr"`
	BaseURL           string   `yaml:"base_url"`
	RateLimitWindow   Duration `yaml:"rate_limit_window"`
	RateLimitRequests int      `yaml:"rate_limit_requests"`
}

// FetchConfig controls the Origin Fetcher (§4.A).
type FetchConfig struct {
	UserAgent        string   `yaml:"user_agent"`
	RequestTimeout   Duration `yaml:"request_timeout"`
	DiscoveryTimeout Duration `yaml:"discovery_timeout"`
	MaxBodyBytes     int64    `yaml:"max_body_bytes"`
	MaxRedirects     int      `yaml:"max_redirects"`
	MinGap           Duration `yaml:"min_gap"`
	DiscoveryMinGap  Duration `yaml:"discovery_min_gap"`
	MaxRetries       int      `yaml:"max_retries"`
	RetryBaseDelay   Duration `yaml:"retry_base_delay"`
	RetryMaxDelay    Duration `yaml:"retry_max_delay"`
	CircuitThreshold int      `yaml:"circuit_threshold"`
	CircuitCooldown  Duration `yaml:"circuit_cooldown"`
}

// DiscoveryConfig controls the Feed Discovery Engine (§4.B).
type DiscoveryConfig struct {
	EnableSitemap       bool     `yaml:"enable_sitemap"`
	EnableRobots        bool     `yaml:"enable_robots"`
	EnableContentMining bool     `yaml:"enable_content_mining"`
	NegativeTTL         Duration `yaml:"negative_ttl"`
	FailedURLTTL        Duration `yaml:"failed_url_ttl"`
}

// ExtractConfig controls the Content Extractor (§4.C).
type ExtractConfig struct {
	MaxArticlesPerFeed int `yaml:"max_articles_per_feed"`
}

// CacheConfig controls the Result Cache (§4.F).
type CacheConfig struct {
	TTL           Duration `yaml:"ttl"`
	MaxEntries    int      `yaml:"max_entries"`
	SweepInterval Duration `yaml:"sweep_interval"`
}

// RobotsConfig controls the courtesy robots.txt check that precedes
// origin fetches.
type RobotsConfig struct {
	Respect  bool     `yaml:"respect"`
	CacheTTL Duration `yaml:"cache_ttl"`
}

// LoggingConfig selects log verbosity and format.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Structured bool   `yaml:"structured"`
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Default returns a Config populated with the defaults named
// throughout §4 and §6.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Fetch: FetchConfig{
			UserAgent:        defaultUserAgent,
			RequestTimeout:   DurationFrom(10 * time.Second),
			DiscoveryTimeout: DurationFrom(5 * time.Second),
			MaxBodyBytes:     10 * 1024 * 1024,
			MaxRedirects:     5,
			MinGap:           DurationFrom(100 * time.Millisecond),
			DiscoveryMinGap:  DurationFrom(200 * time.Millisecond),
			MaxRetries:       3,
			RetryBaseDelay:   DurationFrom(1 * time.Second),
			RetryMaxDelay:    DurationFrom(5 * time.Second),
			CircuitThreshold: 3,
			CircuitCooldown:  DurationFrom(5 * time.Minute),
		},
		Discovery: DiscoveryConfig{
			EnableSitemap:       false,
			EnableRobots:        false,
			EnableContentMining: false,
			NegativeTTL:         DurationFrom(1 * time.Hour),
			FailedURLTTL:        DurationFrom(10 * time.Minute),
		},
		Extract: ExtractConfig{
			MaxArticlesPerFeed: 50,
		},
		Cache: CacheConfig{
			TTL:           DurationFrom(1 * time.Hour),
			MaxEntries:    100,
			SweepInterval: DurationFrom(5 * time.Minute),
		},
		Robots: RobotsConfig{
			Respect:  true,
			CacheTTL: DurationFrom(30 * time.Minute),
		},
		Logging: LoggingConfig{
			Level:      "info",
			Structured: true,
		},
	}
}

// Load reads, merges, and validates configuration from a YAML file.
func Load(path string) (*Config, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer fh.Close()
	return LoadFromReader(fh)
}

// LoadFromReader decodes configuration from an arbitrary reader,
// falling back to Default() for every unset field.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decodeYAML(r, &cfg); err != nil {
		return nil, err
	}
	cfg.normalise()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeYAML(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// Validate enforces the required invariants for the service config.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Fetch.UserAgent) == "" {
		return errors.New("fetch.user_agent must be set")
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		return fmt.Errorf("fetch.max_body_bytes must be > 0 (got %d)", c.Fetch.MaxBodyBytes)
	}
	if c.Fetch.MaxRedirects < 0 {
		return fmt.Errorf("fetch.max_redirects must be >= 0 (got %d)", c.Fetch.MaxRedirects)
	}
	if c.Fetch.MaxRetries < 0 {
		return fmt.Errorf("fetch.max_retries must be >= 0 (got %d)", c.Fetch.MaxRetries)
	}
	if c.Fetch.CircuitThreshold <= 0 {
		return fmt.Errorf("fetch.circuit_threshold must be > 0 (got %d)", c.Fetch.CircuitThreshold)
	}
	if c.Extract.MaxArticlesPerFeed <= 0 {
		return fmt.Errorf("extract.max_articles_per_feed must be > 0 (got %d)", c.Extract.MaxArticlesPerFeed)
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache.max_entries must be > 0 (got %d)", c.Cache.MaxEntries)
	}
	if c.Cache.TTL.Duration <= 0 {
		return errors.New("cache.ttl must be > 0")
	}
	return nil
}

func (c *Config) normalise() {
	c.Fetch.UserAgent = strings.TrimSpace(c.Fetch.UserAgent)
	c.Server.Addr = strings.TrimSpace(c.Server.Addr)
	c.Server.BaseURL = strings.TrimSpace(c.Server.BaseURL)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}
