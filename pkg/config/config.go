package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage types
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Cache types
const (
	CacheNone     = "none"
	CacheRedis    = "redis"
	CacheMemcache = "memcache"
)

// Rate limiting strategies
const (
	RateLimitTokenBucket   = "token_bucket"
	RateLimitSlidingWindow = "sliding_window"
)

// Config holds all configuration options for tcgsync
type Config struct {
	Session    SessionConfig    `yaml:"session" json:"session"`
	Crawl      CrawlConfig      `yaml:"crawl" json:"crawl"`
	Sync       SyncConfig       `yaml:"sync" json:"sync"`
	Storage    StorageConfig    `yaml:"storage" json:"storage"`
	Cache      CacheConfig      `yaml:"cache" json:"cache"`
	Lock       LockConfig       `yaml:"lock" json:"lock"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit" json:"rate_limit"`
	Retry      RetryConfig      `yaml:"retry" json:"retry"`
	Checkpoint CheckpointConfig `yaml:"checkpoint" json:"checkpoint"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// SessionConfig holds the cookie material and site endpoints
type SessionConfig struct {
	CookiesFile  string        `yaml:"cookies_file" json:"cookies_file"`
	CookieHeader string        `yaml:"cookie_header" json:"cookie_header"`
	Account      string        `yaml:"account" json:"account"`
	UserAgent    string        `yaml:"user_agent" json:"user_agent"`
	PortalURL    string        `yaml:"portal_url" json:"portal_url"`
	APIURL       string        `yaml:"api_url" json:"api_url"`
	StoreURL     string        `yaml:"store_url" json:"store_url"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
}

// CrawlConfig holds the listing crawl parameters
type CrawlConfig struct {
	From       string `yaml:"from" json:"from"`
	To         string `yaml:"to" json:"to"`
	OrderType  string `yaml:"order_type" json:"order_type"`
	PageSize   int    `yaml:"page_size" json:"page_size"`
	SortedDesc bool   `yaml:"sorted_desc" json:"sorted_desc"`
}

// SyncConfig holds the write policy
type SyncConfig struct {
	SkipExisting     bool `yaml:"skip_existing" json:"skip_existing"`
	CheckMD5         bool `yaml:"check_md5" json:"check_md5"`
	FailureThreshold int  `yaml:"failure_threshold" json:"failure_threshold"`
	Concurrency      int  `yaml:"concurrency" json:"concurrency"`
}

// StorageConfig selects and configures the storage backend
type StorageConfig struct {
	Type      string `yaml:"type" json:"type"`
	Path      string `yaml:"path" json:"path"`
	Bucket    string `yaml:"bucket" json:"bucket"`
	Prefix    string `yaml:"prefix" json:"prefix"`
	Endpoint  string `yaml:"endpoint" json:"endpoint"`
	Region    string `yaml:"region" json:"region"`
	AccessKey string `yaml:"access_key" json:"access_key"`
	SecretKey string `yaml:"secret_key" json:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl" json:"use_ssl"`
}

// CacheConfig configures the optional hash cache in front of storage
type CacheConfig struct {
	Type         string        `yaml:"type" json:"type"`
	RedisURL     string        `yaml:"redis_url" json:"redis_url"`
	MemcacheAddr string        `yaml:"memcache_addr" json:"memcache_addr"`
	TTL          time.Duration `yaml:"ttl" json:"ttl"`
}

// LockConfig configures the cross-process run lock
type LockConfig struct {
	Enabled  bool          `yaml:"enabled" json:"enabled"`
	RedisURL string        `yaml:"redis_url" json:"redis_url"`
	TTL      time.Duration `yaml:"ttl" json:"ttl"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	// Strategy is token_bucket (bursts up to BurstSize) or sliding_window
	// (at most RequestsPerMinute in any trailing minute)
	Strategy          string `yaml:"strategy" json:"strategy"`
	RequestsPerMinute int    `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int    `yaml:"burst_size" json:"burst_size"`
}

// RetryConfig holds retry/backoff configuration
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay    time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" json:"multiplier"`
	JitterFactor float64       `yaml:"jitter_factor" json:"jitter_factor"`
}

// CheckpointConfig controls crawl checkpoints
type CheckpointConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Dir     string `yaml:"dir" json:"dir"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Session: SessionConfig{
			UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			PortalURL: "https://sellerportal.tcgplayer.com",
			APIURL:    "https://order-management-api.tcgplayer.com",
			StoreURL:  "https://store.tcgplayer.com",
			Timeout:   30 * time.Second,
		},
		Crawl: CrawlConfig{
			OrderType:  "Normal",
			PageSize:   500,
			SortedDesc: true,
		},
		Sync: SyncConfig{
			FailureThreshold: 5,
			Concurrency:      1,
		},
		Storage: StorageConfig{
			Type:   StorageLocal,
			Path:   "./orders",
			Region: "us-east-1",
			UseSSL: true,
		},
		Cache: CacheConfig{
			Type: CacheNone,
			TTL:  24 * time.Hour,
		},
		Lock: LockConfig{
			TTL: 2 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			Strategy:          RateLimitTokenBucket,
			RequestsPerMinute: 60,
			BurstSize:         10,
		},
		Retry: RetryConfig{
			MaxAttempts:  3,
			BaseDelay:    time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		},
		Checkpoint: CheckpointConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	setString := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	setString("TCGSYNC_COOKIES_FILE", &c.Session.CookiesFile)
	setString("TCGSYNC_COOKIE_HEADER", &c.Session.CookieHeader)
	setString("TCGSYNC_ACCOUNT", &c.Session.Account)
	setString("TCGSYNC_USER_AGENT", &c.Session.UserAgent)

	setString("TCGSYNC_FROM", &c.Crawl.From)
	setString("TCGSYNC_TO", &c.Crawl.To)
	setString("TCGSYNC_ORDER_TYPE", &c.Crawl.OrderType)

	setString("TCGSYNC_STORAGE_TYPE", &c.Storage.Type)
	setString("TCGSYNC_STORAGE_PATH", &c.Storage.Path)
	setString("TCGSYNC_BUCKET", &c.Storage.Bucket)
	setString("TCGSYNC_PREFIX", &c.Storage.Prefix)
	setString("TCGSYNC_S3_ENDPOINT", &c.Storage.Endpoint)
	setString("TCGSYNC_S3_REGION", &c.Storage.Region)
	// Standard AWS names are honoured so existing credentials work unchanged.
	setString("AWS_ACCESS_KEY_ID", &c.Storage.AccessKey)
	setString("AWS_SECRET_ACCESS_KEY", &c.Storage.SecretKey)
	setString("TCGSYNC_S3_ACCESS_KEY", &c.Storage.AccessKey)
	setString("TCGSYNC_S3_SECRET_KEY", &c.Storage.SecretKey)

	setString("TCGSYNC_CACHE_TYPE", &c.Cache.Type)
	setString("TCGSYNC_REDIS_URL", &c.Cache.RedisURL)
	setString("TCGSYNC_MEMCACHE_ADDR", &c.Cache.MemcacheAddr)
	setString("TCGSYNC_LOCK_REDIS_URL", &c.Lock.RedisURL)

	setString("TCGSYNC_RATE_LIMIT_STRATEGY", &c.RateLimit.Strategy)

	setString("TCGSYNC_LOG_LEVEL", &c.Logging.Level)
	setString("TCGSYNC_LOG_FILE", &c.Logging.File)

	var errs []error
	parseBool := func(name string, dst *bool) {
		if v := os.Getenv(name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = b
		}
	}
	parseInt := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = n
		}
	}

	parseBool("TCGSYNC_SKIP_EXISTING", &c.Sync.SkipExisting)
	parseBool("TCGSYNC_CHECK_MD5", &c.Sync.CheckMD5)
	parseBool("TCGSYNC_LOCK_ENABLED", &c.Lock.Enabled)
	parseBool("TCGSYNC_S3_USE_SSL", &c.Storage.UseSSL)
	parseInt("TCGSYNC_CONCURRENCY", &c.Sync.Concurrency)
	parseInt("TCGSYNC_FAILURE_THRESHOLD", &c.Sync.FailureThreshold)
	parseInt("TCGSYNC_REQUESTS_PER_MINUTE", &c.RateLimit.RequestsPerMinute)
	parseInt("TCGSYNC_PAGE_SIZE", &c.Crawl.PageSize)

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".tcgsync.yaml",
		".tcgsync.yml",
		filepath.Join(home, ".config", "tcgsync", "config.yaml"),
		filepath.Join(home, ".config", "tcgsync", "config.yml"),
		filepath.Join(home, ".tcgsync.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Session.PortalURL == "" || c.Session.APIURL == "" {
		errs = append(errs, errors.New("portal and API URLs are required"))
	}
	if c.Session.Timeout <= 0 {
		errs = append(errs, errors.New("session timeout must be positive"))
	}

	switch strings.ToLower(c.Crawl.OrderType) {
	case "normal", "direct", "all":
	default:
		errs = append(errs, fmt.Errorf("invalid order type %q (want Normal, Direct or All)", c.Crawl.OrderType))
	}
	if c.Crawl.PageSize <= 0 {
		errs = append(errs, errors.New("page size must be positive"))
	}

	if c.Sync.Concurrency <= 0 {
		errs = append(errs, errors.New("concurrency must be positive"))
	}
	if c.Sync.Concurrency > 8 {
		errs = append(errs, errors.New("concurrency should not exceed 8"))
	}
	if c.Sync.FailureThreshold < 0 {
		errs = append(errs, errors.New("failure threshold cannot be negative"))
	}

	switch c.Storage.Type {
	case StorageLocal:
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("storage path is required for local storage"))
		}
	case StorageS3:
		if c.Storage.Bucket == "" {
			errs = append(errs, errors.New("bucket name is required for s3 storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid storage type %q (want local or s3)", c.Storage.Type))
	}

	switch c.Cache.Type {
	case "", CacheNone:
	case CacheRedis:
		if c.Cache.RedisURL == "" {
			errs = append(errs, errors.New("redis URL is required for the redis cache"))
		}
	case CacheMemcache:
		if c.Cache.MemcacheAddr == "" {
			errs = append(errs, errors.New("memcache address is required for the memcache cache"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid cache type %q", c.Cache.Type))
	}

	if c.Lock.Enabled && c.Lock.RedisURL == "" && c.Cache.RedisURL == "" {
		errs = append(errs, errors.New("run lock requires a redis URL"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	switch c.RateLimit.Strategy {
	case "", RateLimitTokenBucket, RateLimitSlidingWindow:
	default:
		errs = append(errs, fmt.Errorf("invalid rate limit strategy %q", c.RateLimit.Strategy))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry max attempts must be at least 1"))
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, errors.New("retry multiplier must be >= 1"))
	}
	if c.Retry.JitterFactor < 0 || c.Retry.JitterFactor > 1 {
		errs = append(errs, errors.New("retry jitter factor must be between 0 and 1"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Keys match the long flag names of the extract and copy commands.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	str := func(key string, dst *string) {
		if v, ok := flags[key].(string); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := flags[key].(bool); ok {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := flags[key].(int); ok && v > 0 {
			*dst = v
		}
	}

	str("cookies", &c.Session.CookiesFile)
	str("account", &c.Session.Account)
	str("from", &c.Crawl.From)
	str("to", &c.Crawl.To)
	str("order-type", &c.Crawl.OrderType)
	str("storage-type", &c.Storage.Type)
	str("storage-path", &c.Storage.Path)
	str("bucket", &c.Storage.Bucket)
	str("prefix", &c.Storage.Prefix)
	str("endpoint", &c.Storage.Endpoint)
	str("log-level", &c.Logging.Level)
	boolean("skip-existing", &c.Sync.SkipExisting)
	boolean("check-md5", &c.Sync.CheckMD5)
	integer("concurrency", &c.Sync.Concurrency)
	integer("rate-limit", &c.RateLimit.RequestsPerMinute)
	integer("page-size", &c.Crawl.PageSize)
	integer("max-retries", &c.Retry.MaxAttempts)
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".tcgsync.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
