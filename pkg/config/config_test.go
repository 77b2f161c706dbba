package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "https://sellerportal.tcgplayer.com", cfg.Session.PortalURL)
	assert.Equal(t, "https://order-management-api.tcgplayer.com", cfg.Session.APIURL)
	assert.Equal(t, 30*time.Second, cfg.Session.Timeout)
	assert.Equal(t, "Normal", cfg.Crawl.OrderType)
	assert.Equal(t, 500, cfg.Crawl.PageSize)
	assert.True(t, cfg.Crawl.SortedDesc)
	assert.False(t, cfg.Sync.SkipExisting)
	assert.False(t, cfg.Sync.CheckMD5)
	assert.Equal(t, 1, cfg.Sync.Concurrency)
	assert.Equal(t, StorageLocal, cfg.Storage.Type)
	assert.Equal(t, 60, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, "info", cfg.Logging.Level)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TCGSYNC_COOKIES_FILE", "/tmp/cookies.json")
	t.Setenv("TCGSYNC_ORDER_TYPE", "Direct")
	t.Setenv("TCGSYNC_STORAGE_TYPE", "s3")
	t.Setenv("TCGSYNC_BUCKET", "orders-bucket")
	t.Setenv("TCGSYNC_SKIP_EXISTING", "true")
	t.Setenv("TCGSYNC_CONCURRENCY", "4")
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIAEXAMPLE")
	t.Setenv("TCGSYNC_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "/tmp/cookies.json", cfg.Session.CookiesFile)
	assert.Equal(t, "Direct", cfg.Crawl.OrderType)
	assert.Equal(t, StorageS3, cfg.Storage.Type)
	assert.Equal(t, "orders-bucket", cfg.Storage.Bucket)
	assert.True(t, cfg.Sync.SkipExisting)
	assert.Equal(t, 4, cfg.Sync.Concurrency)
	assert.Equal(t, "AKIAEXAMPLE", cfg.Storage.AccessKey)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvInvalidValues(t *testing.T) {
	t.Setenv("TCGSYNC_CHECK_MD5", "maybe")
	t.Setenv("TCGSYNC_CONCURRENCY", "lots")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TCGSYNC_CHECK_MD5")
	assert.Contains(t, err.Error(), "TCGSYNC_CONCURRENCY")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "bad order type",
			mutate:  func(c *Config) { c.Crawl.OrderType = "Express" },
			wantErr: "invalid order type",
		},
		{
			name: "s3 without bucket",
			mutate: func(c *Config) {
				c.Storage.Type = StorageS3
				c.Storage.Bucket = ""
			},
			wantErr: "bucket name is required",
		},
		{
			name:    "local without path",
			mutate:  func(c *Config) { c.Storage.Path = "" },
			wantErr: "storage path is required",
		},
		{
			name:    "unknown storage",
			mutate:  func(c *Config) { c.Storage.Type = "ftp" },
			wantErr: "invalid storage type",
		},
		{
			name:    "redis cache without url",
			mutate:  func(c *Config) { c.Cache.Type = CacheRedis },
			wantErr: "redis URL is required",
		},
		{
			name:    "lock without redis",
			mutate:  func(c *Config) { c.Lock.Enabled = true },
			wantErr: "run lock requires a redis URL",
		},
		{
			name:    "zero concurrency",
			mutate:  func(c *Config) { c.Sync.Concurrency = 0 },
			wantErr: "concurrency must be positive",
		},
		{
			name:    "unknown rate limit strategy",
			mutate:  func(c *Config) { c.RateLimit.Strategy = "leaky" },
			wantErr: "invalid rate limit strategy",
		},
		{
			name:    "sliding window",
			mutate:  func(c *Config) { c.RateLimit.Strategy = RateLimitSlidingWindow },
			wantErr: "",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateJoinsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Crawl.PageSize = 0
	cfg.RateLimit.RequestsPerMinute = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page size must be positive")
	assert.Contains(t, err.Error(), "requests per minute must be positive")
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"from":          "12/22/2025",
		"to":            "12/31/2025",
		"order-type":    "All",
		"storage-type":  "s3",
		"bucket":        "my-orders",
		"skip-existing": true,
		"concurrency":   2,
		"log-level":     "",
	})

	assert.Equal(t, "12/22/2025", cfg.Crawl.From)
	assert.Equal(t, "12/31/2025", cfg.Crawl.To)
	assert.Equal(t, "All", cfg.Crawl.OrderType)
	assert.Equal(t, StorageS3, cfg.Storage.Type)
	assert.Equal(t, "my-orders", cfg.Storage.Bucket)
	assert.True(t, cfg.Sync.SkipExisting)
	assert.Equal(t, 2, cfg.Sync.Concurrency)
	assert.Equal(t, "info", cfg.Logging.Level, "empty strings do not override")
}

func TestSaveAndLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Storage.Path = "/data/orders"
	cfg.Sync.CheckMD5 = true
	cfg.Retry.BaseDelay = 250 * time.Millisecond
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, "/data/orders", loaded.Storage.Path)
	assert.True(t, loaded.Sync.CheckMD5)
	assert.Equal(t, 250*time.Millisecond, loaded.Retry.BaseDelay)
}

func TestLoadFromFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tcgsync.yaml")
	content := `
crawl:
  from: "2025-12-22"
  to: "2025-12-31"
  order_type: Direct
sync:
  check_md5: true
storage:
  type: s3
  bucket: archive
  prefix: orders/
retry:
  max_delay: 45s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))
	assert.Equal(t, "2025-12-22", cfg.Crawl.From)
	assert.Equal(t, "Direct", cfg.Crawl.OrderType)
	assert.True(t, cfg.Sync.CheckMD5)
	assert.Equal(t, "archive", cfg.Storage.Bucket)
	assert.Equal(t, "orders/", cfg.Storage.Prefix)
	assert.Equal(t, 45*time.Second, cfg.Retry.MaxDelay)
	// untouched keys keep their defaults
	assert.Equal(t, 500, cfg.Crawl.PageSize)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  path: /from/file\ncrawl:\n  order_type: Direct\n"), 0644))

	t.Setenv("TCGSYNC_STORAGE_PATH", "/from/env")

	cfg, err := Load(path, map[string]interface{}{"order-type": "All"})
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.Storage.Path)
	assert.Equal(t, "All", cfg.Crawl.OrderType)
}
