package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Crawler.BatchSize)
	assert.Equal(t, 3, cfg.Crawler.ConcurrencyLimit)
	assert.Equal(t, 5*time.Second, cfg.Crawler.BatchDelayMin)
	assert.Equal(t, 7*time.Second, cfg.Crawler.BatchDelayMax)
	assert.Equal(t, 60*time.Second, cfg.Crawler.NavigationTimeout)

	assert.Equal(t, "oy_state.json", cfg.Session.StateFile)
	assert.Equal(t, []string{"cf_clearance", "__cf_bm", "OYSESSIONID"}, cfg.Session.RequiredCookies)
	assert.Equal(t, "OYSESSIONID", cfg.Session.FallbackCookie)
	assert.Equal(t, 5*time.Minute, cfg.Session.ExpiryBuffer)
	assert.Equal(t, 3, cfg.Session.BootstrapRetries)

	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, "ko-KR", cfg.Browser.Locale)
	assert.Equal(t, "Asia/Seoul", cfg.Browser.TimezoneID)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("CRAWLER_BATCH_SIZE", "25")
	t.Setenv("CRAWLER_CONCURRENCY", "5")
	t.Setenv("CRAWLER_BATCH_DELAY_MIN", "2s")
	t.Setenv("SESSION_REQUIRED_COOKIES", "cf_clearance, session_id")
	t.Setenv("SESSION_EXPIRY_BUFFER", "10m")
	t.Setenv("BROWSER_HEADLESS", "false")
	t.Setenv("REDIS_STREAM", "stream:test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Crawler.BatchSize)
	assert.Equal(t, 5, cfg.Crawler.ConcurrencyLimit)
	assert.Equal(t, 2*time.Second, cfg.Crawler.BatchDelayMin)
	assert.Equal(t, []string{"cf_clearance", "session_id"}, cfg.Session.RequiredCookies)
	assert.Equal(t, 10*time.Minute, cfg.Session.ExpiryBuffer)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "stream:test", cfg.Redis.Stream)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("CRAWLER_BATCH_SIZE", "lots")
	t.Setenv("SESSION_EXPIRY_BUFFER", "soon")
	t.Setenv("BROWSER_HEADLESS", "sure")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Crawler.BatchSize)
	assert.Equal(t, 5*time.Minute, cfg.Session.ExpiryBuffer)
	assert.True(t, cfg.Browser.Headless)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load()
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"zero batch size", func(c *Config) { c.Crawler.BatchSize = 0 }, false},
		{"negative concurrency", func(c *Config) { c.Crawler.ConcurrencyLimit = -1 }, false},
		{"delay max below min", func(c *Config) {
			c.Crawler.BatchDelayMin = 10 * time.Second
			c.Crawler.BatchDelayMax = 5 * time.Second
		}, false},
		{"empty state file", func(c *Config) { c.Session.StateFile = "" }, false},
		{"no cookies configured", func(c *Config) {
			c.Session.RequiredCookies = nil
			c.Session.FallbackCookie = ""
		}, false},
		{"fallback only", func(c *Config) { c.Session.RequiredCookies = nil }, true},
		{"zero bootstrap retries", func(c *Config) { c.Session.BootstrapRetries = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
