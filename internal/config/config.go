package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Crawler  CrawlerConfig
	Session  SessionConfig
	Browser  BrowserConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type CrawlerConfig struct {
	BatchSize         int
	ConcurrencyLimit  int
	BatchDelayMin     time.Duration
	BatchDelayMax     time.Duration
	NavigationTimeout time.Duration
	MaxRetries        int
	RetryDelay        time.Duration
}

type SessionConfig struct {
	StateFile             string
	RequiredCookies       []string
	FallbackCookie        string
	ExpiryBuffer          time.Duration
	BootstrapRetries      int
	BootstrapRetryDelay   time.Duration
	ChallengePollCount    int
	ChallengePollInterval time.Duration
	StabilizationDelay    time.Duration
}

type BrowserConfig struct {
	Headless       bool
	Timeout        time.Duration
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ProxyServer    string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	MaxConns int32
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Crawler: CrawlerConfig{
			BatchSize:         getIntOrDefault("CRAWLER_BATCH_SIZE", 10),
			ConcurrencyLimit:  getIntOrDefault("CRAWLER_CONCURRENCY", 3),
			BatchDelayMin:     getDurationOrDefault("CRAWLER_BATCH_DELAY_MIN", 5*time.Second),
			BatchDelayMax:     getDurationOrDefault("CRAWLER_BATCH_DELAY_MAX", 7*time.Second),
			NavigationTimeout: getDurationOrDefault("CRAWLER_NAV_TIMEOUT", 60*time.Second),
			MaxRetries:        getIntOrDefault("CRAWLER_MAX_RETRIES", 2),
			RetryDelay:        getDurationOrDefault("CRAWLER_RETRY_DELAY", 3*time.Second),
		},
		Session: SessionConfig{
			StateFile:             getEnvOrDefault("SESSION_STATE_FILE", "oy_state.json"),
			RequiredCookies:       getSliceOrDefault("SESSION_REQUIRED_COOKIES", []string{"cf_clearance", "__cf_bm", "OYSESSIONID"}),
			FallbackCookie:        getEnvOrDefault("SESSION_FALLBACK_COOKIE", "OYSESSIONID"),
			ExpiryBuffer:          getDurationOrDefault("SESSION_EXPIRY_BUFFER", 5*time.Minute),
			BootstrapRetries:      getIntOrDefault("SESSION_BOOTSTRAP_RETRIES", 3),
			BootstrapRetryDelay:   getDurationOrDefault("SESSION_BOOTSTRAP_RETRY_DELAY", 5*time.Second),
			ChallengePollCount:    getIntOrDefault("SESSION_CHALLENGE_POLL_COUNT", 10),
			ChallengePollInterval: getDurationOrDefault("SESSION_CHALLENGE_POLL_INTERVAL", 3*time.Second),
			StabilizationDelay:    getDurationOrDefault("SESSION_STABILIZATION_DELAY", 5*time.Second),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "ko-KR,ko;q=0.9,en;q=0.8"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "Asia/Seoul"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "ko-KR"),
			ProxyServer:    getEnvOrDefault("BROWSER_PROXY", ""),
		},
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "catalog"),
			MaxConns: int32(getIntOrDefault("DB_MAX_CONNS", 10)),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
			Stream:   getEnvOrDefault("REDIS_STREAM", "stream:catalog_products"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "text"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Crawler.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.Crawler.BatchSize)
	}

	if c.Crawler.ConcurrencyLimit <= 0 {
		return fmt.Errorf("concurrency limit must be positive, got %d", c.Crawler.ConcurrencyLimit)
	}

	if c.Crawler.BatchDelayMax < c.Crawler.BatchDelayMin {
		return fmt.Errorf("batch delay max (%s) is below min (%s)", c.Crawler.BatchDelayMax, c.Crawler.BatchDelayMin)
	}

	if c.Session.StateFile == "" {
		return fmt.Errorf("session state file path is required")
	}

	if len(c.Session.RequiredCookies) == 0 && c.Session.FallbackCookie == "" {
		return fmt.Errorf("at least one required or fallback cookie must be configured")
	}

	if c.Session.BootstrapRetries <= 0 {
		return fmt.Errorf("bootstrap retries must be positive, got %d", c.Session.BootstrapRetries)
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
