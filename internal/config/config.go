package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	TreeFile        string        // path to the bookmark tree yaml (optional, empty = no file import)
	SyncInterval    time.Duration // interval between scheduled sync passes (default: 15m)
	DrainInterval   time.Duration // interval between offline queue drains (default: 1m)
	DefaultStrategy string        // conflict resolution strategy for scheduled passes

	// Sync tuning (pre-optimizer baselines)
	BatchSize     int           // nodes applied per chunk (default: 50)
	ThrottleDelay time.Duration // pause between chunks (default: 100ms)
	MaxRetries    int           // attempts per network operation (default: 5)
	RetryDelay    time.Duration // base backoff delay (default: 1s)

	// Retention caps
	HistoryCap int // resolution history entries kept (default: 1000)
	QueueCap   int // offline queue entries kept (default: 50)

	// Classifier thresholds
	DuplicateURLThreshold   float64 // default: 0.9
	DuplicateTitleThreshold float64 // default: 0.8

	// System state probe (static readings for headless hosts)
	ResourceTier string  // "constrained" | "nominal" | "optimal"
	NetworkType  string  // "slow-2g" | "2g" | "3g" | "4g"
	BatteryLevel float64 // 0.0 - 1.0, 1.0 = mains power

	// Redis
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	AllowedHosts []string // optional, restrict access to specific Host headers
	AllowedCIDRS []string // optional, restrict access to specific IP (e.g. "1.2.3.4, 5.6.7.8")
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)

	// Per-IP token bucket on every route
	RateLimitBurst  int // bucket capacity (default: 30)
	RateLimitPerMin int // refill rate per minute (default: 60)
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("MARKSYNC_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("MARKSYNC_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("MARKSYNC_LOG_LEVEL", "info"),
		PrettyLog: mustBool("MARKSYNC_PRETTY_LOG", true),

		// Sync settings
		TreeFile:        getenv("MARKSYNC_TREE_FILE", ""), // Optional, empty = no file import
		SyncInterval:    mustDuration("MARKSYNC_SYNC_INTERVAL", 15*time.Minute),
		DrainInterval:   mustDuration("MARKSYNC_DRAIN_INTERVAL", time.Minute),
		DefaultStrategy: getenv("MARKSYNC_DEFAULT_STRATEGY", "intelligent-merge"),

		BatchSize:     getenvInt("MARKSYNC_BATCH_SIZE", 50),
		ThrottleDelay: mustDuration("MARKSYNC_THROTTLE_DELAY", 100*time.Millisecond),
		MaxRetries:    getenvInt("MARKSYNC_MAX_RETRIES", 5),
		RetryDelay:    mustDuration("MARKSYNC_RETRY_DELAY", time.Second),

		HistoryCap: getenvInt("MARKSYNC_HISTORY_CAP", 1000),
		QueueCap:   getenvInt("MARKSYNC_QUEUE_CAP", 50),

		DuplicateURLThreshold:   mustFloat("MARKSYNC_DUPLICATE_URL_THRESHOLD", 0.9),
		DuplicateTitleThreshold: mustFloat("MARKSYNC_DUPLICATE_TITLE_THRESHOLD", 0.8),

		ResourceTier: getenv("MARKSYNC_RESOURCE_TIER", "nominal"),
		NetworkType:  getenv("MARKSYNC_NETWORK_TYPE", "4g"),
		BatteryLevel: mustFloat("MARKSYNC_BATTERY_LEVEL", 1.0),

		// Redis settings
		RedisAddr:             requireEnv("MARKSYNC_REDIS_ADDR"),
		RedisUser:             getenv("MARKSYNC_REDIS_USERNAME", "default"),
		RedisPasswordRequired: mustBool("MARKSYNC_REDIS_PASSWORD_REQUIRED", true),
		RedisPassword:         getenv("MARKSYNC_REDIS_PASSWORD", ""),
		RedisDB:               requireEnvInt("MARKSYNC_REDIS_DB"),
		RedisDT:               mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("REDIS_WARN_THRESHOLD", 3),

		// Access restrictions
		AllowedHosts: splitAndTrim(getenv("MARKSYNC_ALLOWED_HOSTS", "")),
		AllowedCIDRS: parseAllowedIPs(getenv("MARKSYNC_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("MARKSYNC_TRUST_PROXY", true),

		RateLimitBurst:  getenvInt("MARKSYNC_RATE_LIMIT_BURST", 30),
		RateLimitPerMin: getenvInt("MARKSYNC_RATE_LIMIT_PER_MIN", 60),
	}

	// Validate Redis password configuration
	if cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
		panic("❌ FATAL: MARKSYNC_REDIS_PASSWORD is required when MARKSYNC_REDIS_PASSWORD_REQUIRED=true")
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func requireEnvInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: Invalid integer value for %s: %s", key, v))
	}
	return i
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func mustFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
