package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Issuer string // Required: issuer claim for session tokens

	ProviderIssuer       string        // Required: upstream OIDC issuer URL
	ProviderClientID     string        // Required: relying-party client id
	ProviderClientSecret string        // Optional: empty for public clients
	ProviderRedirectURL  string        // Required: registered callback URL
	ProviderScopes       []string      // Optional: requested scopes (default: openid profile)
	ProviderOutboundRPS  float64       // Optional: throttle on provider calls (default: 10)
	PendingTTL           time.Duration // Optional: lifetime of a login correlation (default: 10m)
	PendingCap           int           // Optional: max outstanding login correlations (0 = service default)
	RefreshBuffer        time.Duration // Optional: refresh upstream tokens this close to expiry (0 = service default, 5m)
	AuditRetention       time.Duration // Optional: how long audit events are kept (0 = service default, 90 days)

	NumKeys              int           // Optional: number of signing keys to generate (default: 3, min: 1, max: 10)
	MasterKeyPath        string        // Optional: path to master encryption key file
	SessionTTL           time.Duration // Optional: session token lifetime (default: 1h)
	DatabaseFile         string        // Optional: path to SQLite database file (default: ./gateway.db)
	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	cfg := Config{
		Issuer: getEnvOrDefault("GATEWAY_ISSUER", "authgate"),

		ProviderIssuer:       os.Getenv("GATEWAY_PROVIDER_ISSUER"),
		ProviderClientID:     os.Getenv("GATEWAY_PROVIDER_CLIENT_ID"),
		ProviderClientSecret: os.Getenv("GATEWAY_PROVIDER_CLIENT_SECRET"),
		ProviderRedirectURL:  os.Getenv("GATEWAY_PROVIDER_REDIRECT_URL"),
		PendingTTL:           getEnvDurationOrDefault("GATEWAY_PENDING_TTL", 10*time.Minute),
		PendingCap:           getEnvIntOrDefault("GATEWAY_PENDING_CAP", 0),
		RefreshBuffer:        getEnvDurationOrDefault("GATEWAY_REFRESH_BUFFER", 0),
		AuditRetention:       getEnvDurationOrDefault("GATEWAY_AUDIT_RETENTION", 0),

		MasterKeyPath:        os.Getenv("GATEWAY_MASTER_KEY_PATH"),
		SessionTTL:           getEnvDurationOrDefault("GATEWAY_SESSION_TTL", time.Hour),
		DatabaseFile:         getEnvOrDefault("GATEWAY_DATABASE_FILE", "gateway.db"),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}

	if scopes := os.Getenv("GATEWAY_PROVIDER_SCOPES"); scopes != "" {
		cfg.ProviderScopes = strings.Fields(scopes)
	} else {
		cfg.ProviderScopes = []string{"openid", "profile", "offline_access"}
	}

	cfg.ProviderOutboundRPS = 10
	if rps := os.Getenv("GATEWAY_PROVIDER_OUTBOUND_RPS"); rps != "" {
		if parsed, err := strconv.ParseFloat(rps, 64); err == nil {
			cfg.ProviderOutboundRPS = parsed
		}
	}

	// Parse number of keys (default: 3)
	if numKeysStr := os.Getenv("GATEWAY_NUM_KEYS"); numKeysStr != "" {
		if numKeys, err := strconv.Atoi(numKeysStr); err == nil {
			cfg.NumKeys = numKeys
		}
		// If parsing fails, NumKeys remains 0 (will use default in KeyManager)
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
