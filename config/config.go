// ABOUTME: Configuration loader for the deliverables admin backend
// ABOUTME: Loads settings from environment variables (with optional .env file) and validates them

package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port               string
	AuthMode           string   // disabled, optional, required (default: optional)
	CORSAllowedOrigins []string // allowed CORS origins (empty = block all cross-origin)
	CacheTTL           int      // seconds, reference-data cache (default 300)

	// Identity provider (Azure AD client credentials)
	AADTenantID     string
	AADClientID     string
	AADClientSecret string
	AADScope        string // OAuth scope, defaults to <ODataAPIUrl>/.default

	// Token lifecycle
	TokenAssumedLifetime int // seconds, when the provider reports no expiry (default 3600)
	TokenExpiryBuffer    int // seconds, "expiring soon" threshold (default 300)
	TokenRefreshInterval int // seconds, periodic refresh check (default 30)

	// OData backend
	ODataAPIUrl            string
	ODataCACert            string
	ODataSkipSSLValidation bool   // explicit opt-in for insecure connections
	ODataAllProxy          string // optional ssh+socks5:// jumpbox proxy

	// Token mirror (optional)
	RedisURL string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded, using process environment")
	}

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		AuthMode:           getEnv("AUTH_MODE", "optional"),
		CORSAllowedOrigins: getEnvStringList("CORS_ALLOWED_ORIGINS"),
		CacheTTL:           getEnvInt("CACHE_TTL", 300),

		AADTenantID:     os.Getenv("AAD_TENANT_ID"),
		AADClientID:     os.Getenv("AAD_CLIENT_ID"),
		AADClientSecret: os.Getenv("AAD_CLIENT_SECRET"),
		AADScope:        os.Getenv("AAD_SCOPE"),

		TokenAssumedLifetime: getEnvInt("TOKEN_ASSUMED_LIFETIME", 3600),
		TokenExpiryBuffer:    getEnvInt("TOKEN_EXPIRY_BUFFER", 300),
		TokenRefreshInterval: getEnvInt("TOKEN_REFRESH_INTERVAL", 30),

		ODataAPIUrl:            ensureScheme(os.Getenv("ODATA_API_URL")),
		ODataCACert:            os.Getenv("ODATA_CA_CERT"),
		ODataSkipSSLValidation: getEnvBool("ODATA_SKIP_SSL_VALIDATION", false),
		ODataAllProxy:          os.Getenv("ODATA_ALL_PROXY"),

		RedisURL: os.Getenv("REDIS_URL"),
	}

	// Validate required fields
	if cfg.ODataAPIUrl == "" {
		return nil, fmt.Errorf("ODATA_API_URL is required")
	}
	if cfg.AADTenantID == "" {
		return nil, fmt.Errorf("AAD_TENANT_ID is required")
	}
	if cfg.AADClientID == "" {
		return nil, fmt.Errorf("AAD_CLIENT_ID is required")
	}
	if cfg.AADClientSecret == "" {
		return nil, fmt.Errorf("AAD_CLIENT_SECRET is required")
	}

	if cfg.AADScope == "" {
		cfg.AADScope = strings.TrimSuffix(cfg.ODataAPIUrl, "/") + "/.default"
	}

	// Validate token timing values
	for _, tv := range []struct {
		name  string
		value int
	}{
		{"TOKEN_ASSUMED_LIFETIME", cfg.TokenAssumedLifetime},
		{"TOKEN_EXPIRY_BUFFER", cfg.TokenExpiryBuffer},
		{"TOKEN_REFRESH_INTERVAL", cfg.TokenRefreshInterval},
	} {
		if tv.value < 1 || tv.value > 86400 {
			return nil, fmt.Errorf("%s must be between 1 and 86400 seconds, got %d", tv.name, tv.value)
		}
	}
	if cfg.TokenExpiryBuffer >= cfg.TokenAssumedLifetime {
		return nil, fmt.Errorf("TOKEN_EXPIRY_BUFFER (%d) must be smaller than TOKEN_ASSUMED_LIFETIME (%d)",
			cfg.TokenExpiryBuffer, cfg.TokenAssumedLifetime)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvStringList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// ensureScheme adds https:// prefix if the URL has no scheme
func ensureScheme(url string) string {
	if url == "" {
		return url
	}
	if !strings.Contains(url, "://") {
		return "https://" + url
	}
	return url
}
