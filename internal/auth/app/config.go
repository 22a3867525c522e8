package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Issuer   string   // Issuer claim for tokens and discovery document
	Audience []string // Audience claim validated on tokens

	SigningKeyPath string // Optional: PEM-encoded RSA private key; generated when empty
	RSABits        int    // Optional: RSA key size for generated keys (default: 2048)

	DatabaseFile string // Path to SQLite database file (default: ./auth.db)
	PepperFile   string // Optional: file containing the password hashing pepper

	AccessTTL  time.Duration // Access token lifetime (default: 1h)
	RefreshTTL time.Duration // Refresh token lifetime (default: 30 days)
	CodeTTL    time.Duration // Authorization code lifetime (default: 10m)
	LoginTTL   time.Duration // Pending login window (default: 10m)

	RedirectHosts        []string // Redirect URI host allow-list (default: localhost, 127.0.0.1)
	RedirectHostPatterns []string // Additional redirect host regex patterns

	SeedUsers string // Demo account spec: user:password:tenant:role|role, comma separated

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	cfg := Config{
		Issuer:         getEnvOrDefault("AUTH_ISSUER", "http://localhost:8080"),
		Audience:       splitCSV(os.Getenv("AUTH_AUDIENCE")),
		SigningKeyPath: os.Getenv("AUTH_SIGNING_KEY_FILE"),
		DatabaseFile:   getEnvOrDefault("AUTH_DATABASE_FILE", "auth.db"),
		PepperFile:     os.Getenv("AUTH_PEPPER_FILE"),

		AccessTTL:  getEnvDurationOrDefault("AUTH_ACCESS_TTL", time.Hour),
		RefreshTTL: getEnvDurationOrDefault("AUTH_REFRESH_TTL", 30*24*time.Hour),
		CodeTTL:    getEnvDurationOrDefault("AUTH_CODE_TTL", 10*time.Minute),
		LoginTTL:   getEnvDurationOrDefault("AUTH_LOGIN_TTL", 10*time.Minute),

		RedirectHosts:        splitCSV(os.Getenv("AUTH_REDIRECT_HOSTS")),
		RedirectHostPatterns: splitCSV(os.Getenv("AUTH_REDIRECT_HOST_PATTERNS")),

		SeedUsers: os.Getenv("AUTH_SEED_USERS"),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", time.Hour),
	}

	if bits := os.Getenv("AUTH_RSA_BITS"); bits != "" {
		if n, err := strconv.Atoi(bits); err == nil {
			cfg.RSABits = n
		}
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
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	// Plain integers are read as minutes.
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}
	return defaultValue
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
