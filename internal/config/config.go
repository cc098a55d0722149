package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains runtime configuration values.
type Config struct {
	Environment          string
	HTTPPort             string
	MongoURI             string
	MongoDatabase        string
	ServiceName          string
	ReturnURL            string
	CookieProtectionKey  string
	SessionCookieMaxAge  time.Duration
	TicketSigningKey     string
	TicketIssuer         string
	TicketAudience       string
	TicketTTL            time.Duration
	MaxFailedAttempts    int
	LockoutDuration      time.Duration
	PasswordIterations   int
	TelemetryEndpoint    string
	TelemetryInsecure    bool
	CORSAllowedOrigins   []string
	CORSAllowedMethods   []string
	CORSAllowedHeaders   []string
	CORSAllowCredentials bool
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	cfg := Config{
		Environment:          getEnv("APP_ENV", "development"),
		HTTPPort:             getEnv("HTTP_PORT", "8080"),
		MongoURI:             os.Getenv("MONGO_URI"),
		MongoDatabase:        getEnv("MONGO_DATABASE", "identity"),
		ServiceName:          getEnv("SERVICE_NAME", "ms-identity"),
		ReturnURL:            getEnv("RETURN_URL", "/"),
		CookieProtectionKey:  os.Getenv("COOKIE_PROTECTION_KEY"),
		SessionCookieMaxAge:  getDuration("SESSION_COOKIE_MAX_AGE", 365*24*time.Hour),
		TicketSigningKey:     os.Getenv("TICKET_SIGNING_KEY"),
		TicketIssuer:         getEnv("TICKET_ISSUER", "ms-identity"),
		TicketAudience:       getEnv("TICKET_AUDIENCE", "accounts"),
		TicketTTL:            getDuration("TICKET_TTL", time.Hour),
		MaxFailedAttempts:    getInt("MAX_FAILED_ATTEMPTS", 4),
		LockoutDuration:      getDuration("LOCKOUT_DURATION", 5*time.Minute),
		PasswordIterations:   getInt("PASSWORD_ITERATIONS", 1),
		TelemetryEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure:    getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		CORSAllowedOrigins:   getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		CORSAllowedMethods:   getList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
		CORSAllowedHeaders:   getList("CORS_ALLOWED_HEADERS", []string{"Authorization", "Content-Type"}),
		CORSAllowCredentials: getBool("CORS_ALLOW_CREDENTIALS", true),
	}

	if cfg.MongoURI == "" {
		return Config{}, fmt.Errorf("MONGO_URI is required")
	}
	if cfg.CookieProtectionKey == "" {
		return Config{}, fmt.Errorf("COOKIE_PROTECTION_KEY is required")
	}
	if cfg.TicketSigningKey == "" {
		return Config{}, fmt.Errorf("TICKET_SIGNING_KEY is required")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		var cleaned []string
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}
