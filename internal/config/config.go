package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

type Config struct {
	LogLevel        slog.Level
	LogFile         string
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	BVGAPIBaseURL   string
	GeocodeURL      string
	GeocodeContact  string
	UpstreamTimeout time.Duration

	CampusLocation string
	Timezone       *time.Location
	ArrivalBuffer  time.Duration
	JourneyResults int

	PreferencesBackend string
	DatabaseURL        string
	SQLiteDatabase     string

	RedisEnabled    bool
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	GeocodeCacheTTL time.Duration
	SessionTTL      time.Duration
	ProbeInterval   time.Duration

	RateLimitPerWindow int
	RateLimitWindow    time.Duration
	RateLimitWhitelist []string
	CORSAllowedOrigins []string
}

// Load reads the configuration from the environment. A .env file in the
// working directory is applied first when present; variables already set
// in the environment win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	tzName := getEnv("TIMEZONE", "Europe/Berlin")
	tz, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tzName, err)
	}

	cfg := &Config{
		LogLevel:        getLogLevelEnv("LOG_LEVEL", slog.LevelInfo),
		LogFile:         getEnv("LOG_FILE", ""),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		ReadTimeout:     getDurationEnv("READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    getDurationEnv("WRITE_TIMEOUT", 30*time.Second),
		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),

		BVGAPIBaseURL:   getEnv("BVG_API_URL", "https://v6.bvg.transport.rest"),
		GeocodeURL:      getEnv("GEOCODE_URL", "https://nominatim.openstreetmap.org/search"),
		GeocodeContact:  getEnv("GEOCODE_CONTACT", "campuspulse@example.com"),
		UpstreamTimeout: getDurationEnv("UPSTREAM_TIMEOUT", 10*time.Second),

		CampusLocation: getEnv("CAMPUS_LOCATION", "Campus Jungfernsee"),
		Timezone:       tz,
		ArrivalBuffer:  getDurationEnv("ARRIVAL_BUFFER", 10*time.Minute),
		JourneyResults: getIntEnv("JOURNEY_RESULTS", 1),

		PreferencesBackend: strings.ToLower(getEnv("PREFERENCES_BACKEND", BackendMemory)),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		SQLiteDatabase:     getEnv("SQLITE_DATABASE", "campuspulse.db"),

		RedisEnabled:    getBoolEnv("REDIS_ENABLED", false),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getIntEnv("REDIS_DB", 0),
		GeocodeCacheTTL: getDurationEnv("GEOCODE_CACHE_TTL", 7*24*time.Hour),
		SessionTTL:      getDurationEnv("SESSION_TTL", 2*time.Hour),
		ProbeInterval:   getDurationEnv("PROBE_INTERVAL", time.Minute),

		RateLimitPerWindow: getIntEnv("RATE_LIMIT_PER_WINDOW", 120),
		RateLimitWindow:    getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),
		RateLimitWhitelist: getCSVEnv("RATE_LIMIT_WHITELIST"),
		CORSAllowedOrigins: getCSVEnv("CORS_ALLOWED_ORIGINS"),
	}

	if cfg.ProbeInterval <= 0 {
		return nil, fmt.Errorf("PROBE_INTERVAL must be positive, got %s", cfg.ProbeInterval)
	}
	if cfg.RateLimitWindow <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %s", cfg.RateLimitWindow)
	}
	if cfg.JourneyResults <= 0 {
		return nil, fmt.Errorf("JOURNEY_RESULTS must be positive, got %d", cfg.JourneyResults)
	}

	switch cfg.PreferencesBackend {
	case BackendMemory, BackendSQLite:
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the postgres preferences backend")
		}
	default:
		return nil, fmt.Errorf("unknown PREFERENCES_BACKEND %q", cfg.PreferencesBackend)
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getLogLevelEnv(key string, defaultVal slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}

	switch strings.ToLower(v) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return defaultVal
	}
}

func getCSVEnv(key string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}

	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			result = append(result, t)
		}
	}
	return result
}
