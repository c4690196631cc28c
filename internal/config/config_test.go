package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "https://v6.bvg.transport.rest", cfg.BVGAPIBaseURL)
	assert.Equal(t, "Campus Jungfernsee", cfg.CampusLocation)
	assert.Equal(t, "Europe/Berlin", cfg.Timezone.String())
	assert.Equal(t, 10*time.Minute, cfg.ArrivalBuffer)
	assert.Equal(t, 1, cfg.JourneyResults)
	assert.Equal(t, BackendMemory, cfg.PreferencesBackend)
	assert.False(t, cfg.RedisEnabled)
	assert.Nil(t, cfg.CORSAllowedOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ARRIVAL_BUFFER", "15m")
	t.Setenv("JOURNEY_RESULTS", "3")
	t.Setenv("PREFERENCES_BACKEND", "SQLite")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 15*time.Minute, cfg.ArrivalBuffer)
	assert.Equal(t, 3, cfg.JourneyResults)
	assert.Equal(t, BackendSQLite, cfg.PreferencesBackend)
	assert.True(t, cfg.RedisEnabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ARRIVAL_BUFFER", "ten minutes")
	t.Setenv("REDIS_DB", "x")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, cfg.ArrivalBuffer)
	assert.Equal(t, 0, cfg.RedisDB)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown timezone", map[string]string{"TIMEZONE": "Mars/Olympus"}},
		{"unknown backend", map[string]string{"PREFERENCES_BACKEND": "mongo"}},
		{"postgres without url", map[string]string{"PREFERENCES_BACKEND": "postgres"}},
		{"zero probe interval", map[string]string{"PROBE_INTERVAL": "0s"}},
		{"negative probe interval", map[string]string{"PROBE_INTERVAL": "-1m"}},
		{"zero rate limit window", map[string]string{"RATE_LIMIT_WINDOW": "0s"}},
		{"zero journey results", map[string]string{"JOURNEY_RESULTS": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
