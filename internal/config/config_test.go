package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, ":8000", cfg.HTTPAddr)
	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, 12.0, cfg.SessionTimeoutHours)
	assert.Equal(t, 5.0, cfg.HeartbeatMinutes)
	assert.Equal(t, 2.0, cfg.HeartbeatGraceFactor)
	assert.Equal(t, 100.0, cfg.ProximityMeters)
	assert.Equal(t, 6, cfg.PoorAccuracyThreshold)
	assert.Equal(t, 5*time.Minute, cfg.AutoLogoutCheckEvery)
	assert.Equal(t, 30*time.Minute, cfg.StaleSweepEvery)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("SESSION_TIMEOUT_HOURS", "8.5")
	t.Setenv("HEARTBEAT_GRACE_FACTOR", "1.5")
	t.Setenv("CRON_SECRET", "vercel-secret")
	t.Setenv("POOR_ACCURACY_THRESHOLD", "not-a-number")

	cfg := Load()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, "", cfg.CronSecret)
	assert.Equal(t, "vercel-secret", cfg.CronBearerSecret)
	assert.Equal(t, 6, cfg.PoorAccuracyThreshold)

	p, err := cfg.Policy()
	require.NoError(t, err)
	assert.Equal(t, 8*time.Hour+30*time.Minute, p.SessionTimeout)
	assert.Equal(t, 7*time.Minute+30*time.Second, p.HeartbeatWindow())
}

func TestCronSecrets(t *testing.T) {
	t.Setenv("INTERNAL_CRON_SECRET", "internal")
	cfg := Load()
	assert.Equal(t, "internal", cfg.CronSecret)
	assert.Equal(t, "internal", cfg.CronBearerSecret)

	t.Setenv("CRON_SECRET", "vercel")
	cfg = Load()
	assert.Equal(t, "internal", cfg.CronSecret)
	assert.Equal(t, "vercel", cfg.CronBearerSecret)
}

func TestValidate(t *testing.T) {
	cfg := Load()
	cfg.StoreDriver = StoreDriverPostgres
	cfg.DatabaseURL = ""
	assert.Error(t, cfg.Validate())

	cfg.StoreDriver = "sqlite"
	assert.Error(t, cfg.Validate())

	cfg.StoreDriver = StoreDriverMemory
	cfg.HeartbeatGraceFactor = 0.5
	assert.Error(t, cfg.Validate())
}

func TestLoadTimezone(t *testing.T) {
	loc, err := LoadTimezone("Asia/Kolkata")
	require.NoError(t, err)
	_, offset := time.Date(2024, 1, 1, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, 5*3600+30*60, offset)

	_, err = LoadTimezone("Mars/Olympus")
	assert.Error(t, err)
}

func TestCORSOrigins(t *testing.T) {
	assert.Equal(t, []string{"*"}, Load().CORSOrigins)

	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, Load().CORSOrigins)
}
