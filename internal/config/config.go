package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"attendance-service/internal/domain/attendance"
	"attendance-service/internal/pkg/jwt"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
	StoreDriverMemory   = "memory"
)

type AppConfig struct {
	// Server
	Env         string
	HTTPAddr    string
	CORSOrigins []string
	RedisAddr   string
	RedisPass   string

	// Storage
	StoreDriver   string
	DatabaseURL   string
	MongoURI      string
	MongoDatabase string

	// JWT
	JWT jwt.Config

	// Session lifecycle
	SessionTimeoutHours   float64
	HeartbeatMinutes      float64
	HeartbeatGraceFactor  float64
	ProximityMeters       float64
	PoorAccuracyThreshold int
	ReportTimezone        string
	LoginMaxAttempts      int64

	// Scheduler
	SchedulerEnabled     bool
	AutoLogoutCheckEvery time.Duration
	StaleSweepEvery      time.Duration

	// Internal endpoints. CronSecret is matched against the
	// x-internal-cron-secret header, CronBearerSecret against a bearer token.
	CronSecret       string
	CronBearerSecret string
}

// Load loads environment variables into AppConfig.
func Load() AppConfig {
	return AppConfig{
		Env:         getEnv("APP_ENV", "production"),
		HTTPAddr:    getEnv("HTTP_ADDR", ":8000"),
		CORSOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		RedisAddr:   getEnv("REDIS_ADDR", ""),
		RedisPass:   getEnv("REDIS_PASS", ""),

		StoreDriver:   strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGO_DATABASE", "attendance_monitoring"),

		JWT: jwt.Config{
			PrivPath: getEnv("JWT_PRIVATE_KEY_PATH", "/app/secrets/jwt_private.pem"),
			PubPath:  getEnv("JWT_PUBLIC_KEY_PATH", "/app/secrets/jwt_public.pem"),
			Issuer:   "attendance-service",
			Audience: "attendance-clients",
			TTL:      time.Duration(getEnvFloat("SESSION_TIMEOUT_HOURS", 12) * float64(time.Hour)),
			KID:      getEnv("JWT_KID", "attendance-key"),
		},

		SessionTimeoutHours:   getEnvFloat("SESSION_TIMEOUT_HOURS", 12),
		HeartbeatMinutes:      getEnvFloat("HEARTBEAT_MINUTES", 5),
		HeartbeatGraceFactor:  getEnvFloat("HEARTBEAT_GRACE_FACTOR", 2),
		ProximityMeters:       getEnvFloat("LOCATION_PROXIMITY_METERS", 100),
		PoorAccuracyThreshold: getEnvInt("POOR_ACCURACY_THRESHOLD", 6),
		ReportTimezone:        getEnv("REPORT_TIMEZONE", "Asia/Kolkata"),
		LoginMaxAttempts:      int64(getEnvInt("LOGIN_MAX_ATTEMPTS", 5)),

		SchedulerEnabled:     getEnvBool("SCHEDULER_ENABLED", true),
		AutoLogoutCheckEvery: minutes(getEnvFloat("AUTO_LOGOUT_CHECK_MINUTES", 5)),
		StaleSweepEvery:      minutes(getEnvFloat("STALE_SWEEP_MINUTES", 30)),

		CronSecret:       os.Getenv("INTERNAL_CRON_SECRET"),
		CronBearerSecret: firstNonEmpty(os.Getenv("CRON_SECRET"), os.Getenv("INTERNAL_CRON_SECRET")),
	}
}

func (c AppConfig) IsDevelopment() bool {
	return c.Env == "development"
}

// Policy builds the session policy handed to the engine and scheduler.
func (c AppConfig) Policy() (attendance.Policy, error) {
	loc, err := LoadTimezone(c.ReportTimezone)
	if err != nil {
		return attendance.Policy{}, err
	}
	p := attendance.Policy{
		SessionTimeout:        time.Duration(c.SessionTimeoutHours * float64(time.Hour)),
		HeartbeatInterval:     minutes(c.HeartbeatMinutes),
		HeartbeatGraceFactor:  c.HeartbeatGraceFactor,
		ProximityMeters:       c.ProximityMeters,
		PoorAccuracyThreshold: c.PoorAccuracyThreshold,
		Location:              loc,
	}
	if err := p.Validate(); err != nil {
		return attendance.Policy{}, fmt.Errorf("invalid session policy: %w", err)
	}
	return p, nil
}

// Validate checks the settings that would otherwise fail late.
func (c AppConfig) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	case StoreDriverMongo:
		if c.MongoURI == "" || c.MongoDatabase == "" {
			return fmt.Errorf("MONGO_URI and MONGO_DATABASE are required for the mongo store")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.AutoLogoutCheckEvery <= 0 || c.StaleSweepEvery <= 0 {
		return fmt.Errorf("scheduler intervals must be positive")
	}
	if c.LoginMaxAttempts < 1 {
		return fmt.Errorf("LOGIN_MAX_ATTEMPTS must be >= 1")
	}
	_, err := c.Policy()
	return err
}

// LoadTimezone resolves an IANA zone name. Asia/Kolkata falls back to a
// fixed +05:30 zone on hosts without tzdata.
func LoadTimezone(name string) (*time.Location, error) {
	loc, err := time.LoadLocation(name)
	if err == nil {
		return loc, nil
	}
	if name == "Asia/Kolkata" {
		return time.FixedZone("IST", 5*3600+30*60), nil
	}
	return nil, fmt.Errorf("failed to load timezone %q: %w", name, err)
}

// --- Helper functions ---

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func minutes(m float64) time.Duration {
	return time.Duration(m * float64(time.Minute))
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
