package config

import (
	"os"
	"time"

	"wapair/internal/helper"
)

// Feature flags, set once at startup from the environment.
var (
	OnboardEnabled bool
	EnableRealtime bool
)

// Config carries every tunable the pairing gateway reads from the
// environment. Load is called once in main; the struct is passed down
// by reference after that.
type Config struct {
	Port string

	// Session storage. SessionsDir always exists (per-number directories
	// live under it); SessionDatabaseURL switches the whatsmeow store to
	// a shared Postgres database instead of per-number sqlite files.
	SessionsDir        string
	SessionDatabaseURL string

	// Reconnect policy.
	MaxReconnects    int
	ReconnectBackoff time.Duration

	// Grace window before a never-registered session directory is removed
	// after a 401 close.
	CleanupGrace time.Duration

	// Pause between onboarding steps, to let the freshly paired device
	// settle before messages are pushed through it.
	SettleDelay time.Duration

	// Onboarding sequence.
	GreetingMessage  string
	GreetingImageURL string
	SessionIDPrefix  string
	UploadURL        string

	// Admin auth. Empty JWTSecret leaves the admin routes open (a warning
	// is logged at startup).
	JWTSecret         string
	AdminUsername     string
	AdminPasswordHash string
}

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "2121"),
		SessionsDir:        getEnv("SESSIONS_DIR", "./sessions"),
		SessionDatabaseURL: getEnv("SESSION_DATABASE_URL", ""),
		MaxReconnects:      helper.GetEnvAsInt("MAX_RECONNECTS", 3),
		ReconnectBackoff:   helper.GetEnvAsDuration("RECONNECT_BACKOFF", 10*time.Second),
		CleanupGrace:       helper.GetEnvAsDuration("CLEANUP_GRACE", 2*time.Minute),
		SettleDelay:        helper.GetEnvAsDuration("PAIR_SETTLE_DELAY", 5*time.Second),
		GreetingMessage:    getEnv("GREETING_MESSAGE", "Pairing complete. Keep your session ID safe."),
		GreetingImageURL:   getEnv("GREETING_IMAGE_URL", ""),
		SessionIDPrefix:    getEnv("SESSION_ID_PREFIX", "WAPAIR~"),
		UploadURL:          getEnv("UPLOAD_URL", ""),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		AdminUsername:      getEnv("ADMIN_USERNAME", "admin"),
		AdminPasswordHash:  getEnv("ADMIN_PASSWORD_HASH", ""),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
