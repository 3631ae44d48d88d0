package config

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	Port         string
	DBDSN        string
	MediaDir     string
	TemplatesDir string
	LogFile      string
	LogLevel     string

	StripeSecretKey      string
	StripePublishableKey string
	Currency             string

	JWTSecret    string
	CookieSecure bool
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Port:                 getenv("PORT", "8080"),
		DBDSN:                getenv("DB_DSN", "gadgetshop.db"), // sqlite file in project root
		MediaDir:             getenv("MEDIA_DIR", "./web/media"),
		TemplatesDir:         getenv("TEMPLATES_DIR", "./web/templates"),
		LogFile:              os.Getenv("LOG_FILE"),
		LogLevel:             getenv("LOG_LEVEL", "info"),
		StripeSecretKey:      os.Getenv("STRIPE_SECRET_KEY"),
		StripePublishableKey: os.Getenv("STRIPE_PUBLISHABLE_KEY"),
		Currency:             strings.ToLower(getenv("CURRENCY", "rub")),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		CookieSecure:         parseBool(os.Getenv("COOKIE_SECURE")),
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = randomKey()
		zap.L().Warn("config.jwt_secret.generated", zap.String("hint", "set JWT_SECRET to keep API tokens valid across restarts"))
	}

	zap.L().Info("config.loaded",
		zap.String("port", cfg.Port),
		zap.String("db_dsn", cfg.DBDSN),
		zap.String("media_dir", cfg.MediaDir),
		zap.String("log_file", cfg.LogFile),
		zap.Bool("payments", cfg.StripeSecretKey != ""),
	)
	return cfg
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func randomKey() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
