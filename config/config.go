package config

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            string
	SQLitePath      string
	RedisURL        string
	RequestTimeout  time.Duration
	BlobBucket      string
	AttachmentDir   string
	LeaderboardSize int
	LogLevel        slog.Level
	Database        DatabaseConfig
	JWT             JWTConfig
}

type JWTConfig struct {
	SecretKey         string
	AccessExpiration  time.Duration
	RefreshExpiration time.Duration
	Issuer            string
}

// Load reads an optional .env file and then the environment.
func Load() (Config, error) {
	// A missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	testMode := os.Getenv("GO_ENV") == "test"

	var e env
	cfg := Config{
		Port:            e.getString("PORT", "8080"),
		SQLitePath:      e.getString("SQLITE_PATH", "data/taskquest.db"),
		RedisURL:        e.getString("REDIS_URL", ""),
		RequestTimeout:  e.getDuration("REQUEST_TIMEOUT", 10*time.Second),
		BlobBucket:      e.getString("BLOB_BUCKET", "taskquest_files"),
		AttachmentDir:   e.getString("ATTACHMENT_DIR", "data/attachments"),
		LeaderboardSize: e.getInt("LEADERBOARD_SIZE", 50),
		LogLevel:        parseLevel(e.getString("LOG_LEVEL", "info")),
		Database:        loadDatabaseConfig(&e),
		JWT: JWTConfig{
			SecretKey:         e.getString("JWT_SECRET_KEY", ""),
			AccessExpiration:  e.getDuration("JWT_EXPIRATION_TIME", time.Hour),
			RefreshExpiration: e.getDuration("REFRESH_TOKEN_EXPIRATION_TIME", 7*24*time.Hour),
			Issuer:            "taskquest",
		},
	}
	if err := e.err(); err != nil {
		return Config{}, err
	}

	if cfg.JWT.SecretKey == "" {
		if !testMode {
			return Config{}, errors.New("JWT_SECRET_KEY is not set")
		}
		cfg.JWT.SecretKey = "test_secret_key"
	}
	if cfg.LeaderboardSize <= 0 {
		cfg.LeaderboardSize = 50
	}
	return cfg, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
