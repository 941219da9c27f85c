// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreSQLite   = "sqlite"
	StoreFirebase = "firebase"
	StoreNone     = "none"
)

type Config struct {
	Port           int      `env:"PORT" envDefault:"5000"`
	AllowedOrigins []string `env:"CORS_ORIGINS" envDefault:"http://localhost:5173" envSeparator:","`
	LogLevel       string   `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat      string   `env:"LOG_FORMAT" envDefault:"console"`

	SMTPHost   string `env:"SMTP_HOST" envDefault:"smtp.gmail.com"`
	SMTPPort   int    `env:"SMTP_PORT" envDefault:"587"`
	GmailUser  string `env:"GMAIL_USER"`
	GmailPass  string `env:"GMAIL_PASS"`
	AdminEmail string `env:"ADMIN_EMAIL"`

	StoreDriver         string `env:"STORE_DRIVER" envDefault:"sqlite"`
	SQLitePath          string `env:"SQLITE_PATH" envDefault:"symposium.db"`
	FirebaseKeyPath     string `env:"FIREBASE_SERVICE_ACCOUNT_KEY_PATH"`
	FirebaseDatabaseURL string `env:"FIREBASE_DATABASE_URL"`

	TelegramToken       string        `env:"TELEGRAM_BOT_TOKEN"`
	TelegramAdminChatID int64         `env:"TELEGRAM_ADMIN_CHAT_ID"`
	TelegramAdminChats  []int64       `env:"TELEGRAM_ADMIN_CHATS" envSeparator:","`
	RegistrationAPIURL  string        `env:"REGISTRATION_API_URL"`
	BotSessionIdle      time.Duration `env:"BOT_SESSION_IDLE" envDefault:"30m"`

	AdminLoginEmail   string        `env:"ADMIN_LOGIN_EMAIL"`
	AdminPasswordHash string        `env:"ADMIN_PASSWORD_HASH"`
	SessionSecret     string        `env:"SESSION_SECRET"`
	SessionTTL        time.Duration `env:"SESSION_TTL" envDefault:"12h"`

	SubmitTimeout time.Duration `env:"SUBMIT_TIMEOUT" envDefault:"20s"`
}

// Load reads envFile into the process environment when it exists, then
// parses Config from the environment. Variables already set win over the file.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks combinations that env tags cannot express.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite store")
		}
	case StoreFirebase:
		if c.FirebaseKeyPath == "" {
			return fmt.Errorf("FIREBASE_SERVICE_ACCOUNT_KEY_PATH environment variable not set")
		}
		if c.FirebaseDatabaseURL == "" {
			return fmt.Errorf("FIREBASE_DATABASE_URL environment variable not set")
		}
	case StoreNone:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}
	if c.SubmitTimeout <= 0 {
		return fmt.Errorf("SUBMIT_TIMEOUT must be positive")
	}
	if c.BotSessionIdle <= 0 {
		return fmt.Errorf("BOT_SESSION_IDLE must be positive")
	}
	return nil
}

// AdminLoginEnabled reports whether the admin endpoints can issue sessions.
func (c Config) AdminLoginEnabled() bool {
	return c.AdminLoginEmail != "" && c.AdminPasswordHash != "" && c.SessionSecret != ""
}

// AdminChats lists every chat allowed to use the admin bot commands.
func (c Config) AdminChats() []int64 {
	chats := append([]int64(nil), c.TelegramAdminChats...)
	if c.TelegramAdminChatID != 0 {
		for _, id := range chats {
			if id == c.TelegramAdminChatID {
				return chats
			}
		}
		chats = append(chats, c.TelegramAdminChatID)
	}
	return chats
}
