package config

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/lawrelay/lawyer-bot/internal/store"
)

var ErrMissing = errors.New("required setting is missing")

type Config struct {
	TelegramToken  string        `mapstructure:"telegram_token"`
	ReviewerChatID int64         `mapstructure:"reviewer_chat_id"`
	StoreBackend   string        `mapstructure:"store_backend"`
	StorePath      string        `mapstructure:"store_path"`
	PhonePattern   string        `mapstructure:"phone_pattern"`
	LogLevel       string        `mapstructure:"log_level"`
	LogFormat      string        `mapstructure:"log_format"`
	PollTimeout    time.Duration `mapstructure:"poll_timeout"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`

	Phone *regexp.Regexp `mapstructure:"-"`
}

// env maps each key to its environment variable
var env = map[string]string{
	"telegram_token":   "TELEGRAM_BOT_TOKEN",
	"reviewer_chat_id": "REVIEWER_CHAT_ID",
	"store_backend":    "STORE_BACKEND",
	"store_path":       "STORE_PATH",
	"phone_pattern":    "PHONE_PATTERN",
	"log_level":        "LOG_LEVEL",
	"log_format":       "LOG_FORMAT",
	"poll_timeout":     "POLL_TIMEOUT",
	"retry_delay":      "RETRY_DELAY",
}

// Load reads settings from the environment and an optional config.yaml.
// LAWBOT_CONFIG points at an explicit config file.
func Load() (Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (Config, error) {
	v.SetDefault("store_backend", store.BackendFile)
	v.SetDefault("phone_pattern", `^\+\d{11}$`)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("poll_timeout", 60*time.Second)
	v.SetDefault("retry_delay", 15*time.Second)

	for key, name := range env {
		if err := v.BindEnv(key, name); err != nil {
			return Config{}, err
		}
	}

	v.SetConfigType("yaml")
	if err := v.BindEnv("config_file", "LAWBOT_CONFIG"); err != nil {
		return Config{}, err
	}
	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("%w: %s", ErrMissing, env["telegram_token"])
	}
	if c.ReviewerChatID == 0 {
		return fmt.Errorf("%w: %s", ErrMissing, env["reviewer_chat_id"])
	}

	c.StoreBackend = strings.ToLower(c.StoreBackend)
	switch c.StoreBackend {
	case store.BackendFile:
		if c.StorePath == "" {
			c.StorePath = "questions.json"
		}
	case store.BackendSQLite:
		if c.StorePath == "" {
			c.StorePath = "./data/questions.db"
		}
	default:
		return fmt.Errorf("invalid %s %q: want %s or %s",
			env["store_backend"], c.StoreBackend, store.BackendFile, store.BackendSQLite)
	}

	phone, err := regexp.Compile(c.PhonePattern)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", env["phone_pattern"], err)
	}
	c.Phone = phone

	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("invalid %s %q: want text or json", env["log_format"], c.LogFormat)
	}
	if c.PollTimeout <= 0 {
		return fmt.Errorf("invalid %s: must be positive", env["poll_timeout"])
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("invalid %s: must not be negative", env["retry_delay"])
	}
	return nil
}

// ParseLevel converts a log level name to a slog level
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", env["log_level"], name, err)
	}
	return level, nil
}
