// internal/config/config.go
//
// Runtime configuration for the minesweeper server.
// Sources, lowest precedence first:
//   1. Built-in defaults (below).
//   2. Optional config.yaml in the given directory.
//   3. Environment variables, after loading .env if present.
//
// Keys are the upper-case environment names, e.g. PORT or DAILY_SALT.

package config

import (
	"errors"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the typed view of every setting the server reads.
type Config struct {
	Port     string `mapstructure:"PORT"`
	LogLevel string `mapstructure:"LOG_LEVEL"`
	DBPath   string `mapstructure:"DB_PATH"`

	JWTSecret      string `mapstructure:"JWT_SECRET"`
	JWTExpiresDays int    `mapstructure:"JWT_EXPIRES_DAYS"`
	CookieName     string `mapstructure:"COOKIE_NAME"`
	ClientOrigin   string `mapstructure:"CLIENT_ORIGIN"`
	Env            string `mapstructure:"NODE_ENV"`

	DefaultSize  int           `mapstructure:"DEFAULT_SIZE"`
	DefaultMines int           `mapstructure:"DEFAULT_MINES"`
	MaxSize      int           `mapstructure:"MAX_SIZE"`
	LevelsFile   string        `mapstructure:"LEVELS_FILE"`
	GameTTL      time.Duration `mapstructure:"GAME_TTL"`

	DailySalt  string `mapstructure:"DAILY_SALT"`
	DailySize  int    `mapstructure:"DAILY_SIZE"`
	DailyMines int    `mapstructure:"DAILY_MINES"`

	SSHAddr    string `mapstructure:"SSH_ADDR"`
	SSHHostKey string `mapstructure:"SSH_HOST_KEY"`
}

var defaults = map[string]any{
	"PORT":             "5175",
	"LOG_LEVEL":        "info",
	"DB_PATH":          "./data/app.db",
	"JWT_SECRET":       "dev_secret_change_me",
	"JWT_EXPIRES_DAYS": 14,
	"COOKIE_NAME":      "mines_token",
	"CLIENT_ORIGIN":    "http://localhost:5173",
	"NODE_ENV":         "development",
	"DEFAULT_SIZE":     9,
	"DEFAULT_MINES":    10,
	"MAX_SIZE":         64,
	"LEVELS_FILE":      "",
	"GAME_TTL":         "2h",
	"DAILY_SALT":       "local_dev_salt",
	"DAILY_SIZE":       16,
	"DAILY_MINES":      40,
	"SSH_ADDR":         "",
	"SSH_HOST_KEY":     "./data/ssh_host_ed25519",
}

// Load reads .env (if any), then config.yaml from dir (if any), then the
// environment.
func Load(dir string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for k, def := range defaults {
		v.SetDefault(k, def)
		// AutomaticEnv only covers keys viper already knows; bind explicitly so
		// Unmarshal sees environment overrides.
		_ = v.BindEnv(k)
	}
	v.AddConfigPath(dir)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Production reports whether cookies should be Secure/SameSite=None.
func (c *Config) Production() bool { return c.Env == "production" }
