package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config defines server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	DB        DBConfig        `yaml:"db"`
	Log       LogConfig       `yaml:"log"`
	Transport TransportConfig `yaml:"transport"`
	Auth      AuthConfig      `yaml:"auth"`
	Discord   DiscordConfig   `yaml:"discord"`
	Recovery  RecoveryConfig  `yaml:"recovery"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

type TransportConfig struct {
	// Mode is "http" or "stdio".
	Mode string `yaml:"mode"`
}

type AuthConfig struct {
	Enabled bool `yaml:"enabled"`
}

type DiscordConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

type RecoveryConfig struct {
	MaxSessionAgeHours int `yaml:"max_session_age_hours"`
	TickIntervalHours  int `yaml:"tick_interval_hours"`
	RetentionDays      int `yaml:"retention_days"`
}

func (r RecoveryConfig) MaxSessionAge() time.Duration {
	return time.Duration(r.MaxSessionAgeHours) * time.Hour
}

func (r RecoveryConfig) TickInterval() time.Duration {
	return time.Duration(r.TickIntervalHours) * time.Hour
}

func (r RecoveryConfig) Retention() time.Duration {
	return time.Duration(r.RetentionDays) * 24 * time.Hour
}

// Load reads configuration from an optional YAML file, an optional .env file
// and environment variables, in increasing order of precedence.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		DB: DBConfig{
			Path: "voicetally.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Transport: TransportConfig{
			Mode: "http",
		},
		Discord: DiscordConfig{
			Enabled: true,
		},
		Recovery: RecoveryConfig{
			MaxSessionAgeHours: 24,
			TickIntervalHours:  24,
			RetentionDays:      30,
		},
	}

	if err := loadDotEnv(envOr("VOICETALLY_ENV_FILE", ".env")); err != nil {
		return Config{}, err
	}

	if path := os.Getenv("VOICETALLY_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if host := os.Getenv("VOICETALLY_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if err := intFromEnv("VOICETALLY_SERVER_PORT", &cfg.Server.Port); err != nil {
		return Config{}, err
	}
	if dbPath := os.Getenv("VOICETALLY_DB_PATH"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if level := os.Getenv("VOICETALLY_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if logPath := os.Getenv("VOICETALLY_LOG_PATH"); logPath != "" {
		cfg.Log.Path = logPath
	}
	if mode := os.Getenv("VOICETALLY_TRANSPORT_MODE"); mode != "" {
		cfg.Transport.Mode = mode
	}
	if err := boolFromEnv("VOICETALLY_AUTH_ENABLED", &cfg.Auth.Enabled); err != nil {
		return Config{}, err
	}
	if err := boolFromEnv("VOICETALLY_DISCORD_ENABLED", &cfg.Discord.Enabled); err != nil {
		return Config{}, err
	}
	if token := os.Getenv("VOICETALLY_DISCORD_TOKEN"); token != "" {
		cfg.Discord.Token = token
	}
	if err := intFromEnv("VOICETALLY_MAX_SESSION_AGE_HOURS", &cfg.Recovery.MaxSessionAgeHours); err != nil {
		return Config{}, err
	}
	if err := intFromEnv("VOICETALLY_TICK_INTERVAL_HOURS", &cfg.Recovery.TickIntervalHours); err != nil {
		return Config{}, err
	}
	if err := intFromEnv("VOICETALLY_RETENTION_DAYS", &cfg.Recovery.RetentionDays); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Transport.Mode {
	case "http", "stdio":
	default:
		return fmt.Errorf("invalid transport mode %q", c.Transport.Mode)
	}
	if c.Discord.Enabled && c.Discord.Token == "" {
		return errors.New("discord token is required when discord is enabled")
	}
	if c.Recovery.MaxSessionAgeHours <= 0 || c.Recovery.TickIntervalHours <= 0 || c.Recovery.RetentionDays <= 0 {
		return errors.New("recovery settings must be positive")
	}
	return nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// loadDotEnv exports variables from path without overriding the real
// environment. A missing file is not an error.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load env file: %w", err)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intFromEnv(key string, dst *int) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func boolFromEnv(key string, dst *bool) error {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}
