// Package config loads application settings from the environment and an
// optional config file using viper.
//
// Every key has a default so `superlists serve` works out of the box on a
// developer machine. Outside the "local" environment SESSION_SECRET must be set.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every setting the server and the CLI commands need.
type Config struct {
	AppEnv            string        `mapstructure:"APP_ENV"`
	Port              int           `mapstructure:"PORT"`
	DBPath            string        `mapstructure:"DB_PATH"`
	BaseURL           string        `mapstructure:"BASE_URL"`
	SessionSecret     string        `mapstructure:"SESSION_SECRET"`
	SessionTTL        time.Duration `mapstructure:"SESSION_TTL"`
	LoginTokenTTL     time.Duration `mapstructure:"LOGIN_TOKEN_TTL"`
	LoginLinkInterval time.Duration `mapstructure:"LOGIN_LINK_INTERVAL"`
	LoginLinkBurst    int           `mapstructure:"LOGIN_LINK_BURST"`
	MailFrom          string        `mapstructure:"MAIL_FROM"`
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
}

// IsLocal reports whether the server runs in the developer environment.
func (c Config) IsLocal() bool {
	return c.AppEnv == "local"
}

// Load reads configuration from the environment, and from configFile if it
// is not empty. Environment variables win over the file.
func Load(configFile string) (Config, error) {
	v := viper.New()

	v.SetDefault("APP_ENV", "local")
	v.SetDefault("PORT", 8080)
	v.SetDefault("DB_PATH", "data/superlists.db")
	v.SetDefault("BASE_URL", "http://localhost:8080")
	v.SetDefault("SESSION_SECRET", "")
	v.SetDefault("SESSION_TTL", 14*24*time.Hour)
	v.SetDefault("LOGIN_TOKEN_TTL", time.Hour)
	v.SetDefault("LOGIN_LINK_INTERVAL", 10*time.Second)
	v.SetDefault("LOGIN_LINK_BURST", 3)
	v.SetDefault("MAIL_FROM", "noreply@superlists")
	v.SetDefault("LOG_LEVEL", "info")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", configFile, err)
		}
	}

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decoding: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("DB_PATH must not be empty"))
	}
	if c.BaseURL == "" {
		errs = append(errs, errors.New("BASE_URL must not be empty"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.LoginTokenTTL < 0 {
		errs = append(errs, errors.New("LOGIN_TOKEN_TTL must not be negative"))
	}
	if c.LoginLinkInterval < 0 {
		errs = append(errs, errors.New("LOGIN_LINK_INTERVAL must not be negative"))
	}
	if c.LoginLinkBurst < 1 {
		errs = append(errs, errors.New("LOGIN_LINK_BURST must be at least 1"))
	}
	if !c.IsLocal() && c.SessionSecret == "" {
		errs = append(errs, fmt.Errorf("SESSION_SECRET is required when APP_ENV=%s", c.AppEnv))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
