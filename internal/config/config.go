// Package config loads runtime settings from the environment.
//
// An optional .env file is read first; variables already present in the
// process environment win over it. Every setting has a default that is good
// enough for local development.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/sakif/userdesk/internal/auth"
	"github.com/sakif/userdesk/internal/session"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// devSessionSecret is only accepted outside production.
const devSessionSecret = "userdesk-dev-secret-change-me"

type Config struct {
	Port          int
	Env           string
	SessionSecret string
	SessionTTL    time.Duration
	StoreDriver   string
	DBPath        string
	BcryptCost    int
	LogLevel      string
}

// Load reads the configuration. envFile names a dotenv file to read first;
// when empty, ".env" is tried and silently skipped if absent. A named file
// that cannot be read is an error.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("config: loading %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	port, err := getEnvInt("PORT", 3000)
	if err != nil {
		return Config{}, err
	}
	cost, err := getEnvInt("BCRYPT_COST", auth.DefaultCost)
	if err != nil {
		return Config{}, err
	}
	ttl, err := getEnvDuration("SESSION_TTL", session.DefaultTTL)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port:          port,
		Env:           getEnv("APP_ENV", EnvDevelopment),
		SessionSecret: os.Getenv("SESSION_SECRET"),
		SessionTTL:    ttl,
		StoreDriver:   strings.ToLower(getEnv("STORE_DRIVER", DriverMemory)),
		DBPath:        getEnv("DB_PATH", ":memory:"),
		BcryptCost:    cost,
		LogLevel:      os.Getenv("LOG_LEVEL"),
	}
	return cfg, nil
}

// Validate reports every bad value at once.
// In development a missing session secret is replaced by a fixed one;
// UsingDevSecret tells the caller to warn about it.
func (c *Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	if c.Env != EnvDevelopment && c.Env != EnvProduction {
		errs = append(errs, fmt.Errorf("APP_ENV must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Env))
	}

	if c.SessionSecret == "" && c.Env != EnvProduction {
		c.SessionSecret = devSessionSecret
	}
	switch {
	case c.SessionSecret == "":
		errs = append(errs, errors.New("SESSION_SECRET is required in production"))
	case len(c.SessionSecret) < session.MinSecretLength:
		errs = append(errs, fmt.Errorf("SESSION_SECRET must be at least %d characters", session.MinSecretLength))
	}

	if c.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL))
	}
	if c.StoreDriver != DriverMemory && c.StoreDriver != DriverSQLite {
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverMemory, DriverSQLite, c.StoreDriver))
	}
	if c.StoreDriver == DriverSQLite && c.DBPath == "" {
		errs = append(errs, errors.New("DB_PATH is required for the sqlite driver"))
	}
	switch {
	case c.BcryptCost < 4 || c.BcryptCost > 31:
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost))
	case c.Env == EnvProduction && c.BcryptCost < auth.DefaultCost:
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be at least %d in production, got %d", auth.DefaultCost, c.BcryptCost))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Secure reports whether cookies must carry the Secure attribute.
func (c Config) Secure() bool {
	return c.Env == EnvProduction
}

// UsingDevSecret reports whether the built-in development secret is in use.
func (c Config) UsingDevSecret() bool {
	return c.SessionSecret == devSessionSecret
}

// Addr is the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// SlogLevel returns the configured log level. When LOG_LEVEL is unset,
// development logs at debug and production at info.
func (c Config) SlogLevel() slog.Level {
	if c.LogLevel == "" {
		if c.Env == EnvProduction {
			return slog.LevelInfo
		}
		return slog.LevelDebug
	}
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", s)
	}
	return level, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer, got %q", key, v)
	}
	return n, nil
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be a duration such as 24h, got %q", key, v)
	}
	return d, nil
}
