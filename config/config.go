/*
Package config loads runtime settings for the lesson engine server.

SOURCES (lowest to highest precedence):
 1. Built-in defaults
 2. .env file in the working directory, when present
 3. Environment variables prefixed with TUTOR_ (TUTOR_PORT, TUTOR_DB_DRIVER, ...)
 4. Command-line flags, applied by cmd/server through the Set* helpers

KEYS:
  env               development | production (selects the zap encoder)
  port              HTTP port
  db_driver         sqlite | postgres
  sqlite_path       SQLite file, ":memory:" for an ephemeral database
  postgres_dsn      pgx connection string, required when db_driver=postgres
  default_timezone  zone for owners without saved settings
  cors_origins      comma separated list of allowed origins
  shutdown_timeout  graceful shutdown budget
  request_timeout   per-request handler deadline
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "TUTOR"

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Env             string
	Port            int
	DBDriver        string
	SQLitePath      string
	PostgresDSN     string
	DefaultTimezone string
	CORSOrigins     []string
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
}

// Load reads defaults, an optional .env file and TUTOR_* variables.
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	v.SetDefault("env", "development")
	v.SetDefault("port", 8080)
	v.SetDefault("db_driver", DriverSQLite)
	v.SetDefault("sqlite_path", "lessons.db")
	v.SetDefault("postgres_dsn", "")
	v.SetDefault("default_timezone", "Europe/Istanbul")
	v.SetDefault("cors_origins", "http://localhost:5173,http://localhost:3000")
	v.SetDefault("shutdown_timeout", 30*time.Second)
	v.SetDefault("request_timeout", 15*time.Second)

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	return v
}

// FromViper builds a Config from v and validates it.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Env:             strings.ToLower(v.GetString("env")),
		Port:            v.GetInt("port"),
		DBDriver:        strings.ToLower(v.GetString("db_driver")),
		SQLitePath:      v.GetString("sqlite_path"),
		PostgresDSN:     v.GetString("postgres_dsn"),
		DefaultTimezone: v.GetString("default_timezone"),
		CORSOrigins:     splitList(v.GetString("cors_origins")),
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),
		RequestTimeout:  v.GetDuration("request_timeout"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	switch c.DBDriver {
	case DriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("config: sqlite_path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.PostgresDSN == "" {
			return errors.New("config: postgres_dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("config: unknown db_driver %q", c.DBDriver)
	}
	if _, err := time.LoadLocation(c.DefaultTimezone); err != nil {
		return fmt.Errorf("config: default_timezone: %w", err)
	}
	if c.ShutdownTimeout <= 0 || c.RequestTimeout <= 0 {
		return errors.New("config: timeouts must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool { return c.Env == "production" }

func (c *Config) Addr() string { return fmt.Sprintf(":%d", c.Port) }

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
