/*
Package config loads server settings.

PURPOSE:
  One place for everything that varies between a laptop and a deployment:
  listen port, database, rate table, reconciler schedule and CORS origins.

SOURCES (later wins):
  1. Defaults below
  2. Config file (YAML, optional): --config flag or ./revurdering.yaml
  3. Environment: REVURDERING_<KEY>, nested keys joined by "_"
     e.g. REVURDERING_RECONCILER_INTERVAL=1m
  4. Command line flags bound by cmd/server

KEYS:
  port                    8080
  db                      ./revurdering.db   (":memory:" for a throwaway database)
  store                   sqlite             (sqlite | memory)
  rates_file              ""                 (empty: built-in rate table)
  cors_origins            [http://localhost:5173, http://localhost:8080]
  reconciler.enabled      true
  reconciler.interval     5m
  reconciler.concurrency  4

SEE ALSO:
  - cmd/server/main.go: flag binding
  - factory/rates.go: rates_file format
*/
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "REVURDERING"

type Reconciler struct {
	Enabled     bool          `mapstructure:"enabled"`
	Interval    time.Duration `mapstructure:"interval"`
	Concurrency int           `mapstructure:"concurrency"`
}

type Config struct {
	Port        int        `mapstructure:"port"`
	DB          string     `mapstructure:"db"`
	Store       string     `mapstructure:"store"`
	RatesFile   string     `mapstructure:"rates_file"`
	CORSOrigins []string   `mapstructure:"cors_origins"`
	Reconciler  Reconciler `mapstructure:"reconciler"`
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("port", 8080)
	v.SetDefault("db", "./revurdering.db")
	v.SetDefault("store", "sqlite")
	v.SetDefault("rates_file", "")
	v.SetDefault("cors_origins", []string{"http://localhost:5173", "http://localhost:8080"})
	v.SetDefault("reconciler.enabled", true)
	v.SetDefault("reconciler.interval", 5*time.Minute)
	v.SetDefault("reconciler.concurrency", 4)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file and decodes v. An explicit file that
// does not exist is an error; a missing default file is not.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("revurdering")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	switch c.Store {
	case "sqlite":
		if c.DB == "" {
			return errors.New("db is required for the sqlite store")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown store %q (sqlite or memory)", c.Store)
	}
	if c.Reconciler.Enabled && c.Reconciler.Interval <= 0 {
		return fmt.Errorf("reconciler interval must be positive, got %v", c.Reconciler.Interval)
	}
	if c.Reconciler.Concurrency < 1 {
		return fmt.Errorf("reconciler concurrency must be at least 1, got %d", c.Reconciler.Concurrency)
	}
	return nil
}
