// Package config содержит логику чтения конфигурации портала заявок на отпуск.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	defaultRunAddress     = "localhost:8080"
	defaultTimeZone       = "UTC"
	defaultSessionTTL     = 30 * time.Minute
	defaultOverlapWait    = 3 * time.Second
	defaultBackendTimeout = 10 * time.Second
	defaultBackendRetries = 2
)

// Config содержит параметры конфигурации портала.
type Config struct {
	RunAddress     string        `env:"RUN_ADDRESS"`
	BackendAddress string        `env:"BACKEND_ADDRESS"`
	SessionSecret  string        `env:"SESSION_SECRET"`
	TimeZone       string        `env:"TIME_ZONE"`
	SessionTTL     time.Duration `env:"SESSION_TTL"`
	OverlapWait    time.Duration `env:"OVERLAP_WAIT"`
	BackendTimeout time.Duration `env:"BACKEND_TIMEOUT"`
	BackendRetries int           `env:"BACKEND_RETRIES"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envCfg := *cfg
	_, envRetriesSet := os.LookupEnv("BACKEND_RETRIES")

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.BackendAddress, "b", "", "HR backend address")
	flag.StringVar(&cfg.SessionSecret, "s", "", "secret for signing form cookies")
	flag.StringVar(&cfg.TimeZone, "z", defaultTimeZone, "time zone used to determine today's date")
	flag.DurationVar(&cfg.SessionTTL, "t", defaultSessionTTL, "idle timeout of a form session")
	flag.DurationVar(&cfg.OverlapWait, "w", defaultOverlapWait, "max wait for an overlap check in wait=true requests")
	flag.DurationVar(&cfg.BackendTimeout, "backend-timeout", defaultBackendTimeout, "timeout of a single backend request")
	flag.IntVar(&cfg.BackendRetries, "backend-retries", defaultBackendRetries, "retries of idempotent backend reads")

	flag.Parse()

	if envCfg.RunAddress != "" {
		cfg.RunAddress = envCfg.RunAddress
	}
	if envCfg.BackendAddress != "" {
		cfg.BackendAddress = envCfg.BackendAddress
	}
	if envCfg.SessionSecret != "" {
		cfg.SessionSecret = envCfg.SessionSecret
	}
	if envCfg.TimeZone != "" {
		cfg.TimeZone = envCfg.TimeZone
	}
	if envCfg.SessionTTL != 0 {
		cfg.SessionTTL = envCfg.SessionTTL
	}
	if envCfg.OverlapWait != 0 {
		cfg.OverlapWait = envCfg.OverlapWait
	}
	if envCfg.BackendTimeout != 0 {
		cfg.BackendTimeout = envCfg.BackendTimeout
	}
	if envRetriesSet {
		cfg.BackendRetries = envCfg.BackendRetries
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.TimeZone == "" {
		cfg.TimeZone = defaultTimeZone
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("session ttl must be positive, got %s", cfg.SessionTTL)
	}
	if cfg.OverlapWait <= 0 {
		return nil, fmt.Errorf("overlap wait must be positive, got %s", cfg.OverlapWait)
	}
	if cfg.BackendRetries < 0 {
		return nil, fmt.Errorf("backend retries must not be negative, got %d", cfg.BackendRetries)
	}

	return cfg, nil
}
