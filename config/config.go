package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultInterval    = time.Second
	DefaultCancelAfter = 2500 * time.Millisecond
	DefaultWorkers     = 4
)

// Config holds the settings shared by the alan commands. Values come from the
// environment, optionally seeded from a .env file, and are usually overridden
// by command-line flags.
type Config struct {
	Interval    time.Duration
	CancelAfter time.Duration
	Workers     int
	DriftReport bool
	ProfileAddr string
}

func Default() *Config {
	return &Config{
		Interval:    DefaultInterval,
		CancelAfter: DefaultCancelAfter,
		Workers:     DefaultWorkers,
	}
}

// Load reads the given .env files, or ".env" if none are given, into the
// environment without overriding variables which are already set, and then
// builds a Config from the ALAN_* variables. Missing .env files are ignored.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", f, err)
		}
	}

	cfg := Default()

	var err error
	if cfg.Interval, err = durationEnv("ALAN_INTERVAL", cfg.Interval); err != nil {
		return nil, err
	}
	if cfg.CancelAfter, err = durationEnv("ALAN_CANCEL_AFTER", cfg.CancelAfter); err != nil {
		return nil, err
	}
	if cfg.Workers, err = intEnv("ALAN_WORKERS", cfg.Workers); err != nil {
		return nil, err
	}
	if cfg.DriftReport, err = boolEnv("ALAN_DRIFT_REPORT", cfg.DriftReport); err != nil {
		return nil, err
	}
	cfg.ProfileAddr = os.Getenv("ALAN_PROFILE_ADDR")

	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("config: ALAN_INTERVAL must be positive, got %s", cfg.Interval)
	}
	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("config: ALAN_WORKERS must be positive, got %d", cfg.Workers)
	}

	return cfg, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

func intEnv(key string, def int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func boolEnv(key string, def bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s: %w", key, err)
	}
	return b, nil
}
