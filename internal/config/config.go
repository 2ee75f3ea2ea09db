// Package config reads the bridge configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Environment variables understood by the bridge.
const (
	EnvWorkers    = "COLBRIDGE_WORKERS"
	EnvQueueDepth = "COLBRIDGE_QUEUE_DEPTH"
	EnvLogLevel   = "COLBRIDGE_LOG_LEVEL"
)

// ErrInvalidConfig is returned when an environment value cannot be used.
var ErrInvalidConfig = errors.New("invalid bridge config")

// Config holds the process-wide settings of the bridge.
type Config struct {
	// Workers is the number of executor goroutines.
	Workers int

	// QueueDepth is the capacity of the executor task queue.
	QueueDepth int

	// LogLevel is the minimum level written to stderr.
	LogLevel slog.Level
}

// Default returns the configuration used when no variable is set.
func Default() Config {
	workers := runtime.GOMAXPROCS(0)
	return Config{
		Workers:    workers,
		QueueDepth: workers * 64,
		LogLevel:   slog.LevelWarn,
	}
}

// Load builds a Config from the process environment.
func Load() (Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom builds a Config using lookup instead of the process environment.
func LoadFrom(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if v, ok := lookup(EnvWorkers); ok {
		n, err := positiveInt(EnvWorkers, v)
		if err != nil {
			return Config{}, err
		}
		cfg.Workers = n
		cfg.QueueDepth = n * 64
	}

	if v, ok := lookup(EnvQueueDepth); ok {
		n, err := positiveInt(EnvQueueDepth, v)
		if err != nil {
			return Config{}, err
		}
		cfg.QueueDepth = n
	}

	if v, ok := lookup(EnvLogLevel); ok {
		lvl, err := ParseLevel(v)
		if err != nil {
			return Config{}, err
		}
		cfg.LogLevel = lvl
	}

	return cfg, nil
}

// ParseLevel maps debug/info/warn/error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: %s=%q is not a log level", ErrInvalidConfig, EnvLogLevel, s)
	}
}

func positiveInt(name, v string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, name, v, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: %s must be > 0, got %d", ErrInvalidConfig, name, n)
	}
	return n, nil
}
