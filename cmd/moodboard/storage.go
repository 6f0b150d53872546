package main

import (
	"fmt"
	"os"
	"time"

	"github.com/goodtune/moodboard/internal/config"
	"github.com/goodtune/moodboard/internal/storage"
	"github.com/goodtune/moodboard/internal/storage/bolt"
	"github.com/goodtune/moodboard/internal/storage/memory"
	"github.com/goodtune/moodboard/internal/storage/redis"
	"github.com/goodtune/moodboard/internal/storage/sqlite"
	"github.com/rs/zerolog"
)

func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case storage.TypeMemory:
		return memory.New(), nil
	case storage.TypeRedis:
		return redis.Open(cfg.Redis)
	case storage.TypeBolt, "":
		return bolt.Open(cfg.Path)
	case storage.TypeSQLite:
		return sqlite.Open(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// parseDuration parses a duration string with a fallback
func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
