// Package config loads server settings from the environment and an optional
// .env file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Environment variables.
const (
	EnvDB               = "FOODMAP_DB"
	EnvAddr             = "FOODMAP_ADDR"
	EnvMediaDir         = "FOODMAP_MEDIA_DIR"
	EnvLog              = "FOODMAP_LOG"
	EnvLogLevel         = "FOODMAP_LOG_LEVEL"
	EnvExtractorCmd     = "FOODMAP_EXTRACTOR_CMD"
	EnvExtractorTimeout = "FOODMAP_EXTRACTOR_TIMEOUT"
	EnvSweepInterval    = "FOODMAP_SWEEP_INTERVAL"
	EnvTimezone         = "FOODMAP_TIMEZONE"
	EnvAdmin            = "FOODMAP_ADMIN"
)

// Config holds server configuration.
type Config struct {
	DBPath   string
	Addr     string
	MediaDir string
	LogPath  string
	LogLevel slog.Level
	// AdminUser names the admin account created with a new database.
	AdminUser string

	// ExtractorCmd, if set, is run to find foods in descriptions instead of
	// the built-in dictionary.
	ExtractorCmd     string
	ExtractorTimeout time.Duration

	// SweepInterval is how often expired offerings are rolled forward.
	// Zero disables the in-process sweep.
	SweepInterval time.Duration

	// Zone is the time zone naive form timestamps are read in.
	Zone *time.Location
}

// Load reads configuration from the environment. Values from the given env
// files (or ./.env if none are named and it exists) fill in variables that
// are not set; the process environment is not modified.
func Load(files ...string) (Config, error) {
	dotenv := map[string]string{}
	if len(files) == 0 {
		if m, err := godotenv.Read(); err == nil {
			dotenv = m
		}
	} else {
		m, err := godotenv.Read(files...)
		if err != nil {
			return Config{}, fmt.Errorf("reading env file: %w", err)
		}
		dotenv = m
	}

	getenv := func(key, def string) string {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
		if v := strings.TrimSpace(dotenv[key]); v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		DBPath:       getenv(EnvDB, "foodmap.sqlite3"),
		Addr:         getenv(EnvAddr, ":8080"),
		MediaDir:     getenv(EnvMediaDir, "media"),
		LogPath:      getenv(EnvLog, ""),
		AdminUser:    getenv(EnvAdmin, "admin"),
		ExtractorCmd: getenv(EnvExtractorCmd, ""),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getenv(EnvLogLevel, "info"))); err != nil {
		return Config{}, fmt.Errorf("%s: %w", EnvLogLevel, err)
	}

	var err error
	if cfg.ExtractorTimeout, err = parseDuration(EnvExtractorTimeout, getenv(EnvExtractorTimeout, "5s")); err != nil {
		return Config{}, err
	}
	if cfg.ExtractorTimeout == 0 {
		return Config{}, fmt.Errorf("%s: must be positive", EnvExtractorTimeout)
	}
	if cfg.SweepInterval, err = parseDuration(EnvSweepInterval, getenv(EnvSweepInterval, "5m")); err != nil {
		return Config{}, err
	}

	zone := getenv(EnvTimezone, "America/New_York")
	if cfg.Zone, err = time.LoadLocation(zone); err != nil {
		return Config{}, fmt.Errorf("%s: %w", EnvTimezone, err)
	}

	return cfg, nil
}

func parseDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: must not be negative", key)
	}
	return d, nil
}
