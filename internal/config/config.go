// Package config reads runtime settings from FAMILLE_* environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"go.uber.org/multierr"

	"github.com/dukerupert/famille/internal/archive"
)

type Config struct {
	Port      string
	DBPath    string
	LogLevel  string
	LogFormat string
	Timezone  string

	TaskRevert time.Duration
	CacheTTL   time.Duration
	SessionTTL time.Duration

	Archive archive.Config

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubscriber string

	// HomeworkReminderHour is the local hour of the daily reminder; negative disables it.
	HomeworkReminderHour int
}

// Defaults returns the configuration used when no variables are set.
func Defaults() Config {
	return Config{
		Port:                 "8080",
		DBPath:               "famille.db",
		LogLevel:             "info",
		LogFormat:            "text",
		Timezone:             "Local",
		TaskRevert:           3 * time.Second,
		CacheTTL:             30 * time.Second,
		SessionTTL:           720 * time.Hour,
		Archive:              archive.Config{S3: archive.S3Config{Region: "us-east-1"}},
		VAPIDSubscriber:      "mailto:admin@famille.local",
		HomeworkReminderHour: 18,
	}
}

// Load reads the environment over Defaults. Malformed values are all
// reported together.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	cfg := Defaults()
	var errs error

	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		v := getenv(key)
		if v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			errs = multierr.Append(errs, fmt.Errorf("%s: invalid duration %q", key, v))
			return
		}
		*dst = d
	}

	str("FAMILLE_PORT", &cfg.Port)
	str("FAMILLE_DB_PATH", &cfg.DBPath)
	str("FAMILLE_LOG_LEVEL", &cfg.LogLevel)
	str("FAMILLE_LOG_FORMAT", &cfg.LogFormat)
	str("FAMILLE_TIMEZONE", &cfg.Timezone)
	dur("FAMILLE_TASK_REVERT", &cfg.TaskRevert)
	dur("FAMILLE_CACHE_TTL", &cfg.CacheTTL)
	dur("FAMILLE_SESSION_TTL", &cfg.SessionTTL)

	str("FAMILLE_S3_ENDPOINT", &cfg.Archive.S3.Endpoint)
	str("FAMILLE_S3_BUCKET", &cfg.Archive.S3.Bucket)
	str("FAMILLE_S3_REGION", &cfg.Archive.S3.Region)
	str("FAMILLE_S3_ACCESS_KEY", &cfg.Archive.S3.AccessKey)
	str("FAMILLE_S3_SECRET_KEY", &cfg.Archive.S3.SecretKey)
	str("FAMILLE_ARCHIVE_PASSPHRASE", &cfg.Archive.Passphrase)

	str("FAMILLE_VAPID_PUBLIC_KEY", &cfg.VAPIDPublicKey)
	str("FAMILLE_VAPID_PRIVATE_KEY", &cfg.VAPIDPrivateKey)
	str("FAMILLE_VAPID_SUBSCRIBER", &cfg.VAPIDSubscriber)

	if v := getenv("FAMILLE_HOMEWORK_REMINDER_HOUR"); v != "" {
		h, err := strconv.Atoi(v)
		if err != nil || h > 23 {
			errs = multierr.Append(errs, fmt.Errorf("FAMILLE_HOMEWORK_REMINDER_HOUR: invalid hour %q", v))
		} else {
			cfg.HomeworkReminderHour = h
		}
	}

	if _, err := cfg.Location(); err != nil {
		errs = multierr.Append(errs, err)
	}

	return cfg, errs
}

// Location resolves Timezone. "Local" and "" use the host zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("FAMILLE_TIMEZONE: %w", err)
	}
	return loc, nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + c.Port
}
