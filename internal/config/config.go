// Package config reads the server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"cipherparty/internal/guess"
)

// Config holds every setting the server reads at startup.
type Config struct {
	Port              string
	DBPath            string
	DatabaseURL       string
	WordsFile         string
	FuzzyMaxDistance  int
	AIEndpoint        string
	AITimeout         time.Duration
	RoomIdleTimeout   time.Duration
	RoomSweepInterval time.Duration
	TimerTickInterval time.Duration
	LogLevel          string
	LogPretty         bool
	AllowedOrigins    []string
}

// Addr is the listen address.
func (c Config) Addr() string {
	return ":" + c.Port
}

// Load reads an optional .env file from the working directory, then the
// environment. Variables already set in the environment win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from lookup, applying defaults for unset keys.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	c := Config{
		Port:             get("PORT", "8080"),
		DBPath:           get("DB_PATH", "cipherparty.db"),
		DatabaseURL:      get("DATABASE_URL", ""),
		WordsFile:        get("WORDS_FILE", ""),
		FuzzyMaxDistance: guess.ParseMaxDistance(get("FUZZY_MAX_DISTANCE", "")),
		AIEndpoint:       get("AI_ENDPOINT", ""),
		LogLevel:         get("LOG_LEVEL", "info"),
	}

	var errs []error
	duration := func(key, def string) time.Duration {
		d, err := time.ParseDuration(get(key, def))
		if err == nil && d <= 0 {
			err = errors.New("must be positive")
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return d
	}
	c.AITimeout = duration("AI_TIMEOUT", "15s")
	c.RoomIdleTimeout = duration("ROOM_IDLE_TIMEOUT", "30m")
	c.RoomSweepInterval = duration("ROOM_SWEEP_INTERVAL", "5m")
	c.TimerTickInterval = duration("TIMER_TICK_INTERVAL", "1s")

	pretty, err := strconv.ParseBool(get("LOG_PRETTY", "false"))
	if err != nil {
		errs = append(errs, fmt.Errorf("LOG_PRETTY: %w", err))
	}
	c.LogPretty = pretty

	for _, o := range strings.Split(get("ALLOWED_ORIGINS", ""), ",") {
		if o = strings.TrimSpace(o); o != "" {
			c.AllowedOrigins = append(c.AllowedOrigins, o)
		}
	}
	return c, errors.Join(errs...)
}
