package shared

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables that override values read from config.toml.
const (
	EnvSpotifyClientID     = "JUKEBOX_SPOTIFY_CLIENT_ID"
	EnvSpotifyClientSecret = "JUKEBOX_SPOTIFY_CLIENT_SECRET"
	EnvDatabaseURL         = "JUKEBOX_DATABASE_URL"
	EnvRedisURL            = "JUKEBOX_REDIS_URL"
	EnvJWTSecret           = "JUKEBOX_JWT_SECRET"
	EnvPort                = "JUKEBOX_PORT"
)

// LoadEnvFiles loads variables from the given dotenv files into the process environment.
//
// Missing files are skipped; variables already set in the environment win.
func LoadEnvFiles(files ...string) error {
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load env file %s: %w", file, err)
		}
	}
	return nil
}

// ApplyEnv overrides config values with JUKEBOX_* variables read through lookup.
//
// A nil lookup reads the process environment.
func ApplyEnv(c *Config, lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	if v, ok := lookup(EnvSpotifyClientID); ok && v != "" {
		c.Credentials.Spotify.ClientID = v
	}
	if v, ok := lookup(EnvSpotifyClientSecret); ok && v != "" {
		c.Credentials.Spotify.ClientSecret = v
	}
	if v, ok := lookup(EnvDatabaseURL); ok && v != "" {
		c.Database.Driver = "postgres"
		c.Database.URL = v
	}
	if v, ok := lookup(EnvRedisURL); ok && v != "" {
		c.Realtime.Broker = "redis"
		c.Realtime.RedisURL = v
	}
	if v, ok := lookup(EnvJWTSecret); ok && v != "" {
		c.Auth.JWTSecret = v
	}
	if v, ok := lookup(EnvPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidConfig, EnvPort, v)
		}
		c.Server.Port = port
	}
	return nil
}
