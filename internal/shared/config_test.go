package shared

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./jukebox.db" {
			t.Errorf("expected database path ./jukebox.db, got %s", config.Database.Path)
		}

		if config.Database.Driver != "sqlite" {
			t.Errorf("expected sqlite driver, got %s", config.Database.Driver)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Server.ShutdownTimeout.Duration != 10*time.Second {
			t.Errorf("expected shutdown timeout 10s, got %v", config.Server.ShutdownTimeout)
		}

		if config.Realtime.Broker != "memory" {
			t.Errorf("expected memory broker, got %s", config.Realtime.Broker)
		}

		if config.Credentials.Spotify.ClientID != "your_spotify_client_id" {
			t.Errorf("expected spotify client_id your_spotify_client_id, got %s", config.Credentials.Spotify.ClientID)
		}

		if config.HasSpotifyCredentials() {
			t.Error("placeholder credentials should not count as configured")
		}

		if err := config.Validate(); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "nested", "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[database]
driver = "postgres"
url = "postgres://jukebox@localhost/jukebox"

[server]
host = "0.0.0.0"
port = 8080
shutdown_timeout = "2s"

[realtime]
broker = "redis"
redis_url = "redis://cache:6379/1"

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Driver != "postgres" || config.Database.URL != "postgres://jukebox@localhost/jukebox" {
			t.Errorf("unexpected database config: %+v", config.Database)
		}

		if config.Server.Addr() != "0.0.0.0:8080" {
			t.Errorf("expected addr 0.0.0.0:8080, got %s", config.Server.Addr())
		}

		if config.Server.ShutdownTimeout.Duration != 2*time.Second {
			t.Errorf("expected shutdown timeout 2s, got %v", config.Server.ShutdownTimeout)
		}

		if config.Realtime.ChannelPrefix != "jukebox:requests" {
			t.Errorf("missing keys should keep defaults, got channel prefix %q", config.Realtime.ChannelPrefix)
		}

		if !config.HasSpotifyCredentials() {
			t.Error("expected spotify credentials to be configured")
		}
	})

	t.Run("LoadConfig missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
		if !errors.Is(err, ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("SaveConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		config := DefaultConfig()
		config.Auth.JWTSecret = "s3cret"
		config.Server.ShutdownTimeout.Duration = 3 * time.Second

		if err := SaveConfig(configPath, config); err != nil {
			t.Fatalf("failed to save config: %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load saved config: %v", err)
		}

		if loaded.Auth.JWTSecret != "s3cret" {
			t.Errorf("expected jwt secret to round trip, got %q", loaded.Auth.JWTSecret)
		}
		if loaded.Server.ShutdownTimeout.Duration != 3*time.Second {
			t.Errorf("expected shutdown timeout 3s, got %v", loaded.Server.ShutdownTimeout)
		}
	})

	t.Run("Validate", func(t *testing.T) {
		config := DefaultConfig()
		config.Server.Port = 0
		config.Database.Driver = "postgres"
		config.Database.URL = ""
		config.Realtime.Broker = "kafka"

		err := config.Validate()
		if !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("expected ErrInvalidConfig, got %v", err)
		}

		for _, want := range []string{"server.port", "database.url", "realtime.broker"} {
			if !strings.Contains(err.Error(), want) {
				t.Errorf("expected error to mention %s, got %v", want, err)
			}
		}
	})
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvSpotifyClientID:     "env-id",
		EnvSpotifyClientSecret: "env-secret",
		EnvDatabaseURL:         "postgres://env/jukebox",
		EnvRedisURL:            "redis://env:6379/0",
		EnvJWTSecret:           "env-jwt",
		EnvPort:                "4000",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	config := DefaultConfig()
	if err := ApplyEnv(config, lookup); err != nil {
		t.Fatalf("failed to apply env: %v", err)
	}

	if config.Credentials.Spotify.ClientID != "env-id" || config.Credentials.Spotify.ClientSecret != "env-secret" {
		t.Errorf("spotify credentials not overridden: %+v", config.Credentials.Spotify)
	}
	if config.Database.Driver != "postgres" || config.Database.URL != "postgres://env/jukebox" {
		t.Errorf("database not overridden: %+v", config.Database)
	}
	if config.Realtime.Broker != "redis" || config.Realtime.RedisURL != "redis://env:6379/0" {
		t.Errorf("realtime not overridden: %+v", config.Realtime)
	}
	if config.Auth.JWTSecret != "env-jwt" {
		t.Errorf("jwt secret not overridden: %q", config.Auth.JWTSecret)
	}
	if config.Server.Port != 4000 {
		t.Errorf("expected port 4000, got %d", config.Server.Port)
	}

	t.Run("invalid port", func(t *testing.T) {
		err := ApplyEnv(DefaultConfig(), func(k string) (string, bool) {
			if k == EnvPort {
				return "nope", true
			}
			return "", false
		})
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("JUKEBOX_TEST_ONLY_VAR=from-file\n"), 0644); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("JUKEBOX_TEST_ONLY_VAR") })

	if err := LoadEnvFiles(filepath.Join(dir, "missing.env"), envPath); err != nil {
		t.Fatalf("failed to load env files: %v", err)
	}

	if got := os.Getenv("JUKEBOX_TEST_ONLY_VAR"); got != "from-file" {
		t.Errorf("expected from-file, got %q", got)
	}
}
