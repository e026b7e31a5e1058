package shared

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Credentials.Spotify.RedirectURI != "http://localhost:8888/callback" {
			t.Errorf("expected redirect uri http://localhost:8888/callback, got %s", config.Credentials.Spotify.RedirectURI)
		}
		if len(config.Credentials.Spotify.Scopes) != 1 || config.Credentials.Spotify.Scopes[0] != "user-modify-playback-state" {
			t.Errorf("unexpected default scopes %v", config.Credentials.Spotify.Scopes)
		}
		if config.Credentials.Spotify.HasCredentials() {
			t.Error("default config should not carry credentials")
		}
		if config.Server.Port != 8888 {
			t.Errorf("expected server port 8888, got %d", config.Server.Port)
		}
		if config.API.BaseURL != "https://api.spotify.com/v1" {
			t.Errorf("expected spotify base URL, got %s", config.API.BaseURL)
		}
		if config.API.RateLimit != 10 {
			t.Errorf("expected rate limit 10, got %v", config.API.RateLimit)
		}
		if config.Log.Level != "info" {
			t.Errorf("expected log level info, got %s", config.Log.Level)
		}
	})

	t.Run("TokenFilePath", func(t *testing.T) {
		t.Run("defaults to home dotfile", func(t *testing.T) {
			config := DefaultConfig()
			if !strings.HasSuffix(config.TokenFilePath(), ".spotify_nvim_tokens") {
				t.Errorf("unexpected default token path %s", config.TokenFilePath())
			}
		})

		t.Run("uses configured path", func(t *testing.T) {
			config := DefaultConfig()
			config.Session.TokenFilePath = "/tmp/tokens.json"
			if config.TokenFilePath() != "/tmp/tokens.json" {
				t.Errorf("expected /tmp/tokens.json, got %s", config.TokenFilePath())
			}
		})
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "nested", "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Credentials.Spotify.RedirectURI != DefaultConfig().Credentials.Spotify.RedirectURI {
			t.Errorf("created config redirect uri doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"

[session]
token_file_path = "/custom/tokens"

[log]
level = "debug"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if !config.Credentials.Spotify.HasCredentials() {
			t.Error("expected credentials to be loaded")
		}
		if config.TokenFilePath() != "/custom/tokens" {
			t.Errorf("expected token path /custom/tokens, got %s", config.TokenFilePath())
		}
		if config.Log.Level != "debug" {
			t.Errorf("expected log level debug, got %s", config.Log.Level)
		}
		if config.Server.Port != 8888 {
			t.Errorf("expected unspecified keys to keep defaults, got port %d", config.Server.Port)
		}
	})

	t.Run("LoadConfig errors", func(t *testing.T) {
		tt := []struct {
			name    string
			content string
			want    error
		}{
			{name: "malformed toml", content: "[credentials\n", want: ErrInvalidConfig},
			{name: "negative rate limit", content: "[api]\nrate_limit = -1.0\n", want: ErrInvalidConfig},
			{name: "port out of range", content: "[server]\nport = 70000\n", want: ErrInvalidConfig},
			{name: "bad log level", content: "[log]\nlevel = \"loud\"\n", want: ErrInvalidConfig},
		}

		for _, tc := range tt {
			t.Run(tc.name, func(t *testing.T) {
				configPath := filepath.Join(t.TempDir(), "config.toml")
				if err := os.WriteFile(configPath, []byte(tc.content), 0644); err != nil {
					t.Fatalf("failed to write test config: %v", err)
				}

				_, err := LoadConfig(configPath)
				if !errors.Is(err, tc.want) {
					t.Errorf("expected %v, got %v", tc.want, err)
				}
			})
		}
	})

	t.Run("LoadConfigOrDefault", func(t *testing.T) {
		config, err := LoadConfigOrDefault(filepath.Join(t.TempDir(), "missing.toml"))
		if err != nil {
			t.Fatalf("expected defaults for missing file, got %v", err)
		}
		if config.Server.Port != 8888 {
			t.Errorf("expected default config, got port %d", config.Server.Port)
		}

		if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); !errors.Is(err, ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})
}
