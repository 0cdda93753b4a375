package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./esifleet.db" {
			t.Errorf("expected database path ./esifleet.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.ESI.BaseURL != "https://esi.evetech.net/latest" {
			t.Errorf("unexpected ESI base URL %s", config.ESI.BaseURL)
		}

		if config.ESI.RequestTimeout.Duration != 15*time.Second {
			t.Errorf("expected 15s request timeout, got %v", config.ESI.RequestTimeout)
		}

		if config.Refresh.Interval.Duration != time.Hour {
			t.Errorf("expected 1h refresh interval, got %v", config.Refresh.Interval)
		}

		found := false
		for _, s := range config.ESI.Scopes {
			if s == "esi-fleets.write_fleet.v1" {
				found = true
			}
		}
		if !found {
			t.Error("expected fleet write scope in defaults")
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
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
		configPath := filepath.Join(t.TempDir(), "config.toml")

		testConfig := `[esi]
client_id = "eve_client"
client_secret = "eve_secret"
callback_url = "http://localhost:8080/EVE/sso"
request_timeout = "3s"

[discord]
guild_id = "1234"
guild_roles = ["FC", "Member"]

[database]
path = "/custom/path.db"

[server]
port = 8080
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.ESI.ClientID != "eve_client" {
			t.Errorf("expected client id eve_client, got %s", config.ESI.ClientID)
		}
		if config.ESI.RequestTimeout.Duration != 3*time.Second {
			t.Errorf("expected 3s timeout, got %v", config.ESI.RequestTimeout)
		}
		if len(config.Discord.GuildRoles) != 2 {
			t.Errorf("expected 2 guild roles, got %v", config.Discord.GuildRoles)
		}
		if config.Server.Port != 8080 {
			t.Errorf("expected port 8080, got %d", config.Server.Port)
		}
		if config.Server.Host != "localhost" {
			t.Errorf("expected unset host to keep default localhost, got %s", config.Server.Host)
		}
		if config.ESI.BaseURL != "https://esi.evetech.net/latest" {
			t.Errorf("expected unset base url to keep default, got %s", config.ESI.BaseURL)
		}
	})

	t.Run("LoadConfig missing file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("LoadConfig invalid duration", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[esi]\nrequest_timeout = \"soon\"\n"), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		if _, err := LoadConfig(configPath); err == nil {
			t.Error("expected error for invalid duration")
		}
	})

	t.Run("ApplyEnv", func(t *testing.T) {
		t.Setenv("ESIFLEET_ESI_CLIENT_SECRET", "from-env")
		t.Setenv("ESIFLEET_DISCORD_GUILD_ROLES", "FC,Logi")
		t.Setenv("ESIFLEET_REFRESH_INTERVAL", "30m")
		t.Setenv("ESIFLEET_SERVER_PORT", "9000")

		config := DefaultConfig()
		if err := ApplyEnv(config); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if config.ESI.ClientSecret != "from-env" {
			t.Errorf("expected client secret from env, got %q", config.ESI.ClientSecret)
		}
		if len(config.Discord.GuildRoles) != 2 || config.Discord.GuildRoles[1] != "Logi" {
			t.Errorf("unexpected guild roles %v", config.Discord.GuildRoles)
		}
		if config.Refresh.Interval.Duration != 30*time.Minute {
			t.Errorf("expected 30m interval, got %v", config.Refresh.Interval)
		}
		if config.Server.Port != 9000 {
			t.Errorf("expected port 9000, got %d", config.Server.Port)
		}
		if config.ESI.ClientID != "your_eve_client_id" {
			t.Errorf("unset env var should keep file value, got %q", config.ESI.ClientID)
		}
	})

	t.Run("Validate", func(t *testing.T) {
		config := DefaultConfig()
		if err := config.ValidateESI(); !errors.Is(err, ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
		config.ESI.ClientSecret = "secret"
		if err := config.ValidateESI(); err != nil {
			t.Errorf("expected valid ESI config, got %v", err)
		}

		if err := config.ValidateDiscord(); !errors.Is(err, ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
		config.Discord.AppID, config.Discord.BotToken = "app", "token"
		if err := config.ValidateDiscord(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig for missing guild, got %v", err)
		}
	})
}

func TestBrowserCommand(t *testing.T) {
	tc := []struct {
		goos    string
		want    string
		wantErr bool
	}{
		{goos: "darwin", want: "open"},
		{goos: "linux", want: "xdg-open"},
		{goos: "windows", want: "rundll32"},
		{goos: "plan9", wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.goos, func(t *testing.T) {
			args, err := browserCommand(tt.goos, "https://login.eveonline.com")
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if args[0] != tt.want || args[len(args)-1] != "https://login.eveonline.com" {
				t.Errorf("unexpected command %v", args)
			}
		})
	}
}
