package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

//go:embed config.example.toml
var exampleConf []byte

// EnvPrefix prefixes every environment variable that overrides a config value.
const EnvPrefix = "ESIFLEET_"

// Config represents the application configuration loaded from a TOML file, with environment overrides.
type Config struct {
	ESI      ESIConfig      `toml:"esi" envPrefix:"ESI_"`
	Discord  DiscordConfig  `toml:"discord" envPrefix:"DISCORD_"`
	Database DatabaseConfig `toml:"database" envPrefix:"DATABASE_"`
	Server   ServerConfig   `toml:"server" envPrefix:"SERVER_"`
	Refresh  RefreshConfig  `toml:"refresh" envPrefix:"REFRESH_"`
	Log      LogConfig      `toml:"log" envPrefix:"LOG_"`
}

// ESIConfig contains EVE SSO application credentials and ESI client settings.
type ESIConfig struct {
	ClientID       string   `toml:"client_id" env:"CLIENT_ID"`
	ClientSecret   string   `toml:"client_secret" env:"CLIENT_SECRET"`
	CallbackURL    string   `toml:"callback_url" env:"CALLBACK_URL"`
	Scopes         []string `toml:"scopes" env:"SCOPES" envSeparator:","`
	BaseURL        string   `toml:"base_url" env:"BASE_URL"`
	UserAgent      string   `toml:"user_agent" env:"USER_AGENT"`
	RequestTimeout Duration `toml:"request_timeout" env:"REQUEST_TIMEOUT"`
	RateLimit      float64  `toml:"rate_limit" env:"RATE_LIMIT"`
}

// Map returns the credentials as a map, as expected by service constructors.
func (c ESIConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     c.ClientID,
		"client_secret": c.ClientSecret,
		"redirect_uri":  c.CallbackURL,
	}
}

// DiscordConfig contains the Discord application, bot and guild gate settings.
type DiscordConfig struct {
	AppID        string   `toml:"app_id" env:"APP_ID"`
	ClientSecret string   `toml:"client_secret" env:"CLIENT_SECRET"`
	BotToken     string   `toml:"bot_token" env:"BOT_TOKEN"`
	GuildID      string   `toml:"guild_id" env:"GUILD_ID"`
	GuildRoles   []string `toml:"guild_roles" env:"GUILD_ROLES" envSeparator:","`
	CallbackURL  string   `toml:"callback_url" env:"CALLBACK_URL"`
	BaseURL      string   `toml:"base_url" env:"BASE_URL"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path" env:"PATH"`
	MaxOpenConns int    `toml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns int    `toml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host          string `toml:"host" env:"HOST"`
	Port          int    `toml:"port" env:"PORT"`
	SessionSecret string `toml:"session_secret" env:"SESSION_SECRET"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RefreshConfig controls the background token refresher.
type RefreshConfig struct {
	Interval Duration `toml:"interval" env:"INTERVAL"`
	Window   Duration `toml:"window" env:"WINDOW"`
	Workers  int      `toml:"workers" env:"WORKERS"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level" env:"LEVEL"`
}

// Duration is a [time.Duration] that reads and writes as a string such as "15s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q", ErrInvalidConfig, text)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path,
// then applies ESIFLEET_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := ApplyEnv(config); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides config fields from environment variables. Unset variables leave fields untouched.
func ApplyEnv(config *Config) error {
	if err := env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("%w: parse env: %v", ErrInvalidConfig, err)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ValidateESI reports [ErrMissingCredentials] when the EVE SSO application is not configured.
func (c *Config) ValidateESI() error {
	if c.ESI.ClientID == "" || c.ESI.ClientSecret == "" {
		return fmt.Errorf("%w: esi.client_id and esi.client_secret must be set", ErrMissingCredentials)
	}
	if c.ESI.CallbackURL == "" {
		return fmt.Errorf("%w: esi.callback_url must be set", ErrInvalidConfig)
	}
	return nil
}

// ValidateDiscord reports [ErrMissingCredentials] when the Discord application or bot is not configured.
func (c *Config) ValidateDiscord() error {
	if c.Discord.AppID == "" || c.Discord.BotToken == "" {
		return fmt.Errorf("%w: discord.app_id and discord.bot_token must be set", ErrMissingCredentials)
	}
	if c.Discord.GuildID == "" {
		return fmt.Errorf("%w: discord.guild_id must be set", ErrInvalidConfig)
	}
	return nil
}
