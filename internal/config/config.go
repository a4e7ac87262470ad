package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// AppConfig holds application-level settings.
type AppConfig struct {
	LogLevel string `mapstructure:"log_level"`
	// Timezone anchors relative page timestamps; empty means the system zone.
	Timezone string `mapstructure:"timezone"`
}

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver     string `mapstructure:"driver"` // redis, sqlite or memory
	SQLitePath string `mapstructure:"sqlite_path"`
}

// SourceConfig is one polled post list.
type SourceConfig struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

// PlugConfig controls the plug.game source.
type PlugConfig struct {
	Origin       string         `mapstructure:"origin"`
	PostURLBase  string         `mapstructure:"post_url_base"`
	Markup       string         `mapstructure:"markup"`
	Sources      []SourceConfig `mapstructure:"sources"`
	FetchTimeout string         `mapstructure:"fetch_timeout"` // duration string, e.g., "10s"
	PollInterval string         `mapstructure:"poll_interval"` // duration string, e.g., "60s"
	UserAgent    string         `mapstructure:"user_agent"`
}

// DiscordConfig controls delivery to Discord channels.
type DiscordConfig struct {
	Token         string  `mapstructure:"token"`
	BaseURL       string  `mapstructure:"base_url"`
	Timeout       string  `mapstructure:"timeout"`
	RatePerSecond float64 `mapstructure:"rate_per_second"`
}

// OpenAIConfig enables condensing of over-long descriptions.
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// AnnounceConfig controls dispatch behaviour.
type AnnounceConfig struct {
	MaxDescription    int    `mapstructure:"max_description"`
	BacklogOnFirstRun bool   `mapstructure:"backlog_on_first_run"`
	LockTTL           string `mapstructure:"lock_ttl"`
}

// Config is the top-level configuration structure.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Plug     PlugConfig     `mapstructure:"plug"`
	Discord  DiscordConfig  `mapstructure:"discord"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Announce AnnounceConfig `mapstructure:"announce"`
}

// DefaultSources are the Kings Raid boards polled by default.
var DefaultSources = []SourceConfig{
	{Name: "notices", URL: "https://www.plug.game/kingsraid/1030449/posts?menuId=1"},
	{Name: "patch-notes", URL: "https://www.plug.game/kingsraid/1030449/posts?menuId=9"},
	{Name: "game-contents", URL: "https://www.plug.game/kingsraid/1030449/posts?menuId=32"},
}

// FillDefaults applies default values if not provided.
func (c *Config) FillDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "127.0.0.1:6379"
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "plug"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "redis"
	}
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "./data/plug-herald.db"
	}
	if c.Plug.Origin == "" {
		c.Plug.Origin = "https://plug.game"
	}
	if c.Plug.PostURLBase == "" {
		c.Plug.PostURLBase = "https://www.plug.game/kingsraid/1030449/posts/"
	}
	if c.Plug.Markup == "" {
		c.Plug.Markup = "frame"
	}
	if len(c.Plug.Sources) == 0 {
		c.Plug.Sources = append([]SourceConfig(nil), DefaultSources...)
	}
	for i := range c.Plug.Sources {
		if c.Plug.Sources[i].Name == "" {
			c.Plug.Sources[i].Name = fmt.Sprintf("source-%d", i+1)
		}
	}
	if c.Plug.FetchTimeout == "" {
		c.Plug.FetchTimeout = "10s"
	}
	if c.Plug.PollInterval == "" {
		c.Plug.PollInterval = "60s"
	}
	if c.Plug.UserAgent == "" {
		c.Plug.UserAgent = "Mozilla/5.0 (compatible; plug-herald/1.0)"
	}
	if c.Discord.Timeout == "" {
		c.Discord.Timeout = "10s"
	}
	if c.Discord.RatePerSecond == 0 {
		c.Discord.RatePerSecond = 5
	}
	if c.Announce.MaxDescription == 0 {
		c.Announce.MaxDescription = 4096
	}
	if c.Announce.LockTTL == "" {
		c.Announce.LockTTL = "2m"
	}
}

// Validate reports configuration errors. Call after FillDefaults.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case "redis", "sqlite", "memory":
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
	}
	if c.Plug.Markup != "frame" {
		errs = append(errs, fmt.Errorf("plug.markup: unsupported markup %q", c.Plug.Markup))
	}
	if len(c.Plug.Sources) == 0 {
		errs = append(errs, errors.New("plug.sources: at least one source is required"))
	}
	for i, s := range c.Plug.Sources {
		if strings.TrimSpace(s.URL) == "" {
			errs = append(errs, fmt.Errorf("plug.sources[%d]: url is required", i))
		}
	}
	for key, v := range map[string]string{
		"plug.fetch_timeout": c.Plug.FetchTimeout,
		"plug.poll_interval": c.Plug.PollInterval,
		"discord.timeout":    c.Discord.Timeout,
		"announce.lock_ttl":  c.Announce.LockTTL,
	} {
		if d, err := time.ParseDuration(v); err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", key, v))
		}
	}
	if c.App.Timezone != "" {
		if _, err := time.LoadLocation(c.App.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("app.timezone: %w", err))
		}
	}
	if c.Discord.RatePerSecond < 0 {
		errs = append(errs, errors.New("discord.rate_per_second: must not be negative"))
	}
	return errors.Join(errs...)
}

// Location returns the zone for relative timestamps.
func (c *Config) Location() *time.Location {
	if c.App.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Durations parses the duration settings. Call after Validate.
func (c *Config) Durations() (fetchTimeout, pollInterval, discordTimeout, lockTTL time.Duration) {
	fetchTimeout, _ = time.ParseDuration(c.Plug.FetchTimeout)
	pollInterval, _ = time.ParseDuration(c.Plug.PollInterval)
	discordTimeout, _ = time.ParseDuration(c.Discord.Timeout)
	lockTTL, _ = time.ParseDuration(c.Announce.LockTTL)
	return
}
