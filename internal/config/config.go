// Package config handles loading, parsing, and validating the YAML
// configuration file for feedsync. Secrets can be supplied through
// environment variables, optionally read from a .env file first.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Guliveer/feedsync-go/internal/constants"
	"github.com/Guliveer/feedsync-go/internal/model"
)

const (
	// DefaultConfigFile is the configuration file read when no path is given.
	DefaultConfigFile = "config.yaml"
	// DefaultEnvFile is the dotenv file loaded before the configuration.
	DefaultEnvFile = ".env"
	// DefaultDataDir holds the persisted session token.
	DefaultDataDir = "data"
)

// LoadEnvFiles loads variables from the given dotenv files into the process
// environment. Missing files are skipped; variables that are already set
// are never overwritten.
func LoadEnvFiles(paths ...string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading env file %s: %w", p, err)
		}
	}
	return nil
}

// Load reads the configuration from a YAML file, then overlays environment
// variables and fills in defaults. A missing file yields a configuration
// built from defaults and environment alone.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = constants.DefaultBaseURL
	}
	cfg.Server.BaseURL = strings.TrimSuffix(cfg.Server.BaseURL, "/")

	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir
	}

	rt := &cfg.Realtime
	if rt.MaxReconnectAttempts == 0 {
		rt.MaxReconnectAttempts = constants.DefaultMaxReconnectAttempts
	}
	if rt.ReconnectInterval == 0 {
		rt.ReconnectInterval = constants.DefaultReconnectInterval
	}
	if rt.HeartbeatInterval == 0 {
		rt.HeartbeatInterval = constants.DefaultHeartbeatInterval
	}
	if rt.WriteTimeout == 0 {
		rt.WriteTimeout = constants.DefaultWriteTimeout
	}

	if cfg.Feed.RefreshWorkers == 0 {
		cfg.Feed.RefreshWorkers = constants.DefaultRefreshWorkers
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "INFO"
	}

	if cfg.Notifications.Webhook != nil && cfg.Notifications.Webhook.Method == "" {
		cfg.Notifications.Webhook.Method = "POST"
	}
}

// applyEnvOverrides overlays environment variables for the server, the
// account and notification secrets.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FEEDSYNC_BASE_URL"); v != "" {
		cfg.Server.BaseURL = v
	}
	if v := os.Getenv("FEEDSYNC_USERNAME"); v != "" {
		cfg.Account.Username = v
	}
	if v := os.Getenv("FEEDSYNC_PASSWORD"); v != "" {
		cfg.Account.Password = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	if v := os.Getenv("DISCORD_WEBHOOK"); v != "" {
		if cfg.Notifications.Discord == nil {
			cfg.Notifications.Discord = &DiscordConfig{Enabled: true}
		}
		cfg.Notifications.Discord.WebhookURL = v
	}
	if v := os.Getenv("WEBHOOK_URL"); v != "" {
		if cfg.Notifications.Webhook == nil {
			cfg.Notifications.Webhook = &WebhookConfig{Enabled: true}
		}
		cfg.Notifications.Webhook.Endpoint = v
	}
}

// Validate checks the configuration for common errors.
func Validate(cfg *Config) error {
	u, err := url.Parse(cfg.Server.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("server.base_url %q must be an absolute http(s) URL", cfg.Server.BaseURL)
	}

	rt := cfg.Realtime
	if rt.MaxReconnectAttempts < 0 {
		return fmt.Errorf("realtime.max_reconnect_attempts must not be negative")
	}
	if rt.ReconnectInterval < 0 || rt.HeartbeatInterval < 0 || rt.WriteTimeout < 0 {
		return fmt.Errorf("realtime intervals must not be negative")
	}
	if cfg.Feed.RefreshWorkers < 0 {
		return fmt.Errorf("feed.refresh_workers must not be negative")
	}

	for i, id := range cfg.Feed.WatchPosts {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("feed.watch_posts[%d] is empty", i)
		}
	}

	if d := cfg.Notifications.Discord; d != nil && d.Enabled && d.WebhookURL == "" {
		return fmt.Errorf("discord enabled but webhook_url not set (use env var DISCORD_WEBHOOK)")
	}
	if w := cfg.Notifications.Webhook; w != nil && w.Enabled {
		if w.Endpoint == "" {
			return fmt.Errorf("webhook enabled but endpoint not set (use env var WEBHOOK_URL)")
		}
		if m := strings.ToUpper(w.Method); m != "GET" && m != "POST" {
			return fmt.Errorf("webhook method %q not supported (use GET or POST)", w.Method)
		}
	}

	for _, events := range [][]string{cfg.Notifications.discordEvents(), cfg.Notifications.webhookEvents()} {
		for _, name := range events {
			if model.ParseEvent(name) == "" {
				return fmt.Errorf("unknown notification event %q", name)
			}
		}
	}

	return nil
}

// TokenPath returns where the session token of the configured account is
// persisted.
func (c *Config) TokenPath() string {
	name := c.Account.Username
	if name == "" {
		name = "default"
	}
	return filepath.Join(c.DataDir, "cookies", name+".json")
}

// WatchPostIDs returns the configured watched posts as ids.
func (c *Config) WatchPostIDs() []model.ID {
	ids := make([]model.ID, 0, len(c.Feed.WatchPosts))
	for _, s := range c.Feed.WatchPosts {
		ids = append(ids, model.ID(strings.TrimSpace(s)))
	}
	return ids
}

// Duration is a time.Duration that unmarshals from YAML strings such as
// "30s" as well as from plain integer seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var secs int64
	if err := node.Decode(&secs); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}

	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("line %d: duration must be a string or integer seconds", node.Line)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}
