package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Guliveer/feedsync-go/internal/constants"
	"github.com/Guliveer/feedsync-go/internal/model"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"FEEDSYNC_BASE_URL", "FEEDSYNC_USERNAME", "FEEDSYNC_PASSWORD",
		"DATA_DIR", "DISCORD_WEBHOOK", "WEBHOOK_URL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, constants.DefaultBaseURL, cfg.Server.BaseURL)
	assert.Equal(t, DefaultDataDir, cfg.DataDir)
	assert.Equal(t, constants.DefaultMaxReconnectAttempts, cfg.Realtime.MaxReconnectAttempts)
	assert.Equal(t, constants.DefaultReconnectInterval, cfg.Realtime.ReconnectInterval.Std())
	assert.Equal(t, constants.DefaultHeartbeatInterval, cfg.Realtime.HeartbeatInterval.Std())
	assert.Equal(t, constants.DefaultWriteTimeout, cfg.Realtime.WriteTimeout.Std())
	assert.Equal(t, constants.DefaultRefreshWorkers, cfg.Feed.RefreshWorkers)
	assert.Equal(t, "INFO", cfg.Log.Level)
	assert.NoError(t, Validate(cfg))
}

func TestLoad_YAML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
server:
  base_url: https://feed.example.com/
account:
  username: alice
realtime:
  max_reconnect_attempts: 8
  reconnect_interval: 2s
  heartbeat_interval: 15
feed:
  watch_posts: ["12", " 13 "]
  refresh_workers: 2
status:
  addr: ":8080"
log:
  level: debug
notifications:
  discord:
    enabled: true
    webhook_url: https://discord.example/hook
    events: [POST_CREATED, comment_created]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://feed.example.com", cfg.Server.BaseURL)
	assert.Equal(t, "alice", cfg.Account.Username)
	assert.Equal(t, 8, cfg.Realtime.MaxReconnectAttempts)
	assert.Equal(t, 2*time.Second, cfg.Realtime.ReconnectInterval.Std())
	assert.Equal(t, 15*time.Second, cfg.Realtime.HeartbeatInterval.Std())
	assert.Equal(t, []model.ID{"12", "13"}, cfg.WatchPostIDs())
	assert.Equal(t, ":8080", cfg.Status.Addr)
	assert.Equal(t, filepath.Join("data", "cookies", "alice.json"), cfg.TokenPath())
	assert.NoError(t, Validate(cfg))
}

func TestLoad_BadYAML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, t.TempDir(), "config.yaml", "realtime:\n  reconnect_interval: soon\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("FEEDSYNC_BASE_URL", "http://10.0.0.2:7878")
	t.Setenv("FEEDSYNC_USERNAME", "bob")
	t.Setenv("FEEDSYNC_PASSWORD", "hunter2")
	t.Setenv("DATA_DIR", "/var/lib/feedsync")
	t.Setenv("WEBHOOK_URL", "https://hooks.example/x")

	path := writeFile(t, t.TempDir(), "config.yaml", "account:\n  username: alice\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://10.0.0.2:7878", cfg.Server.BaseURL)
	assert.Equal(t, "bob", cfg.Account.Username)
	assert.Equal(t, "hunter2", cfg.Account.Password)
	assert.Equal(t, filepath.Join("/var/lib/feedsync", "cookies", "bob.json"), cfg.TokenPath())
	require.NotNil(t, cfg.Notifications.Webhook)
	assert.True(t, cfg.Notifications.Webhook.Enabled)
	assert.Equal(t, "POST", cfg.Notifications.Webhook.Method)
	assert.Nil(t, cfg.Notifications.Discord)
}

func TestLoadEnvFiles(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	envPath := writeFile(t, dir, ".env", "FEEDSYNC_TEST_ONLY_VAR=from-file\n")

	t.Setenv("FEEDSYNC_TEST_ONLY_VAR", "")
	os.Unsetenv("FEEDSYNC_TEST_ONLY_VAR")

	require.NoError(t, LoadEnvFiles(filepath.Join(dir, "nope.env"), "", envPath))
	assert.Equal(t, "from-file", os.Getenv("FEEDSYNC_TEST_ONLY_VAR"))
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		applyDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad scheme", func(c *Config) { c.Server.BaseURL = "ftp://x" }},
		{"no host", func(c *Config) { c.Server.BaseURL = "http://" }},
		{"negative attempts", func(c *Config) { c.Realtime.MaxReconnectAttempts = -1 }},
		{"negative interval", func(c *Config) { c.Realtime.HeartbeatInterval = Duration(-time.Second) }},
		{"empty watch id", func(c *Config) { c.Feed.WatchPosts = []string{" "} }},
		{"discord without url", func(c *Config) {
			c.Notifications.Discord = &DiscordConfig{Enabled: true}
		}},
		{"webhook bad method", func(c *Config) {
			c.Notifications.Webhook = &WebhookConfig{Enabled: true, Endpoint: "http://x", Method: "PUT"}
		}},
		{"unknown event", func(c *Config) {
			c.Notifications.Discord = &DiscordConfig{Enabled: true, WebhookURL: "http://x", Events: []string{"STREAM_UP"}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}

	assert.NoError(t, Validate(base()))
}
