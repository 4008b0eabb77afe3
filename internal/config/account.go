package config

// Config is the full feedsync configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`

	Account AccountConfig `yaml:"account"`

	// DataDir holds the persisted session token.
	DataDir string `yaml:"data_dir"`

	Realtime RealtimeConfig `yaml:"realtime"`

	Feed FeedConfig `yaml:"feed"`

	Status StatusConfig `yaml:"status"`

	Log LogConfig `yaml:"log"`

	Notifications NotificationsConfig `yaml:"notifications"`
}

// ServerConfig points at the feed backend.
type ServerConfig struct {
	BaseURL string `yaml:"base_url"`
}

// AccountConfig holds the login used when no stored token is valid.
type AccountConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password,omitempty"`
}

// RealtimeConfig tunes the realtime connection.
type RealtimeConfig struct {
	MaxReconnectAttempts int      `yaml:"max_reconnect_attempts"`
	ReconnectInterval    Duration `yaml:"reconnect_interval"`
	HeartbeatInterval    Duration `yaml:"heartbeat_interval"`
	WriteTimeout         Duration `yaml:"write_timeout"`
}

// FeedConfig controls the feed watcher.
type FeedConfig struct {
	WatchPosts     []string `yaml:"watch_posts"`
	RefreshWorkers int      `yaml:"refresh_workers"`
}

// StatusConfig enables the local status server when Addr is set.
type StatusConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig controls console and file logging.
type LogConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

// NotificationsConfig holds all notification provider configurations.
type NotificationsConfig struct {
	Discord *DiscordConfig `yaml:"discord,omitempty"`
	Webhook *WebhookConfig `yaml:"webhook,omitempty"`
}

// DiscordConfig holds Discord notification settings.
type DiscordConfig struct {
	Enabled    bool     `yaml:"enabled"`
	WebhookURL string   `yaml:"webhook_url,omitempty"`
	Events     []string `yaml:"events"`
}

// WebhookConfig holds generic webhook notification settings.
type WebhookConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Endpoint string   `yaml:"endpoint,omitempty"`
	Method   string   `yaml:"method"`
	Events   []string `yaml:"events"`
}

func (n NotificationsConfig) discordEvents() []string {
	if n.Discord == nil {
		return nil
	}
	return n.Discord.Events
}

func (n NotificationsConfig) webhookEvents() []string {
	if n.Webhook == nil {
		return nil
	}
	return n.Webhook.Events
}
