package config

type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Channel   ChannelConfig   `json:"channel"`
	Storage   StorageConfig   `json:"storage"`
	Broadcast BroadcastConfig `json:"broadcast"`
	Schedule  ScheduleConfig  `json:"schedule,omitempty"`
	Autopost  AutopostConfig  `json:"autopost"`
	Health    HealthConfig    `json:"health,omitempty"`
	Logging   LoggingConfig   `json:"logging,omitempty"`
}

type TelegramConfig struct {
	Token   string `json:"token"`
	AdminID int64  `json:"admin_id"`
	// PollTimeout is a Go duration string (e.g. "10s").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

// ChannelConfig names the channel plugged in broadcast captions.
type ChannelConfig struct {
	Name string `json:"name"`
	Link string `json:"link"`
}

type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

// BroadcastConfig controls the dispatcher.
//
// Spacing is the minimum delay between consecutive deliveries (default
// "50ms"). AllowConcurrent lets broadcast passes interleave instead of fully
// serializing; the shared limiter still spaces individual sends.
type BroadcastConfig struct {
	Spacing         string `json:"spacing,omitempty"`
	AllowConcurrent bool   `json:"allow_concurrent,omitempty"`
}

type ScheduleConfig struct {
	// PollInterval is how often the scheduled-post queue is checked
	// (default "1m").
	PollInterval string `json:"poll_interval,omitempty"`
}

type AutopostConfig struct {
	Enabled  bool   `json:"enabled"`
	Interval string `json:"interval,omitempty"` // default "10m"
	// Endpoint overrides the AniList GraphQL URL (tests, proxies).
	Endpoint string `json:"endpoint,omitempty"`
}

type HealthConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default ":8080"
}

type LoggingConfig struct {
	Level   string `json:"level,omitempty"` // default "info"
	Console bool   `json:"console,omitempty"`
}
