// Package config defines the root configuration surface and wires it into
// a layered-feeder loading convention. Grounded on original_source/config.py
// for the field set this supersedes and on
// _examples/GoCodeAlone-modular/examples/basic-app/main.go's
// `modular.ConfigFeeders = []modular.Feeder{feeders.NewTomlFeeder(...),
// feeders.NewEnvFeeder()}` pattern for how it is loaded.
package config

// SchedulerConfig is one {DOWNLOAD,UPLOAD}_* block.
type SchedulerConfig struct {
	MaxConcurrent   int   `toml:"max_concurrent" yaml:"max_concurrent"`
	RetryDelay      int64 `toml:"retry_delay_minutes" yaml:"retry_delay_minutes"`
	AutoRetry       bool  `toml:"auto_retry" yaml:"auto_retry"`
	AutoWaitSeconds int64 `toml:"auto_wait_time_seconds" yaml:"auto_wait_time_seconds"`
}

// AutoConfig holds ENABLE_AUTO_{SUBSCRIPTION,DOWNLOAD,UPLOAD}. Only
// Subscription is read at startup: it decides whether RSS polling starts.
// Download and Upload are loaded but not read; both schedulers always run.
type AutoConfig struct {
	Subscription bool `toml:"subscription" yaml:"subscription"`
	Download     bool `toml:"download" yaml:"download"`
	Upload       bool `toml:"upload" yaml:"upload"`
}

// CacheConfig bounds the on-disk artifact cache workers write into.
type CacheConfig struct {
	Path              string `toml:"path" yaml:"path"`
	MaxSizeBytes      int64  `toml:"max_size_bytes" yaml:"max_size_bytes"`
	CheckSizeInterval int64  `toml:"check_size_interval_seconds" yaml:"check_size_interval_seconds"`
}

// Config is the complete root configuration for easyrepostd.
type Config struct {
	Download SchedulerConfig `toml:"download" yaml:"download"`
	Upload   SchedulerConfig `toml:"upload" yaml:"upload"`
	Auto     AutoConfig      `toml:"enable_auto" yaml:"enable_auto"`
	Cache    CacheConfig     `toml:"cache" yaml:"cache"`

	ValidationIntervalSeconds int64  `toml:"validation_interval_seconds" yaml:"validation_interval_seconds"`
	WebSubLeaseSeconds        int64  `toml:"web_sub_lease_seconds" yaml:"web_sub_lease_seconds"`
	CallBackURL               string `toml:"call_back_url" yaml:"call_back_url"`
	SubscriptionToken         string `toml:"subscription_token" yaml:"subscription_token"`
	WebHubSecretKey           string `toml:"web_hub_secret_key" yaml:"web_hub_secret_key"`
	AppToken                  string `toml:"app_token" yaml:"app_token"`
	SQLitePath                string `toml:"sqlite_path" yaml:"sqlite_path"`

	HTTPAddr string `toml:"http_addr" yaml:"http_addr"`

	CloudEventsSource string `toml:"cloudevents_source" yaml:"cloudevents_source"`
	CloudEventsTarget string `toml:"cloudevents_target" yaml:"cloudevents_target"` // empty disables the HTTP sink
}

// Default returns a Config with the same conservative defaults
// original_source/config.py effectively assumed (single concurrent slot,
// no auto-retry, auto subsystems off).
func Default() *Config {
	return &Config{
		Download: SchedulerConfig{MaxConcurrent: 1, RetryDelay: 5},
		Upload:   SchedulerConfig{MaxConcurrent: 1, RetryDelay: 5},
		Cache: CacheConfig{
			Path:              "./cache",
			MaxSizeBytes:      10 << 30, // 10 GiB
			CheckSizeInterval: 300,
		},
		ValidationIntervalSeconds: 300,
		WebSubLeaseSeconds:        864000, // 10 days
		SQLitePath:                "./easyrepost.db",
		HTTPAddr:                  ":8080",
		CloudEventsSource:         "easyrepostd",
	}
}
