// Package config loads the gateway's configuration surface from a YAML/JSON
// file, environment variables, and CLI flags, in that increasing order of
// precedence, via spf13/viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the gateway's full configuration surface.
type Config struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	APIKey string `mapstructure:"api_key"`

	RateLimitPerMinute int `mapstructure:"rate_limit_per_minute"`

	SessionIdleTimeoutSeconds int `mapstructure:"session_idle_timeout_seconds"`
	SessionHardCeiling        int `mapstructure:"session_hard_ceiling"`

	PoolWarmTarget     int `mapstructure:"pool_warm_target"`
	PoolMaxAgeSeconds  int `mapstructure:"pool_max_age_seconds"`
	PoolAcquireTimeoutMS int `mapstructure:"pool_acquire_timeout_ms"`

	DefaultCommandTimeoutMS int `mapstructure:"default_command_timeout_ms"`
	MaxCommandTimeoutMS     int `mapstructure:"max_command_timeout_ms"`

	AllowNonHTTPURLs bool `mapstructure:"allow_non_http_urls"`

	CacheCapacity   int `mapstructure:"cache_capacity"`
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds"`

	Headless      bool `mapstructure:"headless"`
	ViewportWidth  int `mapstructure:"viewport_width"`
	ViewportHeight int `mapstructure:"viewport_height"`
	BrowserExecutable string `mapstructure:"browser_executable"`

	ShutdownGraceSeconds int `mapstructure:"shutdown_grace_seconds"`
	DisconnectGraceSeconds int `mapstructure:"disconnect_grace_seconds"`

	// Rate-limiter cool-off knobs.
	RateLimitRejectThreshold int `mapstructure:"rate_limit_reject_threshold"`
	RateLimitRejectHorizonSeconds int `mapstructure:"rate_limit_reject_horizon_seconds"`
	RateLimitCooloffSeconds  int `mapstructure:"rate_limit_cooloff_seconds"`
}

// Defaults returns the built-in defaults, applied before file/env/flags.
func Defaults() Config {
	return Config{
		Host:                      "127.0.0.1",
		Port:                      9515,
		RateLimitPerMinute:        120,
		SessionIdleTimeoutSeconds: 300,
		SessionHardCeiling:        32,
		PoolWarmTarget:            4,
		PoolMaxAgeSeconds:         3600,
		PoolAcquireTimeoutMS:      10_000,
		DefaultCommandTimeoutMS:   30_000,
		MaxCommandTimeoutMS:       120_000,
		AllowNonHTTPURLs:          false,
		CacheCapacity:             2048,
		CacheTTLSeconds:           30,
		Headless:                  true,
		ViewportWidth:             1280,
		ViewportHeight:            720,
		BrowserExecutable:         "",
		ShutdownGraceSeconds:      5,
		DisconnectGraceSeconds:    3,
		RateLimitRejectThreshold:  5,
		RateLimitRejectHorizonSeconds: 60,
		RateLimitCooloffSeconds:   60,
	}
}

// Load builds a Config from defaults, an optional file at path (if
// non-empty), GATEWAY_-prefixed environment variables, and finally v's
// bound flags (the caller binds cobra/pflag flags into v before calling
// Load so flags win).
func Load(v *viper.Viper, path string) (Config, error) {
	def := Defaults()
	setDefaults(v, def)

	v.SetEnvPrefix("GATEWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, def Config) {
	v.SetDefault("host", def.Host)
	v.SetDefault("port", def.Port)
	v.SetDefault("api_key", def.APIKey)
	v.SetDefault("rate_limit_per_minute", def.RateLimitPerMinute)
	v.SetDefault("session_idle_timeout_seconds", def.SessionIdleTimeoutSeconds)
	v.SetDefault("session_hard_ceiling", def.SessionHardCeiling)
	v.SetDefault("pool_warm_target", def.PoolWarmTarget)
	v.SetDefault("pool_max_age_seconds", def.PoolMaxAgeSeconds)
	v.SetDefault("pool_acquire_timeout_ms", def.PoolAcquireTimeoutMS)
	v.SetDefault("default_command_timeout_ms", def.DefaultCommandTimeoutMS)
	v.SetDefault("max_command_timeout_ms", def.MaxCommandTimeoutMS)
	v.SetDefault("allow_non_http_urls", def.AllowNonHTTPURLs)
	v.SetDefault("cache_capacity", def.CacheCapacity)
	v.SetDefault("cache_ttl_seconds", def.CacheTTLSeconds)
	v.SetDefault("headless", def.Headless)
	v.SetDefault("viewport_width", def.ViewportWidth)
	v.SetDefault("viewport_height", def.ViewportHeight)
	v.SetDefault("browser_executable", def.BrowserExecutable)
	v.SetDefault("shutdown_grace_seconds", def.ShutdownGraceSeconds)
	v.SetDefault("disconnect_grace_seconds", def.DisconnectGraceSeconds)
	v.SetDefault("rate_limit_reject_threshold", def.RateLimitRejectThreshold)
	v.SetDefault("rate_limit_reject_horizon_seconds", def.RateLimitRejectHorizonSeconds)
	v.SetDefault("rate_limit_cooloff_seconds", def.RateLimitCooloffSeconds)
}

// Validate checks cross-field invariants the zero-value defaults can't express.
func (c Config) Validate() error {
	if c.SessionHardCeiling <= 0 {
		return fmt.Errorf("session_hard_ceiling must be > 0")
	}
	if c.PoolWarmTarget < 0 || c.PoolWarmTarget > c.SessionHardCeiling {
		return fmt.Errorf("pool_warm_target must be between 0 and session_hard_ceiling")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("rate_limit_per_minute must be > 0")
	}
	if c.DefaultCommandTimeoutMS <= 0 || c.MaxCommandTimeoutMS < c.DefaultCommandTimeoutMS {
		return fmt.Errorf("command timeouts misconfigured")
	}
	return nil
}

// SessionIdleTimeout returns the idle threshold as a duration.
func (c Config) SessionIdleTimeout() time.Duration {
	return time.Duration(c.SessionIdleTimeoutSeconds) * time.Second
}

// PoolMaxAge returns the per-context max age as a duration.
func (c Config) PoolMaxAge() time.Duration {
	return time.Duration(c.PoolMaxAgeSeconds) * time.Second
}

// PoolAcquireTimeout returns the pool acquire bound as a duration.
func (c Config) PoolAcquireTimeout() time.Duration {
	return time.Duration(c.PoolAcquireTimeoutMS) * time.Millisecond
}

// DefaultCommandTimeout returns the default per-command timeout.
func (c Config) DefaultCommandTimeout() time.Duration {
	return time.Duration(c.DefaultCommandTimeoutMS) * time.Millisecond
}

// MaxCommandTimeout returns the system-wide ceiling on command timeouts.
func (c Config) MaxCommandTimeout() time.Duration {
	return time.Duration(c.MaxCommandTimeoutMS) * time.Millisecond
}

// CacheTTL returns the cache freshness window as a duration.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// ShutdownGrace returns the deadline given to the dispatch server's Stop
// at shutdown.
func (c Config) ShutdownGrace() time.Duration {
	return time.Duration(c.ShutdownGraceSeconds) * time.Second
}

// DisconnectGrace returns the delay before a disconnected client's
// sessions are torn down, giving a brief reconnect window (a client that
// has reconnected by then keeps its sessions).
func (c Config) DisconnectGrace() time.Duration {
	return time.Duration(c.DisconnectGraceSeconds) * time.Second
}

// RateLimitRejectHorizon returns the cool-off tracking horizon.
func (c Config) RateLimitRejectHorizon() time.Duration {
	return time.Duration(c.RateLimitRejectHorizonSeconds) * time.Second
}

// RateLimitCooloff returns the cool-off duration applied after repeated rejects.
func (c Config) RateLimitCooloff() time.Duration {
	return time.Duration(c.RateLimitCooloffSeconds) * time.Second
}
