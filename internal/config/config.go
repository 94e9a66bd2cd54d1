// Package config provides the configuration schema, loader, file watcher and
// host registry for the netsend streaming bridge.
package config

import (
	"log/slog"
	"time"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// SlogLevel maps l onto a [slog.Level]. Unknown and empty values map to info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server ServerConfig `yaml:"server"`
	Bridge BridgeConfig `yaml:"bridge"`
	Host   HostConfig   `yaml:"host"`
}

// ServerConfig holds the control-plane listener and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address serving health, control and metrics
	// endpoints (e.g., ":9464"). Empty disables the HTTP server.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// BridgeConfig holds the creation arguments and socket tuning of the bridge.
type BridgeConfig struct {
	// Channels is the number of pass-through channels. Zero or out-of-range
	// values fall back to one channel with a warning.
	Channels int `yaml:"channels"`

	// Address is the destination host (IPv4, IPv6 or name).
	Address string `yaml:"address"`

	// Port is the destination port, numeric or a service name.
	Port string `yaml:"port"`

	// Offset is added to every pass-through sample.
	Offset float64 `yaml:"offset"`

	// AutoConnect connects at startup, retrying with backoff.
	AutoConnect bool `yaml:"auto_connect"`

	// DSCP marks outgoing datagrams (0-63, 46 = expedited forwarding).
	DSCP int `yaml:"dscp"`

	// BufferSlots is the number of rotating transfer buffers. Default 2.
	BufferSlots int `yaml:"buffer_slots"`

	// WriteTimeout bounds each socket write. Zero means none.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// SendBuffer sets SO_SNDBUF in bytes. Zero keeps the kernel default.
	SendBuffer int `yaml:"send_buffer"`

	// Connect configures the auto-connect retry policy.
	Connect ConnectConfig `yaml:"connect"`
}

// ConnectConfig is the exponential backoff policy for auto-connect.
type ConnectConfig struct {
	// MaxRetries is the number of attempts after the first. Default 10.
	MaxRetries int `yaml:"max_retries"`

	// Backoff is the initial delay between attempts. Default 1s.
	Backoff time.Duration `yaml:"backoff"`

	// MaxBackoff caps the delay. Default 30s.
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// HostConfig selects the audio host that drives the render callback.
type HostConfig struct {
	// Name selects the registered host implementation (e.g., "sine", "mp3").
	Name string `yaml:"name"`

	// SampleRate is the requested sample rate in Hz. Hosts may override it.
	SampleRate float64 `yaml:"sample_rate"`

	// VectorSize is the number of samples per channel in one render block.
	VectorSize int `yaml:"vector_size"`

	// Options holds host-specific values (e.g., "frequency" for sine, "path"
	// and "loop" for mp3).
	Options map[string]any `yaml:"options"`
}

// Defaults applied by [ApplyDefaults].
const (
	DefaultListenAddr  = ":9464"
	DefaultHost        = "sine"
	DefaultSampleRate  = 48000
	DefaultVectorSize  = 64
	DefaultBufferSlots = 2
	DefaultMaxRetries  = 10
	DefaultBackoff     = time.Second
	DefaultMaxBackoff  = 30 * time.Second
)

// ApplyDefaults fills zero-valued fields that have a sensible default. Bridge
// destination and channel count are left alone: the bridge applies its own
// fallbacks and logs them.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Host.Name == "" {
		cfg.Host.Name = DefaultHost
	}
	if cfg.Host.SampleRate == 0 {
		cfg.Host.SampleRate = DefaultSampleRate
	}
	if cfg.Host.VectorSize == 0 {
		cfg.Host.VectorSize = DefaultVectorSize
	}
	if cfg.Bridge.BufferSlots == 0 {
		cfg.Bridge.BufferSlots = DefaultBufferSlots
	}
	c := &cfg.Bridge.Connect
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.Backoff == 0 {
		c.Backoff = DefaultBackoff
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
}

// OptionString returns Options[key] as a string, or def.
func (h HostConfig) OptionString(key, def string) string {
	if v, ok := h.Options[key].(string); ok {
		return v
	}
	return def
}

// OptionFloat returns Options[key] as a float64, or def. Integer YAML values
// are accepted.
func (h HostConfig) OptionFloat(key string, def float64) float64 {
	switch v := h.Options[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

// OptionBool returns Options[key] as a bool, or def.
func (h HostConfig) OptionBool(key string, def bool) bool {
	if v, ok := h.Options[key].(bool); ok {
		return v
	}
	return def
}
