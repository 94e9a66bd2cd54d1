package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values. They are applied after
// the file is decoded and before validation.
const (
	EnvAddress    = "NETSEND_ADDRESS"
	EnvPort       = "NETSEND_PORT"
	EnvChannels   = "NETSEND_CHANNELS"
	EnvOffset     = "NETSEND_OFFSET"
	EnvLogLevel   = "NETSEND_LOG_LEVEL"
	EnvListenAddr = "NETSEND_LISTEN_ADDR"
)

// Load reads the YAML configuration file at path, applies environment
// overrides and defaults, and returns a validated [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies environment overrides
// and defaults, and validates the result. An empty document yields the
// default configuration.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are ignored; with no arguments ".env" is tried.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("config: load %q: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides cfg fields from the NETSEND_* variables reported by
// lookup (usually [os.LookupEnv]).
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []error

	if v, ok := lookup(EnvAddress); ok {
		cfg.Bridge.Address = v
	}
	if v, ok := lookup(EnvPort); ok {
		cfg.Bridge.Port = v
	}
	if v, ok := lookup(EnvChannels); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s %q: %w", EnvChannels, v, err))
		} else {
			cfg.Bridge.Channels = n
		}
	}
	if v, ok := lookup(EnvOffset); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s %q: %w", EnvOffset, v, err))
		} else {
			cfg.Bridge.Offset = f
		}
	}
	if v, ok := lookup(EnvLogLevel); ok {
		cfg.Server.LogLevel = LogLevel(v)
	}
	if v, ok := lookup(EnvListenAddr); ok {
		cfg.Server.ListenAddr = v
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}
	return nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
//
// Bridge channel count and destination are deliberately not validated here:
// the bridge replaces missing or out-of-range values with defaults and logs a
// warning, and an unreachable destination only fails at connect time.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	b := cfg.Bridge
	if b.DSCP < 0 || b.DSCP > 63 {
		errs = append(errs, fmt.Errorf("bridge.dscp %d is out of range [0, 63]", b.DSCP))
	}
	if b.BufferSlots < 0 {
		errs = append(errs, fmt.Errorf("bridge.buffer_slots %d must not be negative", b.BufferSlots))
	}
	if b.WriteTimeout < 0 {
		errs = append(errs, fmt.Errorf("bridge.write_timeout %s must not be negative", b.WriteTimeout))
	}
	if b.SendBuffer < 0 {
		errs = append(errs, fmt.Errorf("bridge.send_buffer %d must not be negative", b.SendBuffer))
	}
	if b.Connect.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("bridge.connect.max_retries %d must not be negative", b.Connect.MaxRetries))
	}
	if b.Connect.MaxBackoff > 0 && b.Connect.Backoff > b.Connect.MaxBackoff {
		errs = append(errs, fmt.Errorf("bridge.connect.backoff %s exceeds max_backoff %s", b.Connect.Backoff, b.Connect.MaxBackoff))
	}

	h := cfg.Host
	if h.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("host.sample_rate %g must be positive", h.SampleRate))
	}
	if h.VectorSize < 0 {
		errs = append(errs, fmt.Errorf("host.vector_size %d must be positive", h.VectorSize))
	}

	return errors.Join(errs...)
}
