package config_test

import (
	"slices"
	"testing"
	"time"

	"github.com/MrWong99/netsend/internal/config"
)

func baseConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{ListenAddr: ":9464", LogLevel: config.LogInfo},
		Bridge: config.BridgeConfig{
			Channels:     2,
			Address:      "127.0.0.1",
			Port:         "9123",
			Offset:       0,
			WriteTimeout: 5 * time.Millisecond,
		},
		Host: config.HostConfig{
			Name:       "sine",
			SampleRate: 48000,
			VectorSize: 64,
			Options:    map[string]any{"frequency": 440.0},
		},
	}
}

func TestDiff_NoChange(t *testing.T) {
	t.Parallel()
	d := config.Diff(baseConfig(), baseConfig())
	if !d.Empty() {
		t.Errorf("Diff of identical configs = %+v, want empty", d)
	}
}

func TestDiff_HotReloadable(t *testing.T) {
	t.Parallel()
	old, new := baseConfig(), baseConfig()
	new.Server.LogLevel = config.LogDebug
	new.Bridge.Offset = 0.75

	d := config.Diff(old, new)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("log level diff = %v/%q", d.LogLevelChanged, d.NewLogLevel)
	}
	if !d.OffsetChanged || d.NewOffset != 0.75 {
		t.Errorf("offset diff = %v/%v", d.OffsetChanged, d.NewOffset)
	}
	if len(d.RestartRequired) != 0 {
		t.Errorf("RestartRequired = %v, want none", d.RestartRequired)
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"address", func(c *config.Config) { c.Bridge.Address = "::1" }, "bridge.address"},
		{"port", func(c *config.Config) { c.Bridge.Port = "9124" }, "bridge.port"},
		{"channels", func(c *config.Config) { c.Bridge.Channels = 1 }, "bridge.channels"},
		{"dscp", func(c *config.Config) { c.Bridge.DSCP = 46 }, "bridge.dscp"},
		{"host", func(c *config.Config) { c.Host.Name = "mp3" }, "host.name"},
		{"vector size", func(c *config.Config) { c.Host.VectorSize = 128 }, "host.vector_size"},
		{"host option", func(c *config.Config) { c.Host.Options["frequency"] = 880.0 }, "host.options"},
		{"listen addr", func(c *config.Config) { c.Server.ListenAddr = ":1" }, "server.listen_addr"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			old, new := baseConfig(), baseConfig()
			tc.mutate(new)
			d := config.Diff(old, new)
			if !slices.Contains(d.RestartRequired, tc.want) {
				t.Errorf("RestartRequired = %v, want %q", d.RestartRequired, tc.want)
			}
			if d.OffsetChanged || d.LogLevelChanged {
				t.Errorf("unexpected hot-reload change: %+v", d)
			}
		})
	}
}
