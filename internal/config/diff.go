package config

// ConfigDiff describes what changed between two configs.
// Hot-reloadable changes carry their new value; everything else is only
// flagged so the operator can be told to restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	OffsetChanged bool
	NewOffset     float64

	// RestartRequired lists the dotted names of changed settings that only
	// take effect after a restart (e.g., "bridge.address").
	RestartRequired []string
}

// Empty reports whether nothing relevant changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.OffsetChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Bridge.Offset != new.Bridge.Offset {
		d.OffsetChanged = true
		d.NewOffset = new.Bridge.Offset
	}

	restart := func(name string, changed bool) {
		if changed {
			d.RestartRequired = append(d.RestartRequired, name)
		}
	}
	ob, nb := old.Bridge, new.Bridge
	restart("server.listen_addr", old.Server.ListenAddr != new.Server.ListenAddr)
	restart("bridge.channels", ob.Channels != nb.Channels)
	restart("bridge.address", ob.Address != nb.Address)
	restart("bridge.port", ob.Port != nb.Port)
	restart("bridge.dscp", ob.DSCP != nb.DSCP)
	restart("bridge.buffer_slots", ob.BufferSlots != nb.BufferSlots)
	restart("bridge.write_timeout", ob.WriteTimeout != nb.WriteTimeout)
	restart("bridge.send_buffer", ob.SendBuffer != nb.SendBuffer)
	restart("host.name", old.Host.Name != new.Host.Name)
	restart("host.sample_rate", old.Host.SampleRate != new.Host.SampleRate)
	restart("host.vector_size", old.Host.VectorSize != new.Host.VectorSize)
	restart("host.options", !optionsEqual(old.Host.Options, new.Host.Options))

	return d
}

// optionsEqual compares scalar host options. Nested values compare unequal
// unless both sides are absent.
func optionsEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok {
			return false
		}
		switch av.(type) {
		case string, bool, int, float64, nil:
			if av != bv {
				return false
			}
		default:
			return false
		}
	}
	return true
}
