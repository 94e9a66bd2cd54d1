package netsend

import (
	"log/slog"
	"strconv"
)

// Configuration limits and defaults.
const (
	// MaxChannels is the largest accepted channel count.
	MaxChannels = 32

	// DefaultChannels is used when the channel count is missing or out of range.
	DefaultChannels = 1

	// DefaultAddress is the destination used when none is given.
	DefaultAddress = "0.0.0.0"

	// DefaultPort is the destination port used when none is given.
	DefaultPort = "8000"
)

// Settings is the bridge's local, immutable configuration. It replaces any
// notion of shared global configuration state: each [Bridge] owns a copy.
type Settings struct {
	// Channels is the number of signal channels passed through, in
	// [1, MaxChannels]. Only channel 0 is transmitted.
	Channels int

	// Address and Port identify the destination. They are kept as opaque
	// strings and resolved on Connect.
	Address string
	Port    string

	// Fallbacks lists the values that were rejected and replaced by defaults.
	Fallbacks []*ConfigError
}

// Configure validates the creation arguments of a bridge. A channel count of
// zero means "unspecified". Out-of-range or missing values are replaced by
// their defaults; every substitution is logged at warn level and recorded in
// [Settings.Fallbacks]. Configure never fails and has no side effects beyond
// logging, so it is safe to call before any socket exists.
func Configure(logger *slog.Logger, channels int, address, port string) Settings {
	if logger == nil {
		logger = slog.Default()
	}
	s := Settings{Channels: channels, Address: address, Port: port}

	if channels >= 1 && channels <= MaxChannels {
		logger.Info("netsend: channels set", "channels", channels)
	} else {
		fe := &ConfigError{Field: "channels", Fallback: strconv.Itoa(DefaultChannels)}
		if channels != 0 {
			fe.Value = strconv.Itoa(channels)
		}
		s.Channels = DefaultChannels
		s.Fallbacks = append(s.Fallbacks, fe)
		logger.Warn("netsend: channel argument missing or outside allowable range",
			"got", channels,
			"range", "1-"+strconv.Itoa(MaxChannels),
			"channels", DefaultChannels,
		)
	}

	if address != "" {
		logger.Info("netsend: ip address set", "address", address)
	} else {
		s.Address = DefaultAddress
		s.Fallbacks = append(s.Fallbacks, &ConfigError{Field: "address", Fallback: DefaultAddress})
		logger.Warn("netsend: ip address argument missing", "address", DefaultAddress)
	}

	if port != "" {
		logger.Info("netsend: port number set", "port", port)
	} else {
		s.Port = DefaultPort
		s.Fallbacks = append(s.Fallbacks, &ConfigError{Field: "port", Fallback: DefaultPort})
		logger.Warn("netsend: port number argument missing", "port", DefaultPort)
	}

	return s
}
