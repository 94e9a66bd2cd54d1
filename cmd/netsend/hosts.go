package main

import (
	"errors"
	"log/slog"

	"github.com/MrWong99/netsend/internal/config"
	"github.com/MrWong99/netsend/pkg/audio"
	"github.com/MrWong99/netsend/pkg/audio/host/mp3"
	"github.com/MrWong99/netsend/pkg/audio/host/portaudio"
	"github.com/MrWong99/netsend/pkg/audio/host/sine"
)

// registerBuiltinHosts wires all built-in audio host factories into reg.
func registerBuiltinHosts(reg *config.Registry) {
	reg.RegisterHost("sine", func(hc config.HostConfig) (audio.Host, error) {
		return sine.New(
			sine.WithFrequency(hc.OptionFloat("frequency", sine.DefaultFrequency)),
			sine.WithAmplitude(hc.OptionFloat("amplitude", sine.DefaultAmplitude)),
			sine.WithMaxBlocks(int(hc.OptionFloat("max_blocks", 0))),
		), nil
	})

	reg.RegisterHost("mp3", func(hc config.HostConfig) (audio.Host, error) {
		path := hc.OptionString("path", "")
		if path == "" {
			return nil, errors.New(`mp3 host: option "path" is required`)
		}
		return mp3.New(path,
			mp3.WithLoop(hc.OptionBool("loop", false)),
			mp3.WithMaxBlocks(int(hc.OptionFloat("max_blocks", 0))),
		), nil
	})

	reg.RegisterHost("portaudio", func(config.HostConfig) (audio.Host, error) {
		return portaudio.New(), nil
	})

	for _, name := range reg.Hosts() {
		slog.Debug("registered audio host", "name", name)
	}
}
