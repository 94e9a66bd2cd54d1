//go:build !portaudio

// Package portaudio provides an [audio.Host] backed by the default PortAudio
// duplex device. This build was made without the "portaudio" tag, so Run
// always fails.
package portaudio

import (
	"context"
	"errors"

	"github.com/MrWong99/netsend/pkg/audio"
)

// ErrUnavailable is returned by Run when PortAudio support is not compiled in.
var ErrUnavailable = errors.New("portaudio: not compiled in (build with -tags portaudio)")

// Host is the PortAudio host placeholder.
type Host struct{}

var _ audio.Host = (*Host)(nil)

// New returns a PortAudio host.
func New() *Host { return &Host{} }

// Name implements [audio.Host].
func (h *Host) Name() string { return "portaudio" }

// Run implements [audio.Host] and always returns [ErrUnavailable].
func (h *Host) Run(context.Context, audio.Format, func(audio.Format) error, audio.RenderFunc) error {
	return ErrUnavailable
}
