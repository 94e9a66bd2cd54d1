//go:build portaudio

// Package portaudio provides an [audio.Host] backed by the default PortAudio
// duplex device. It requires the PortAudio C library and is only built with
// the "portaudio" build tag.
package portaudio

import (
	"context"
	"fmt"

	"github.com/gordonklaus/portaudio"

	"github.com/MrWong99/netsend/pkg/audio"
)

// Host runs render from the PortAudio stream callback.
type Host struct{}

var _ audio.Host = (*Host)(nil)

// New returns a PortAudio host.
func New() *Host { return &Host{} }

// Name implements [audio.Host].
func (h *Host) Name() string { return "portaudio" }

// Run implements [audio.Host]. It opens a non-interleaved float32 duplex
// stream on the default devices with want's channel count, sample rate and
// block size, and runs render from the stream callback until ctx is done.
func (h *Host) Run(ctx context.Context, want audio.Format, prepare func(audio.Format) error, render audio.RenderFunc) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio: initialize: %w", err)
	}
	defer portaudio.Terminate()

	in, out := want.NewBlocks(), want.NewBlocks()
	callback := func(pin, pout [][]float32) {
		for c := range in {
			if c < len(pin) {
				audio.Float32ToFloat64(in[c], pin[c])
			}
		}
		render(in, out)
		for c := range pout {
			if c < len(out) {
				audio.Float64ToFloat32(pout[c], out[c])
			}
		}
	}

	stream, err := portaudio.OpenDefaultStream(want.Channels, want.Channels, want.SampleRate, want.VectorSize, callback)
	if err != nil {
		return fmt.Errorf("portaudio: open stream: %w", err)
	}
	defer stream.Close()

	format := want
	if info := stream.Info(); info != nil && info.SampleRate > 0 {
		format.SampleRate = info.SampleRate
	}
	if err := prepare(format); err != nil {
		return fmt.Errorf("portaudio: prepare: %w", err)
	}

	if err := stream.Start(); err != nil {
		return fmt.Errorf("portaudio: start: %w", err)
	}
	<-ctx.Done()
	if err := stream.Stop(); err != nil {
		return fmt.Errorf("portaudio: stop: %w", err)
	}
	return nil
}
