// Package sine provides a clock-driven [audio.Host] that renders a sine tone.
// It needs no audio hardware and is the default host for headless runs.
package sine

import (
	"context"
	"fmt"
	"math"

	"github.com/MrWong99/netsend/pkg/audio"
	"github.com/MrWong99/netsend/pkg/audio/host"
)

// Defaults used when the corresponding option is not given.
const (
	DefaultFrequency = 440.0
	DefaultAmplitude = 0.5
)

// Option configures a [Host].
type Option func(*Host)

// WithFrequency sets the tone frequency in Hz.
func WithFrequency(hz float64) Option {
	return func(h *Host) { h.freq = hz }
}

// WithAmplitude sets the peak amplitude.
func WithAmplitude(a float64) Option {
	return func(h *Host) { h.amp = a }
}

// WithMaxBlocks stops the host after n blocks. Zero means run until cancelled.
func WithMaxBlocks(n int) Option {
	return func(h *Host) { h.maxBlocks = n }
}

// Host renders the same tone on every channel, phase-continuous across
// blocks.
type Host struct {
	freq      float64
	amp       float64
	maxBlocks int
}

var _ audio.Host = (*Host)(nil)

// New returns a sine host.
func New(opts ...Option) *Host {
	h := &Host{freq: DefaultFrequency, amp: DefaultAmplitude}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Name implements [audio.Host].
func (h *Host) Name() string { return "sine" }

// Run implements [audio.Host]. The requested format is used unchanged.
func (h *Host) Run(ctx context.Context, want audio.Format, prepare func(audio.Format) error, render audio.RenderFunc) error {
	if h.freq <= 0 || h.freq >= want.SampleRate/2 {
		return fmt.Errorf("sine: frequency %g Hz outside (0, %g)", h.freq, want.SampleRate/2)
	}
	if err := prepare(want); err != nil {
		return fmt.Errorf("sine: prepare: %w", err)
	}

	step := 2 * math.Pi * h.freq / want.SampleRate
	var phase float64
	fill := func(in [][]float64) error {
		if len(in) == 0 {
			return nil
		}
		for i := range in[0] {
			in[0][i] = h.amp * math.Sin(phase)
			phase += step
			if phase >= 2*math.Pi {
				phase -= 2 * math.Pi
			}
		}
		for c := 1; c < len(in); c++ {
			copy(in[c], in[0])
		}
		return nil
	}
	return host.RunClock(ctx, want, h.maxBlocks, fill, render)
}
