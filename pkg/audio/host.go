// Package audio defines the render-callback contract between an audio host and
// the code it drives, plus sample conversion helpers.
//
// A [Host] owns the real-time schedule: it calls a [RenderFunc] once per block
// with one input and one output slice per channel. Implementations live in the
// host/ sub-packages (sine generator, mp3 file, PortAudio device). The
// interface is deliberately small so that the network bridge stays unaware of
// where samples come from.
package audio

import "context"

// RenderFunc is the per-block render callback. in and out hold one slice per
// channel, each of the negotiated vector size. The callback runs on the host's
// real-time goroutine and must not block, allocate, or take locks that a
// non-real-time goroutine may hold.
//
// The host owns both matrices; the callback must not retain them after it
// returns.
type RenderFunc func(in, out [][]float64)

// Host drives a [RenderFunc] at the cadence of an audio device or clock.
//
// Implementations must be safe to Run once; calling Run again after it
// returned is implementation-defined.
type Host interface {
	// Run negotiates format with the underlying device (the returned format may
	// differ from the requested one, e.g. a device-imposed sample rate), reports
	// it via prepare, then invokes render once per block until ctx is
	// cancelled or the source is exhausted. Run blocks.
	//
	// prepare is called exactly once, before the first render call, on the
	// goroutine that called Run.
	Run(ctx context.Context, want Format, prepare func(Format) error, render RenderFunc) error

	// Name returns the short identifier of the host implementation (e.g. "sine").
	Name() string
}
