// Package mock provides an in-memory mock implementation of [audio.Host] for
// use in unit tests.
//
// The mock is safe for concurrent use. It records every call so that tests can
// assert on call counts and the negotiated format, and it exposes exported
// fields that the test can set to control behaviour.
//
// Typical usage:
//
//	h := &mock.Host{
//	    Blocks: [][][]float64{{{0.1, 0.2}}, {{0.3, 0.4}}},
//	}
//	err := h.Run(ctx, audio.Format{SampleRate: 48000, VectorSize: 2, Channels: 1}, prepare, render)
//	// h.Outputs now holds a copy of every output block.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/netsend/pkg/audio"
)

// ─── Host ─────────────────────────────────────────────────────────────────────

// Host is a mock implementation of [audio.Host]. It replays Blocks as input,
// one render call per block, without pacing. Set the exported fields before
// use; inspect the Call* and recorded fields after.
type Host struct {
	mu sync.Mutex

	// NameResult is returned by [Host.Name]. Defaults to "mock".
	NameResult string

	// Blocks are replayed as input blocks, in order. Each block is copied into
	// the host-owned input matrix; short blocks are zero padded.
	Blocks [][][]float64

	// SampleRateOverride, if non-zero, replaces the requested sample rate
	// before prepare is called, as a device-imposed rate would.
	SampleRateOverride float64

	// RunError is returned by [Host.Run] after replaying Blocks.
	RunError error

	// WaitForCancel makes Run block until ctx is done after replaying Blocks.
	WaitForCancel bool

	// CallCountRun records how many times Run was called.
	CallCountRun int

	// Prepared records the formats passed to prepare.
	Prepared []audio.Format

	// Outputs holds a copy of every output block produced by render.
	Outputs [][][]float64
}

var _ audio.Host = (*Host)(nil)

// Name implements [audio.Host].
func (h *Host) Name() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.NameResult == "" {
		return "mock"
	}
	return h.NameResult
}

// Run implements [audio.Host].
func (h *Host) Run(ctx context.Context, want audio.Format, prepare func(audio.Format) error, render audio.RenderFunc) error {
	h.mu.Lock()
	h.CallCountRun++
	format := want
	if h.SampleRateOverride != 0 {
		format.SampleRate = h.SampleRateOverride
	}
	h.Prepared = append(h.Prepared, format)
	blocks := h.Blocks
	runErr, wait := h.RunError, h.WaitForCancel
	h.mu.Unlock()

	if err := prepare(format); err != nil {
		return err
	}

	in, out := format.NewBlocks(), format.NewBlocks()
	for _, b := range blocks {
		if ctx.Err() != nil {
			return nil
		}
		for c := range in {
			clear(in[c])
			if c < len(b) {
				copy(in[c], b[c])
			}
		}
		render(in, out)
		h.record(out)
	}

	if wait {
		<-ctx.Done()
	}
	return runErr
}

func (h *Host) record(out [][]float64) {
	cp := make([][]float64, len(out))
	for c := range out {
		cp[c] = append([]float64(nil), out[c]...)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Outputs = append(h.Outputs, cp)
}

// RecordedOutputs returns a snapshot of Outputs.
func (h *Host) RecordedOutputs() [][][]float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([][][]float64(nil), h.Outputs...)
}
