// Package mp3 provides an [audio.Host] that plays an MP3 file at real-time
// pace. The decoder always yields 16-bit little-endian stereo; it is mapped
// onto the requested channel count.
package mp3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	gomp3 "github.com/hajimehoshi/go-mp3"

	"github.com/MrWong99/netsend/pkg/audio"
	"github.com/MrWong99/netsend/pkg/audio/host"
)

// decodedChannels is the interleave factor of go-mp3 output.
const decodedChannels = 2

// Option configures a [Host].
type Option func(*Host)

// WithLoop restarts the file from the beginning when it ends.
func WithLoop(loop bool) Option {
	return func(h *Host) { h.loop = loop }
}

// WithMaxBlocks stops the host after n blocks. Zero means run until the file
// ends (or forever when looping).
func WithMaxBlocks(n int) Option {
	return func(h *Host) { h.maxBlocks = n }
}

// Host plays one MP3 file.
type Host struct {
	path      string
	loop      bool
	maxBlocks int
}

var _ audio.Host = (*Host)(nil)

// New returns a host for the file at path. The file is opened on Run.
func New(path string, opts ...Option) *Host {
	h := &Host{path: path}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Name implements [audio.Host].
func (h *Host) Name() string { return "mp3" }

// Run implements [audio.Host]. The sample rate is taken from the file; vector
// size and channel count come from want.
func (h *Host) Run(ctx context.Context, want audio.Format, prepare func(audio.Format) error, render audio.RenderFunc) error {
	f, err := os.Open(h.path)
	if err != nil {
		return fmt.Errorf("mp3: %w", err)
	}
	defer f.Close()

	dec, err := gomp3.NewDecoder(f)
	if err != nil {
		return fmt.Errorf("mp3: decode %s: %w", h.path, err)
	}

	format := want
	format.SampleRate = float64(dec.SampleRate())
	if err := prepare(format); err != nil {
		return fmt.Errorf("mp3: prepare: %w", err)
	}

	pcm := make([]byte, format.VectorSize*decodedChannels*2)
	fill := func(in [][]float64) error {
		n, err := readBlock(dec, pcm, h.loop)
		if err != nil {
			return err
		}
		clear(pcm[n:])
		_, err = audio.DeinterleaveInt16(in, pcm, decodedChannels)
		return err
	}
	return host.RunClock(ctx, format, h.maxBlocks, fill, render)
}

// readBlock fills pcm from src and returns the number of bytes read. A short
// final block is returned as is; the following call reports the end of the
// stream, or rewinds once when loop is set. A stream with nothing to play
// after the rewind is exhausted.
func readBlock(src io.ReadSeeker, pcm []byte, loop bool) (int, error) {
	n, err := io.ReadFull(src, pcm)
	switch {
	case err == nil:
		return n, nil
	case !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF):
		return 0, fmt.Errorf("mp3: read: %w", err)
	case n > 0:
		return n, nil
	case !loop:
		return 0, host.ErrExhausted
	}

	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("mp3: rewind: %w", err)
	}
	n, err = io.ReadFull(src, pcm)
	switch {
	case err == nil, n > 0 && errors.Is(err, io.ErrUnexpectedEOF):
		return n, nil
	case errors.Is(err, io.EOF):
		return 0, host.ErrExhausted
	}
	return 0, fmt.Errorf("mp3: read: %w", err)
}
