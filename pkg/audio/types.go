package audio

import "time"

// Format describes the block layout negotiated with the audio host before
// rendering starts.
type Format struct {
	// SampleRate in Hz (e.g., 44100, 48000).
	SampleRate float64

	// VectorSize is the number of samples per channel in one render block.
	VectorSize int

	// Channels is the number of input (and output) signal channels.
	Channels int
}

// BlockDuration returns the wall-clock length of one render block. It returns
// zero for an incomplete format.
func (f Format) BlockDuration() time.Duration {
	if f.SampleRate <= 0 || f.VectorSize <= 0 {
		return 0
	}
	return time.Duration(float64(f.VectorSize) / f.SampleRate * float64(time.Second))
}

// NewBlocks allocates a [channels][vectorSize] sample matrix. Hosts allocate
// their input and output blocks once with this and reuse them every cycle.
func (f Format) NewBlocks() [][]float64 {
	blocks := make([][]float64, f.Channels)
	for i := range blocks {
		blocks[i] = make([]float64, f.VectorSize)
	}
	return blocks
}
