package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// SampleSize is the wire size of one float64 sample in bytes.
const SampleSize = 8

// EncodeFloat64 writes the platform-native bit pattern of each sample into dst
// and returns the number of bytes written. It writes at most len(dst)/8
// samples; surplus samples are ignored. It does not allocate.
func EncodeFloat64(dst []byte, samples []float64) int {
	n := min(len(samples), len(dst)/SampleSize)
	for i := range n {
		binary.NativeEndian.PutUint64(dst[i*SampleSize:], math.Float64bits(samples[i]))
	}
	return n * SampleSize
}

// DecodeFloat64 is the inverse of [EncodeFloat64]. Trailing bytes that do not
// form a whole sample are ignored.
func DecodeFloat64(src []byte) []float64 {
	out := make([]float64, len(src)/SampleSize)
	for i := range out {
		out[i] = math.Float64frombits(binary.NativeEndian.Uint64(src[i*SampleSize:]))
	}
	return out
}

// Float32ToFloat64 widens src into dst and returns the number of samples
// copied (the shorter of the two lengths).
func Float32ToFloat64(dst []float64, src []float32) int {
	n := min(len(dst), len(src))
	for i := range n {
		dst[i] = float64(src[i])
	}
	return n
}

// Float64ToFloat32 narrows src into dst and returns the number of samples
// copied.
func Float64ToFloat32(dst []float32, src []float64) int {
	n := min(len(dst), len(src))
	for i := range n {
		dst[i] = float32(src[i])
	}
	return n
}

// DeinterleaveInt16 splits little-endian interleaved int16 PCM into per-channel
// float64 slices scaled to [-1, 1). channels is the interleave factor of pcm;
// dst may hold fewer channels than pcm (extra source channels are skipped) or
// more (extra destination channels receive a copy of the last source channel).
// It returns the number of frames written, bounded by the shortest dst slice.
func DeinterleaveInt16(dst [][]float64, pcm []byte, channels int) (int, error) {
	if channels <= 0 {
		return 0, fmt.Errorf("audio: invalid interleave factor %d", channels)
	}
	if len(dst) == 0 {
		return 0, nil
	}
	frameBytes := channels * 2
	frames := len(pcm) / frameBytes
	for _, d := range dst {
		frames = min(frames, len(d))
	}
	for f := range frames {
		base := f * frameBytes
		for c, d := range dst {
			src := min(c, channels-1)
			s := int16(binary.LittleEndian.Uint16(pcm[base+src*2:]))
			d[f] = float64(s) / 32768
		}
	}
	return frames, nil
}

// FormatString returns a human-readable description of f, e.g.
// "48000Hz stereo, 64 samples".
func FormatString(f Format) string {
	ch := "mono"
	if f.Channels == 2 {
		ch = "stereo"
	} else if f.Channels > 2 {
		ch = fmt.Sprintf("%dch", f.Channels)
	}
	return fmt.Sprintf("%gHz %s, %d samples", f.SampleRate, ch, f.VectorSize)
}
