// ABOUTME: Audio type definitions
// ABOUTME: Defines the wire-level Frame and the receiver's decoded Buffer
package audio

import (
	"math"
	"time"
)

// Frame is a timestamped run of interleaved 16-bit PCM samples across
// Channels channels, as it travels on the wire.
type Frame struct {
	TimestampUs int64  // server-clock microsecond instant sample 0 plays
	Channels    int
	Samples     []int16 // interleaved
}

// SampleCount returns the number of samples per channel in the frame.
func (f Frame) SampleCount() int {
	if f.Channels == 0 {
		return 0
	}
	return len(f.Samples) / f.Channels
}

// Buffer is decoded, per-channel float32 audio scheduled for local
// playback at PlayAt.
type Buffer struct {
	TimestampUs int64       // original server timestamp, for diagnostics
	PlayAt      time.Time   // local wall-clock play time
	Planes      [][]float32 // one slice per channel, equal length
}

// SampleCount returns the number of samples per channel.
func (b Buffer) SampleCount() int {
	if len(b.Planes) == 0 {
		return 0
	}
	return len(b.Planes[0])
}

// Int16ToFloat32 converts one interleaved int16 sample to the
// normalized float32 range produced by the encoder's inverse: dividing
// by 32768 so the full int16 range maps into [-1, 1).
func Int16ToFloat32(s int16) float32 {
	return float32(s) / 32768.0
}

// Float32ToInt16 converts a normalized float32 sample in [-1, 1] to
// int16 by clamping then rounding to the nearest integer in
// [-32767, 32767], matching the encoder side of the spec's round-trip
// contract.
func Float32ToInt16(s float32) int16 {
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	return int16(math.Round(float64(s) * 32767))
}

// PlanesFromInterleavedInt16 de-interleaves a run of int16 samples into
// one float32 plane per channel.
func PlanesFromInterleavedInt16(samples []int16, channels int) [][]float32 {
	if channels <= 0 {
		return nil
	}
	n := len(samples) / channels
	planes := make([][]float32, channels)
	for ch := 0; ch < channels; ch++ {
		planes[ch] = make([]float32, n)
	}
	for i := 0; i < n; i++ {
		for ch := 0; ch < channels; ch++ {
			planes[ch][i] = Int16ToFloat32(samples[i*channels+ch])
		}
	}
	return planes
}

// InterleavedInt16FromPlanes re-interleaves per-channel float32 planes
// into a single int16 slice, the inverse of PlanesFromInterleavedInt16.
func InterleavedInt16FromPlanes(planes [][]float32) []int16 {
	if len(planes) == 0 {
		return nil
	}
	channels := len(planes)
	n := len(planes[0])
	out := make([]int16, n*channels)
	for i := 0; i < n; i++ {
		for ch := 0; ch < channels; ch++ {
			out[i*channels+ch] = Float32ToInt16(planes[ch][i])
		}
	}
	return out
}
