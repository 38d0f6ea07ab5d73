// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Frame and Buffer types and int16/float32 sample conversion
// Package audio provides the fundamental audio types shared by the server
// fan-out path and the receiver playback path.
//
// Frame is the wire-level representation: a timestamped run of
// interleaved 16-bit PCM samples across one or more channels. Buffer is
// the receiver-side representation after decoding: per-channel float32
// planes scheduled against the synchronized clock.
//
// Sample conversion follows the spec exactly: encode rounds
// sample*32767 after clamping to [-1, 1]; decode divides by 32768.
package audio
