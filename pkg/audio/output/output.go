// ABOUTME: Audio output interface definition
// ABOUTME: Abstract contract for the local audio playback device
package output

// Output represents the local audio output device. Spec.md specifies
// only this abstract contract; concrete device backends are ambient,
// not core.
type Output interface {
	// Open initializes the output device for the given format. Calling
	// Open again with a different format while already open is
	// backend-defined (some hardware/software mixers cannot
	// reinitialize in place).
	Open(sampleRate, channels int) error

	// Write plays one buffer of per-channel float32 planes (blocks
	// until accepted by the device).
	Write(planes [][]float32) error

	// Close releases output resources.
	Close() error
}
