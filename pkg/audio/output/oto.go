// ABOUTME: Oto-based audio output implementation
// ABOUTME: Handles PCM playback with software volume control using oto library
package output

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log"

	"github.com/ebitengine/oto/v3"
	"github.com/roomcast/roomcast-go/pkg/audio"
)

// Oto is an Output implementation backed by github.com/ebitengine/oto/v3.
// It is one concrete binding of the abstract local-output contract; the
// session/receiver core has no dependency on it.
type Oto struct {
	ctx        context.Context
	cancel     context.CancelFunc
	otoCtx     *oto.Context
	player     *oto.Player
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	sampleRate int
	channels   int
	volume     int
	muted      bool
	ready      bool
}

// NewOto creates a new Oto output.
func NewOto() *Oto {
	ctx, cancel := context.WithCancel(context.Background())

	return &Oto{
		ctx:    ctx,
		cancel: cancel,
		volume: 100,
	}
}

// Open initializes the output device. oto only supports 16-bit signed
// little-endian output, which matches the spec's normative PCM16 format
// once Write converts float32 planes back to int16.
func (o *Oto) Open(sampleRate, channels int) error {
	if o.otoCtx != nil && o.sampleRate == sampleRate && o.channels == channels {
		log.Printf("audio output already initialized with same format, reusing context")
		return nil
	}

	if o.otoCtx != nil {
		log.Printf("format change detected (%dHz %dch -> %dHz %dch) but oto doesn't support reinitialization; continuing with existing context",
			o.sampleRate, o.channels, sampleRate, channels)
		return nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	o.otoCtx = ctx
	o.sampleRate = sampleRate
	o.channels = channels

	o.pipeReader, o.pipeWriter = io.Pipe()
	o.player = o.otoCtx.NewPlayer(o.pipeReader)
	o.player.Play()
	o.ready = true

	log.Printf("audio output initialized: %dHz, %d channels", sampleRate, channels)
	return nil
}

// Write plays one buffer of per-channel float32 planes.
func (o *Oto) Write(planes [][]float32) error {
	if !o.ready {
		return fmt.Errorf("output not initialized")
	}

	interleaved := audio.InterleavedInt16FromPlanes(planes)
	interleaved = applyVolume(interleaved, o.volume, o.muted)

	out := make([]byte, len(interleaved)*2)
	for i, s := range interleaved {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}

	if _, err := o.pipeWriter.Write(out); err != nil {
		return fmt.Errorf("pipe write failed: %w", err)
	}
	return nil
}

// Close releases output resources.
func (o *Oto) Close() error {
	if o.pipeWriter != nil {
		o.pipeWriter.Close()
		o.pipeWriter = nil
	}
	if o.player != nil {
		o.player.Close()
		o.player = nil
	}
	if o.pipeReader != nil {
		o.pipeReader.Close()
		o.pipeReader = nil
	}
	if o.otoCtx != nil {
		o.otoCtx.Suspend()
		o.ready = false
	}
	o.cancel()
	return nil
}

// SetVolume sets the volume (0-100).
func (o *Oto) SetVolume(volume int) {
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}
	o.volume = volume
}

// SetMuted sets the mute state.
func (o *Oto) SetMuted(muted bool) {
	o.muted = muted
}

func applyVolume(samples []int16, volume int, muted bool) []int16 {
	multiplier := getVolumeMultiplier(volume, muted)
	if multiplier == 1.0 {
		return samples
	}

	result := make([]int16, len(samples))
	for i, s := range samples {
		scaled := float64(s) * multiplier
		if scaled > 32767 {
			scaled = 32767
		} else if scaled < -32768 {
			scaled = -32768
		}
		result[i] = int16(scaled)
	}
	return result
}

func getVolumeMultiplier(volume int, muted bool) float64 {
	if muted {
		return 0.0
	}
	return float64(volume) / 100.0
}
