// ABOUTME: Receiver-side clock synchronization using a four-timestamp exchange
// ABOUTME: Maintains a bounded sliding window of offset samples, aggregated by median
package clocksync

import (
	"sort"
	"sync"
	"time"
)

// MaxWindowSamples is the hard bound on the sliding window of offset
// samples. The oldest sample is evicted once the window is full.
const MaxWindowSamples = 50

// MinSamplesForSteadyState is the threshold below which the receiver
// should schedule an extra exchange instead of waiting for the
// steady-state timer.
const MinSamplesForSteadyState = 20

// Sync tracks the offset between the server's clock and the
// receiver's local audio clock. offset = server_clock -
// local_audio_clock, in seconds. A positive offset means the server
// clock reads ahead of the local audio clock.
//
// Estimates survive session end; only Reset (on transport reconnect)
// clears them, per the synchronization contract.
type Sync struct {
	mu     sync.RWMutex
	window []float64
}

// New creates an empty Sync with no samples.
func New() *Sync {
	return &Sync{}
}

// Sample is one four-timestamp exchange, all in microseconds of their
// respective clocks.
type Sample struct {
	PlayerTransmitted int64 // T0: local audio-clock time when player/time was sent
	SourceReceived    int64 // T1: server clock time the server received player/time
	SourceTransmitted int64 // T2: server clock time the server sent source/time
	PlayerReceived    int64 // T3: local audio-clock time source/time arrived
}

// Offset computes the sample offset in seconds: ((T1-T0)+(T2-T3))/2,
// converted from microseconds to seconds.
func (s Sample) Offset() float64 {
	t0, t1, t2, t3 := s.PlayerTransmitted, s.SourceReceived, s.SourceTransmitted, s.PlayerReceived
	offsetUs := float64((t1-t0)+(t2-t3)) / 2
	return offsetUs / 1e6
}

// AddSample appends a new offset sample to the window, evicting the
// oldest sample once the window reaches MaxWindowSamples.
func (s *Sync) AddSample(sample Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.window = append(s.window, sample.Offset())
	if len(s.window) > MaxWindowSamples {
		s.window = s.window[len(s.window)-MaxWindowSamples:]
	}
}

// Offset returns the median of the current window, and whether the
// window holds at least one sample. A receiver with no samples yet
// should treat its offset as 0 and keep scheduling exchanges.
func (s *Sync) Offset() (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.window) == 0 {
		return 0, false
	}
	return median(s.window), true
}

// NeedsMoreSamples reports whether the window is below the threshold
// that triggers an immediate extra exchange rather than waiting for
// the steady-state timer.
func (s *Sync) NeedsMoreSamples() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.window) < MinSamplesForSteadyState
}

// SampleCount returns the number of samples currently in the window.
func (s *Sync) SampleCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.window)
}

// Reset clears the window. Called on transport reconnect, never on
// session end.
func (s *Sync) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.window = nil
}

// ServerToLocal converts a server-clock microsecond instant to a
// local wall-clock Time using the current offset, treating an
// unsynchronized receiver (no samples yet) as offset 0.
func (s *Sync) ServerToLocal(serverUs int64) time.Time {
	offset, _ := s.Offset()
	localSeconds := float64(serverUs)/1e6 - offset
	return time.Unix(0, int64(localSeconds*float64(time.Second)))
}

func median(samples []float64) float64 {
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
