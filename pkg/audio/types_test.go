// ABOUTME: Tests for audio types
// ABOUTME: Tests int16/float32 sample conversion and plane interleaving
package audio

import "testing"

func TestInt16ToFloat32Range(t *testing.T) {
	tests := []struct {
		name  string
		input int16
	}{
		{"zero", 0},
		{"positive", 1000},
		{"negative", -1000},
		{"max", 32767},
		{"min", -32768},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Int16ToFloat32(tt.input)
			if f < -1 || f > 1 {
				t.Errorf("Int16ToFloat32(%d) = %f, out of [-1,1]", tt.input, f)
			}
		})
	}
}

func TestFloat32ToInt16Clamps(t *testing.T) {
	if got := Float32ToInt16(2.0); got != 32767 {
		t.Errorf("expected clamp to 32767, got %d", got)
	}
	if got := Float32ToInt16(-2.0); got != -32767 {
		t.Errorf("expected clamp to -32767, got %d", got)
	}
}

func TestRoundTripWithinOneLSB(t *testing.T) {
	// Scenario 6: encode -> decode -> re-encode differs by at most 1 LSB.
	samples := []int16{-32768, -1, 0, 1, 32767}

	for _, original := range samples {
		f := Int16ToFloat32(original)
		back := Float32ToInt16(f)
		diff := int(back) - int(original)
		if diff < -1 || diff > 1 {
			t.Errorf("round-trip for %d produced %d, diff %d exceeds 1 LSB", original, back, diff)
		}
	}

	// Zero must stay exactly zero.
	if got := Float32ToInt16(Int16ToFloat32(0)); got != 0 {
		t.Errorf("zero did not round-trip exactly, got %d", got)
	}
}

func TestRoundTripPreservesSignAndOrder(t *testing.T) {
	samples := []int16{-32768, -1, 0, 1, 32767}
	var decoded []float32
	for _, s := range samples {
		decoded = append(decoded, Int16ToFloat32(s))
	}
	for i := 1; i < len(decoded); i++ {
		if decoded[i] <= decoded[i-1] {
			t.Errorf("decoded samples not strictly increasing at %d: %v", i, decoded)
		}
	}
}

func TestPlaneInterleaveRoundTrip(t *testing.T) {
	interleaved := []int16{1, 2, 3, 4, 5, 6}
	planes := PlanesFromInterleavedInt16(interleaved, 2)

	if len(planes) != 2 {
		t.Fatalf("expected 2 planes, got %d", len(planes))
	}
	if len(planes[0]) != 3 || len(planes[1]) != 3 {
		t.Fatalf("expected 3 samples per plane, got %d/%d", len(planes[0]), len(planes[1]))
	}

	back := InterleavedInt16FromPlanes(planes)
	if len(back) != len(interleaved) {
		t.Fatalf("expected %d samples back, got %d", len(interleaved), len(back))
	}
	for i, s := range interleaved {
		if diff := int(back[i]) - int(s); diff < -1 || diff > 1 {
			t.Errorf("sample %d: expected ~%d, got %d", i, s, back[i])
		}
	}
}

func TestFrameSampleCount(t *testing.T) {
	f := Frame{Channels: 2, Samples: make([]int16, 10)}
	if got := f.SampleCount(); got != 5 {
		t.Errorf("expected 5 samples per channel, got %d", got)
	}
}

func TestBufferSampleCount(t *testing.T) {
	b := Buffer{Planes: [][]float32{make([]float32, 7), make([]float32, 7)}}
	if got := b.SampleCount(); got != 7 {
		t.Errorf("expected 7, got %d", got)
	}

	empty := Buffer{}
	if got := empty.SampleCount(); got != 0 {
		t.Errorf("expected 0 for empty buffer, got %d", got)
	}
}
