package capture

import "testing"

func TestToPCM16Clamps(t *testing.T) {
	in := []float32{0, 1, -1, 2, -2, 0.5}
	out := ToPCM16(in)
	want := []int16{0, 32767, -32768, 32767, -32768, 16384}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("ToPCM16[%d] = %d, want %d", i, out[i], want[i])
		}
	}
}

func TestFixedFramerEmitsExactSizeFrames(t *testing.T) {
	var frames []Frame
	f := NewFixedFramer(4, 16000, func(fr Frame) { frames = append(frames, fr) })

	f.Push([]float32{0.1, 0.2, 0.3})
	if len(frames) != 0 {
		t.Fatalf("expected no frame yet, got %d", len(frames))
	}

	f.Push([]float32{0.4, 0.5, 0.6, 0.7, 0.8})
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if len(frames[0].Samples) != 4 || len(frames[1].Samples) != 4 {
		t.Fatalf("expected frames of exactly 4 samples")
	}
	if frames[0].SampleRate != 16000 {
		t.Fatalf("SampleRate = %d, want 16000", frames[0].SampleRate)
	}
}
