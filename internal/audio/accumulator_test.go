package audio

import "testing"

func sequence(start, n int) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = float32(start + i)
	}
	return s
}

func TestAccumulatorRejectsBadWindowing(t *testing.T) {
	if _, err := NewAccumulator(0, 0); err == nil {
		t.Fatal("expected zero window size to be rejected")
	}
	if _, err := NewAccumulator(100, 100); err == nil {
		t.Fatal("expected overlap == window to be rejected")
	}
	if _, err := NewAccumulator(100, -1); err == nil {
		t.Fatal("expected negative overlap to be rejected")
	}
	if _, err := NewAccumulator(100, 99); err != nil {
		t.Fatalf("overlap just below window should be valid: %v", err)
	}
}

func TestAccumulatorHalfOverlapScenario(t *testing.T) {
	// sample_rate=16000, window_duration=3.0s, overlap_ratio=0.5
	const windowSize = 48000
	const overlapSize = 24000

	acc, err := NewAccumulator(windowSize, overlapSize)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var windows []Window
	for chunk := 0; chunk < 6; chunk++ {
		windows = append(windows, acc.Push(sequence(chunk*16000, 16000))...)
	}

	if len(windows) != 2 {
		t.Fatalf("expected 2 windows from 96000 samples, got %d", len(windows))
	}
	for i, w := range windows {
		if len(w.Samples) != windowSize {
			t.Fatalf("window %d has %d samples, want %d", i, len(w.Samples), windowSize)
		}
	}

	// Second window starts with the first window's trailing overlap.
	for i := 0; i < overlapSize; i++ {
		if windows[1].Samples[i] != windows[0].Samples[windowSize-overlapSize+i] {
			t.Fatalf("overlap carry mismatch at sample %d", i)
		}
	}
	// Windows reflect capture order: first window begins at sample 0, second
	// at windowSize-overlapSize.
	if windows[0].Samples[0] != 0 {
		t.Fatalf("first window should start at sample 0, got %f", windows[0].Samples[0])
	}
	if windows[1].Samples[0] != float32(windowSize-overlapSize) {
		t.Fatalf("second window should start at sample %d, got %f", windowSize-overlapSize, windows[1].Samples[0])
	}
}

func TestAccumulatorDisjointWindows(t *testing.T) {
	acc, err := NewAccumulator(100, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	windows := acc.Push(sequence(0, 250))
	if len(windows) != 2 {
		t.Fatalf("expected 2 disjoint windows, got %d", len(windows))
	}
	if windows[0].Samples[99] != 99 || windows[1].Samples[0] != 100 {
		t.Fatal("disjoint windows must not share samples")
	}
	if acc.Len() != 50 {
		t.Fatalf("expected 50 leftover samples, got %d", acc.Len())
	}
}

func TestAccumulatorHighOverlapTerminates(t *testing.T) {
	// Step of one sample per emission still makes progress.
	acc, err := NewAccumulator(10, 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	windows := acc.Push(sequence(0, 30))
	if len(windows) != 21 {
		t.Fatalf("expected 21 windows with step 1, got %d", len(windows))
	}
	for i := 1; i < len(windows); i++ {
		if windows[i].Samples[0] != windows[i-1].Samples[1] {
			t.Fatalf("window %d does not advance by one sample", i)
		}
	}
}

func TestAccumulatorOverlapCarryAcrossManyChunks(t *testing.T) {
	const windowSize = 64
	const overlapSize = 16
	acc, err := NewAccumulator(windowSize, overlapSize)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var windows []Window
	total := 0
	for _, n := range []int{7, 50, 3, 130, 64, 1, 200} {
		windows = append(windows, acc.Push(sequence(total, n))...)
		total += n
	}

	step := windowSize - overlapSize
	expected := 0
	if total >= windowSize {
		expected = (total-windowSize)/step + 1
	}
	if len(windows) != expected {
		t.Fatalf("expected %d windows from %d samples, got %d", expected, total, len(windows))
	}
	for i := 1; i < len(windows); i++ {
		for j := 0; j < overlapSize; j++ {
			if windows[i].Samples[j] != windows[i-1].Samples[windowSize-overlapSize+j] {
				t.Fatalf("window %d overlap mismatch at %d", i, j)
			}
		}
	}
	if windows[len(windows)-1].Index != uint64(len(windows)-1) {
		t.Fatal("window indices must follow emission order")
	}
}

func TestAccumulatorSetWindowing(t *testing.T) {
	acc, err := NewAccumulator(100, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := acc.SetWindowing(100, 100); err == nil {
		t.Fatal("expected overlap == window to be rejected on recompute")
	}
	if err := acc.SetWindowing(40, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Buffered samples apply to the new geometry at the next push.
	acc.Push(sequence(0, 30))
	windows := acc.Push(sequence(30, 10))
	if len(windows) != 1 || len(windows[0].Samples) != 40 {
		t.Fatalf("expected one 40-sample window after recompute, got %v", windows)
	}
}
