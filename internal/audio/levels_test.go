package audio

import (
	"math"
	"testing"
)

func TestRMSKnownValues(t *testing.T) {
	if got := RMS(nil); got != 0 {
		t.Fatalf("empty input should have RMS 0, got %f", got)
	}
	if got := RMS([]float32{0, 0, 0, 0}); got != 0 {
		t.Fatalf("silence should have RMS 0, got %f", got)
	}
	if got := RMS([]float32{0.5, 0.5, 0.5, 0.5}); math.Abs(got-0.5) > 1e-6 {
		t.Fatalf("constant 0.5 should have RMS 0.5, got %f", got)
	}
	if got := RMS([]float32{1, -1, 1, -1}); math.Abs(got-1) > 1e-6 {
		t.Fatalf("full-scale square should have RMS 1, got %f", got)
	}
}

func TestMonitorSilenceAccumulation(t *testing.T) {
	const sampleRate = 16000
	m := NewMonitor(0.01, 3.0)

	quiet := make([]float32, 16000) // one second of silence per frame
	loud := make([]float32, 16000)
	for i := range loud {
		loud[i] = 0.5
	}

	l := m.Process(quiet, sampleRate)
	if math.Abs(l.SilenceSeconds-1.0) > 1e-9 {
		t.Fatalf("expected 1s of silence, got %f", l.SilenceSeconds)
	}
	if !l.VoiceDetected {
		t.Fatal("1s of silence is below the 3s limit, voice should still count as detected")
	}

	m.Process(quiet, sampleRate)
	l = m.Process(quiet, sampleRate)
	if l.VoiceDetected {
		t.Fatalf("3s of silence should clear voice detection, silence=%f", l.SilenceSeconds)
	}

	l = m.Process(loud, sampleRate)
	if l.SilenceSeconds != 0 {
		t.Fatalf("loud frame should reset silence, got %f", l.SilenceSeconds)
	}
	if !l.VoiceDetected {
		t.Fatal("loud frame should report voice detected")
	}
}

func TestMonitorReset(t *testing.T) {
	m := NewMonitor(0.01, 1.0)
	quiet := make([]float32, 16000)
	m.Process(quiet, 16000)
	m.Process(quiet, 16000)
	m.Reset()
	l := m.Process(quiet, 16000)
	if math.Abs(l.SilenceSeconds-1.0) > 1e-9 {
		t.Fatalf("expected silence clock restart after reset, got %f", l.SilenceSeconds)
	}
}
