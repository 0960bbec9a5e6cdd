package audio

import (
	"context"
	"encoding/binary"
	"math"
	"sync"
	"testing"
	"time"
)

func pcm16(values ...int16) []byte {
	data := make([]byte, len(values)*2)
	for i, v := range values {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(v))
	}
	return data
}

func TestDecodePCM16Normalization(t *testing.T) {
	samples := DecodePCM16(pcm16(0, 32767, -32768, 16384))
	want := []float32{0, 32767.0 / 32768.0, -1, 0.5}
	for i := range want {
		if math.Abs(float64(samples[i]-want[i])) > 1e-6 {
			t.Fatalf("sample %d: got %f, want %f", i, samples[i], want[i])
		}
	}
}

func TestPCM16RoundTrip(t *testing.T) {
	cases := []struct {
		name   string
		values []int16
	}{
		{"all zero", []int16{0, 0, 0, 0}},
		{"all max positive", []int16{32767, 32767, 32767}},
		{"all max negative", []int16{-32768, -32768, -32768}},
		{"mixed", []int16{1, -1, 12345, -12345, 32000, -32000}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			original := pcm16(tc.values...)
			round := EncodePCM16(DecodePCM16(original))
			for i, v := range tc.values {
				got := int16(binary.LittleEndian.Uint16(round[i*2:]))
				diff := int32(got) - int32(v)
				if diff < -1 || diff > 1 {
					t.Fatalf("sample %d: got %d, want %d within one quantization step", i, got, v)
				}
			}
		})
	}
}

func TestEncodePCM16Clamps(t *testing.T) {
	data := EncodePCM16([]float32{2.0, -2.0})
	if got := int16(binary.LittleEndian.Uint16(data)); got != 32767 {
		t.Fatalf("over-range sample should clamp to 32767, got %d", got)
	}
	if got := int16(binary.LittleEndian.Uint16(data[2:])); got != -32768 {
		t.Fatalf("under-range sample should clamp to -32768, got %d", got)
	}
}

func TestToneSourceDeliversFramesInOrder(t *testing.T) {
	cfg := StreamConfig{SampleRate: 16000, Channels: 1, ChunkSize: 160}

	var mu sync.Mutex
	var seqs []uint64
	src := &ToneSource{}
	err := src.Start(context.Background(), cfg, func(f RawFrame) {
		mu.Lock()
		seqs = append(seqs, f.Seq)
		mu.Unlock()
		if len(f.Data) != cfg.FrameBytes() {
			t.Errorf("frame has %d bytes, want %d", len(f.Data), cfg.FrameBytes())
		}
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(seqs)
		mu.Unlock()
		if n >= 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for frames")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if err := src.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	// Stop guarantees no further frames; the recorded count must be stable.
	mu.Lock()
	n := len(seqs)
	mu.Unlock()
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(seqs) != n {
		t.Fatal("frames delivered after Stop returned")
	}
	for i, s := range seqs {
		if s != uint64(i) {
			t.Fatalf("sequence %d out of order: %d", i, s)
		}
	}
	// Stop is idempotent.
	if err := src.Stop(); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}
