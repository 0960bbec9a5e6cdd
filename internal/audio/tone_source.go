package audio

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"
)

// ToneSource synthesizes a sine tone at the capture cadence. It stands in for
// a microphone in demos and tests.
type ToneSource struct {
	Frequency float64 // Hz, defaults to 440
	Amplitude float64 // 0..1, defaults to 0.5

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func (s *ToneSource) Start(ctx context.Context, cfg StreamConfig, sink FrameSink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return &DeviceError{Op: "start", Err: errors.New("capture already running")}
	}

	freq := s.Frequency
	if freq == 0 {
		freq = 440
	}
	amp := s.Amplitude
	if amp == 0 {
		amp = 0.5
	}

	ctx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(cfg.FramePeriod())
		defer ticker.Stop()

		var seq uint64
		var phase float64
		step := 2 * math.Pi * freq / float64(cfg.SampleRate)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				samples := make([]float32, cfg.ChunkSize*cfg.Channels)
				for i := 0; i < cfg.ChunkSize; i++ {
					v := float32(amp * math.Sin(phase))
					phase += step
					for ch := 0; ch < cfg.Channels; ch++ {
						samples[i*cfg.Channels+ch] = v
					}
				}
				sink(RawFrame{Seq: seq, Data: EncodePCM16(samples)})
				seq++
			}
		}
	}()
	return nil
}

func (s *ToneSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.cancel()
	<-s.done
	s.running = false
	s.cancel = nil
	s.done = nil
	return nil
}
