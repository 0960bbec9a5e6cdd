package audio

import (
	"math"
	"sync"
)

// Level is the loudness measurement for one decoded frame.
type Level struct {
	RMS            float64
	SilenceSeconds float64
	VoiceDetected  bool
}

// Monitor computes per-frame RMS loudness and tracks how long the input has
// stayed below the volume threshold. The silence state is advisory; it never
// gates the pipeline.
type Monitor struct {
	mu         sync.Mutex
	threshold  float64
	maxSilence float64
	silence    float64
}

func NewMonitor(volumeThreshold, maxSilenceSeconds float64) *Monitor {
	return &Monitor{
		threshold:  volumeThreshold,
		maxSilence: maxSilenceSeconds,
	}
}

// Process measures one frame and advances the silence clock by the frame's
// duration when the level stays below the threshold.
func (m *Monitor) Process(samples []float32, sampleRate int) Level {
	rms := RMS(samples)

	m.mu.Lock()
	defer m.mu.Unlock()

	if rms >= m.threshold {
		m.silence = 0
	} else if sampleRate > 0 {
		m.silence += float64(len(samples)) / float64(sampleRate)
	}

	return Level{
		RMS:            rms,
		SilenceSeconds: m.silence,
		VoiceDetected:  m.silence < m.maxSilence,
	}
}

// Reset clears the accumulated silence duration.
func (m *Monitor) Reset() {
	m.mu.Lock()
	m.silence = 0
	m.mu.Unlock()
}

// RMS returns sqrt(mean(sample^2)) for the given samples, 0 for empty input.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
