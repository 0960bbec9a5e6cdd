package engine

import (
	"context"
	"sync/atomic"
	"time"
)

// Mock is a configurable in-process engine for tests and the default demo
// deployment.
type Mock struct {
	Text       string
	Confidence float64
	Delay      time.Duration
	LoadErr    error
	TransErr   error
	Languages  []string

	loaded atomic.Bool
	calls  atomic.Uint64
}

func NewMock() *Mock {
	return &Mock{Text: "mock transcript", Confidence: 1.0}
}

func (m *Mock) Load(_ context.Context, _ string) error {
	if m.LoadErr != nil {
		return m.LoadErr
	}
	m.loaded.Store(true)
	return nil
}

func (m *Mock) Transcribe(ctx context.Context, samples []float32, language string) (Result, error) {
	if !m.loaded.Load() {
		return Result{}, ErrNotLoaded
	}
	m.calls.Add(1)
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
	if m.TransErr != nil {
		return Result{}, m.TransErr
	}
	return Result{
		Text:       m.Text,
		Confidence: m.Confidence,
		Language:   language,
		Engine:     "mock",
	}, nil
}

func (m *Mock) Loaded() bool {
	return m.loaded.Load()
}

func (m *Mock) SupportedLanguages() []string {
	if len(m.Languages) > 0 {
		return m.Languages
	}
	return []string{"ko", "en"}
}

func (m *Mock) Cleanup() error {
	m.loaded.Store(false)
	return nil
}

// Calls reports how many transcriptions ran, for single-flight assertions.
func (m *Mock) Calls() uint64 {
	return m.calls.Load()
}
