package engine

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Result captures recognizer output for one analysis window.
type Result struct {
	Text          string
	Confidence    float64
	Language      string
	Engine        string
	AudioDuration time.Duration
}

// Engine abstracts a speech recognition backend. Exactly one engine is active
// at a time; switching requires Cleanup on the old instance before Load on
// the new one (see Manager).
type Engine interface {
	Load(ctx context.Context, identifier string) error
	Transcribe(ctx context.Context, samples []float32, language string) (Result, error)
	Loaded() bool
	SupportedLanguages() []string
	Cleanup() error
}

// ErrNotLoaded is returned by Transcribe before a successful Load.
var ErrNotLoaded = errors.New("engine model not loaded")

// Error wraps load or inference failures. The active engine stays failed
// until reloaded.
type Error struct {
	Engine string
	Op     string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("engine %s: %s: %v", e.Engine, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// FallbackLanguage returns lang if the engine supports it, otherwise def.
func FallbackLanguage(e Engine, lang, def string) string {
	for _, l := range e.SupportedLanguages() {
		if l == lang {
			return lang
		}
	}
	return def
}
