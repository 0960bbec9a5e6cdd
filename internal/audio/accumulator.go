package audio

import (
	"fmt"
	"sync"
)

// Window is a fixed-length run of normalized samples handed to the recognizer
// as one inference unit.
type Window struct {
	Index   uint64
	Samples []float32
}

// Accumulator merges incoming sample chunks into a growing buffer and emits
// overlapping fixed-size windows in strict capture order. The trailing
// overlap of each emitted window is carried into the next one.
type Accumulator struct {
	mu          sync.Mutex
	buf         []float32
	windowSize  int
	overlapSize int
	emitted     uint64
}

// NewAccumulator validates the windowing parameters. overlapSize must stay
// strictly below windowSize so every emission shrinks the buffer.
func NewAccumulator(windowSize, overlapSize int) (*Accumulator, error) {
	if err := checkWindowing(windowSize, overlapSize); err != nil {
		return nil, err
	}
	return &Accumulator{
		windowSize:  windowSize,
		overlapSize: overlapSize,
		buf:         make([]float32, 0, windowSize*2),
	}, nil
}

func checkWindowing(windowSize, overlapSize int) error {
	if windowSize <= 0 {
		return fmt.Errorf("window size must be positive, got %d", windowSize)
	}
	if overlapSize < 0 || overlapSize >= windowSize {
		return fmt.Errorf("overlap size must be within [0, window size), got %d of %d", overlapSize, windowSize)
	}
	return nil
}

// SetWindowing atomically replaces the window parameters. The change applies
// at the next buffer check; buffered samples are kept.
func (a *Accumulator) SetWindowing(windowSize, overlapSize int) error {
	if err := checkWindowing(windowSize, overlapSize); err != nil {
		return err
	}
	a.mu.Lock()
	a.windowSize = windowSize
	a.overlapSize = overlapSize
	a.mu.Unlock()
	return nil
}

// Push appends a chunk of samples and returns every complete window that can
// be emitted. Each returned window owns its backing array.
func (a *Accumulator) Push(samples []float32) []Window {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.buf = append(a.buf, samples...)

	var windows []Window
	for len(a.buf) >= a.windowSize {
		w := make([]float32, a.windowSize)
		copy(w, a.buf[:a.windowSize])
		windows = append(windows, Window{Index: a.emitted, Samples: w})
		a.emitted++

		step := a.windowSize - a.overlapSize
		remaining := len(a.buf) - step
		copy(a.buf, a.buf[step:])
		a.buf = a.buf[:remaining]
	}
	return windows
}

// Len returns the number of buffered samples awaiting a full window.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buf)
}

// Emitted returns how many windows have been produced so far.
func (a *Accumulator) Emitted() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.emitted
}

// Reset discards buffered samples.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	a.buf = a.buf[:0]
	a.mu.Unlock()
}
