package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/loqalabs/loqa-listen/internal/audio"
	"github.com/loqalabs/loqa-listen/internal/config"
	"github.com/loqalabs/loqa-listen/internal/pipeline"
	"github.com/loqalabs/loqa-listen/internal/protocol"
)

// State is the recording lifecycle position.
type State int32

const (
	Idle State = iota
	Recording
	Paused
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Paused:
		return "paused"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// StatusSink receives state transitions and per-frame volume levels.
type StatusSink interface {
	PublishVolume(protocol.VolumeLevel)
	PublishTransition(protocol.SessionTransition)
}

// Session owns the capture source and drives frames through volume
// monitoring, window accumulation and pipeline submission. Frames keep
// flowing from the source while paused; they are pulled and discarded so the
// device queue never backs up.
type Session struct {
	cfg    config.AudioConfig
	source audio.Source
	pipe   *pipeline.Pipeline
	status StatusSink
	log    *slog.Logger

	monitor *audio.Monitor
	acc     *audio.Accumulator

	mu     sync.Mutex
	state  State
	id     string
	frames chan audio.RawFrame
	wg     sync.WaitGroup

	queueDrops atomic.Uint64
}

func New(cfg config.AudioConfig, source audio.Source, pipe *pipeline.Pipeline, status StatusSink, log *slog.Logger) (*Session, error) {
	acc, err := audio.NewAccumulator(cfg.WindowSize(), cfg.OverlapSize())
	if err != nil {
		return nil, err
	}
	return &Session{
		cfg:     cfg,
		source:  source,
		pipe:    pipe,
		status:  status,
		log:     log.With(slog.String("component", "session")),
		monitor: audio.NewMonitor(cfg.VolumeThreshold, cfg.MaxSilence),
		acc:     acc,
	}, nil
}

// Start begins capture. Starting an already running or paused session is a
// no-op. A source failure leaves the session idle.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Idle {
		s.mu.Unlock()
		return nil
	}
	s.id = uuid.NewString()
	s.monitor.Reset()
	s.acc.Reset()
	frames := make(chan audio.RawFrame, s.cfg.FrameQueueSize)
	s.frames = frames
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for f := range frames {
			s.handleFrame(ctx, f)
		}
	}()

	stream := audio.StreamConfig{
		SampleRate: s.cfg.SampleRate,
		Channels:   s.cfg.Channels,
		ChunkSize:  s.cfg.ChunkSize,
	}
	err := s.source.Start(ctx, stream, func(f audio.RawFrame) {
		select {
		case frames <- f:
		default:
			s.queueDrops.Add(1)
		}
	})
	if err != nil {
		close(frames)
		s.wg.Wait()
		return err
	}

	s.transition(Idle, Recording)
	s.log.Info("recording started", slog.String("session_id", s.id))
	return nil
}

// Pause keeps the source running but discards its frames. Pausing a session
// that is not recording is a no-op.
func (s *Session) Pause() {
	s.mu.Lock()
	if s.state != Recording {
		s.mu.Unlock()
		return
	}
	s.state = Paused
	id := s.id
	s.mu.Unlock()

	s.publishTransition(id, Recording, Paused)
	s.log.Info("recording paused", slog.String("session_id", id))
}

// Resume continues a paused session. The silence clock restarts from zero so
// the pause gap is not counted as silence.
func (s *Session) Resume() {
	s.mu.Lock()
	if s.state != Paused {
		s.mu.Unlock()
		return
	}
	s.state = Recording
	id := s.id
	s.mu.Unlock()

	s.monitor.Reset()
	s.publishTransition(id, Paused, Recording)
	s.log.Info("recording resumed", slog.String("session_id", id))
}

// Stop shuts down the source, drains the frame channel and joins the capture
// goroutine before returning to idle. Stopping an idle session is a no-op.
// A transcription already in flight is not interrupted; its result is still
// delivered.
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.state == Idle || s.state == Stopping {
		s.mu.Unlock()
		return nil
	}
	from := s.state
	s.state = Stopping
	id := s.id
	frames := s.frames
	s.mu.Unlock()

	s.publishTransition(id, from, Stopping)

	err := s.source.Stop()
	close(frames)
	s.wg.Wait()
	s.acc.Reset()

	s.mu.Lock()
	s.state = Idle
	s.frames = nil
	s.mu.Unlock()

	s.publishTransition(id, Stopping, Idle)
	s.log.Info("recording stopped", slog.String("session_id", id))
	return err
}

// Close forces the session to idle. Safe to call at any time.
func (s *Session) Close() error {
	return s.Stop()
}

// State returns the current lifecycle position.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ID returns the identifier of the current or most recent run.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// BufferedSamples reports how many samples are waiting for a full window.
func (s *Session) BufferedSamples() int {
	return s.acc.Len()
}

// QueueDrops counts frames discarded because the frame queue was full.
func (s *Session) QueueDrops() uint64 {
	return s.queueDrops.Load()
}

// SetWindowing replaces the window parameters on the live accumulator.
// Buffered samples are kept and re-windowed under the new sizes.
func (s *Session) SetWindowing(windowSize, overlapSize int) error {
	return s.acc.SetWindowing(windowSize, overlapSize)
}

func (s *Session) handleFrame(ctx context.Context, f audio.RawFrame) {
	s.mu.Lock()
	state := s.state
	id := s.id
	s.mu.Unlock()

	// Paused and stopping sessions pull frames but feed nothing downstream.
	if state != Recording {
		return
	}

	samples := audio.DecodePCM16(f.Data)
	level := s.monitor.Process(samples, s.cfg.SampleRate)

	if s.status != nil {
		s.status.PublishVolume(protocol.VolumeLevel{
			SessionID:      id,
			Sequence:       f.Seq,
			RMS:            level.RMS,
			SilenceSeconds: level.SilenceSeconds,
			VoiceDetected:  level.VoiceDetected,
			Timestamp:      time.Now().UTC(),
		})
	}

	for _, w := range s.acc.Push(samples) {
		s.pipe.Submit(ctx, id, w)
	}
}

func (s *Session) transition(from, to State) {
	s.mu.Lock()
	s.state = to
	id := s.id
	s.mu.Unlock()
	s.publishTransition(id, from, to)
}

func (s *Session) publishTransition(id string, from, to State) {
	if s.status == nil {
		return
	}
	s.status.PublishTransition(protocol.SessionTransition{
		SessionID: id,
		From:      from.String(),
		To:        to.String(),
		Timestamp: time.Now().UTC(),
	})
}
