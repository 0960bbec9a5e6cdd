package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/loqalabs/loqa-listen/internal/audio"
	"github.com/loqalabs/loqa-listen/internal/config"
	"github.com/loqalabs/loqa-listen/internal/engine"
	"github.com/loqalabs/loqa-listen/internal/history"
	"github.com/loqalabs/loqa-listen/internal/protocol"
)

// Sink receives accepted results and per-window faults. Observers behind the
// sink (bus publishers, log writers) are external collaborators.
type Sink interface {
	PublishResult(protocol.TranscriptionResult)
	PublishFault(protocol.PipelineFault)
}

// Stats is a snapshot of pipeline counters.
type Stats struct {
	TotalProcessed    uint64        `json:"total_processed"`
	TotalProcessing   time.Duration `json:"total_processing_ns"`
	AverageProcessing time.Duration `json:"average_processing_ns"`
	Dropped           uint64        `json:"dropped_windows"`
	InFlight          bool          `json:"in_flight"`
}

// Pipeline runs pre-processing, engine invocation, post-processing,
// confidence gating and statistics for one window at a time. Submissions
// while a transcription is running are dropped, not queued: recognition
// latency can exceed the window period, and queuing would grow unbounded lag
// between audio and text.
type Pipeline struct {
	cfg      config.EngineConfig
	audioCfg config.AudioConfig
	engines  *engine.Manager
	sink     Sink
	store    *history.Store
	log      *slog.Logger
	tracer   trace.Tracer

	busy atomic.Bool
	wg   sync.WaitGroup

	dropped         atomic.Uint64
	processed       atomic.Uint64
	totalProcessing atomic.Int64 // nanoseconds
}

func New(cfg config.EngineConfig, audioCfg config.AudioConfig, engines *engine.Manager, sink Sink, store *history.Store, log *slog.Logger) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		audioCfg: audioCfg,
		engines:  engines,
		sink:     sink,
		store:    store,
		log:      log.With(slog.String("component", "pipeline")),
		tracer:   otel.Tracer("github.com/loqalabs/loqa-listen/pipeline"),
	}
}

// Submit hands a window to the pipeline. It returns false immediately, and
// the window is discarded, when a transcription is already in flight. The
// check-and-set is atomic with respect to concurrent submissions.
func (p *Pipeline) Submit(ctx context.Context, sessionID string, w audio.Window) bool {
	if !p.busy.CompareAndSwap(false, true) {
		p.dropped.Add(1)
		return false
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.busy.Store(false)
		p.process(ctx, sessionID, w)
	}()
	return true
}

func (p *Pipeline) process(parent context.Context, sessionID string, w audio.Window) {
	ctx, cancel := context.WithTimeout(parent, time.Duration(p.cfg.TimeoutSeconds)*time.Second)
	defer cancel()

	ctx, span := p.tracer.Start(ctx, "pipeline.transcribe",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.Int("window.samples", len(w.Samples)),
		))
	defer span.End()

	started := time.Now()

	samples := w.Samples
	if p.cfg.Preprocess {
		samples = Preprocess(samples)
	}

	eng, err := p.engines.Active()
	if err != nil {
		p.fault(sessionID, "engine", err)
		return
	}

	language := engine.FallbackLanguage(eng, p.cfg.Language, eng.SupportedLanguages()[0])
	result, err := eng.Transcribe(ctx, samples, language)
	if err != nil {
		p.fault(sessionID, "transcribe", err)
		return
	}

	if p.cfg.Postprocess {
		result.Text = PostprocessText(result.Text)
	}

	// A result at exactly the threshold is accepted; empty text never is.
	if result.Confidence < p.cfg.ConfidenceThreshold || strings.TrimSpace(result.Text) == "" {
		p.log.Debug("result discarded by confidence gate",
			slog.Float64("confidence", result.Confidence),
			slog.Int("text_len", len(result.Text)))
		return
	}

	processing := time.Since(started)
	audioDuration := result.AudioDuration
	if audioDuration == 0 && p.audioCfg.SampleRate > 0 {
		audioDuration = time.Duration(float64(len(w.Samples)) / float64(p.audioCfg.SampleRate) * float64(time.Second))
	}

	p.processed.Add(1)
	p.totalProcessing.Add(int64(processing))

	out := protocol.TranscriptionResult{
		SessionID:     sessionID,
		Text:          result.Text,
		Confidence:    result.Confidence,
		Language:      result.Language,
		Engine:        result.Engine,
		Processing:    processing,
		AudioDuration: audioDuration,
		Timestamp:     time.Now().UTC(),
	}

	if p.store != nil {
		if err := p.store.Append(ctx, history.Record{
			SessionID:     sessionID,
			Text:          out.Text,
			Confidence:    out.Confidence,
			Language:      out.Language,
			Engine:        out.Engine,
			Processing:    out.Processing,
			AudioDuration: out.AudioDuration,
		}); err != nil {
			p.log.Warn("failed to append result to history", slog.String("error", err.Error()))
		}
	}

	if p.cfg.DumpDir != "" {
		path := filepath.Join(p.cfg.DumpDir, fmt.Sprintf("window_%s.wav", uuid.NewString()))
		if err := audio.SaveWAV(path, w.Samples, p.audioCfg.SampleRate, p.audioCfg.Channels); err != nil {
			p.log.Warn("failed to dump window audio", slog.String("error", err.Error()))
		}
	}

	if p.sink != nil {
		p.sink.PublishResult(out)
	}
	p.log.Info("transcription accepted",
		slog.String("engine", out.Engine),
		slog.Float64("confidence", out.Confidence),
		slog.Duration("processing", processing))
}

func (p *Pipeline) fault(sessionID, stage string, err error) {
	p.log.Warn("pipeline fault", slog.String("stage", stage), slog.String("error", err.Error()))
	if p.sink != nil {
		p.sink.PublishFault(protocol.PipelineFault{
			SessionID: sessionID,
			Stage:     stage,
			Error:     err.Error(),
			Timestamp: time.Now().UTC(),
		})
	}
}

// InFlight reports whether a transcription is currently running.
func (p *Pipeline) InFlight() bool {
	return p.busy.Load()
}

// Stats returns a snapshot of the pipeline counters.
func (p *Pipeline) Stats() Stats {
	processed := p.processed.Load()
	total := time.Duration(p.totalProcessing.Load())
	var avg time.Duration
	if processed > 0 {
		avg = total / time.Duration(processed)
	}
	return Stats{
		TotalProcessed:    processed,
		TotalProcessing:   total,
		AverageProcessing: avg,
		Dropped:           p.dropped.Load(),
		InFlight:          p.busy.Load(),
	}
}

// ResetStats clears the rolling counters alongside a history clear.
func (p *Pipeline) ResetStats() {
	p.processed.Store(0)
	p.totalProcessing.Store(0)
	p.dropped.Store(0)
}

// Wait blocks until an in-flight transcription, if any, completes. Results
// arriving after the session stopped are still delivered through the sink.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}
