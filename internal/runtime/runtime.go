package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loqalabs/loqa-listen/internal/audio"
	"github.com/loqalabs/loqa-listen/internal/bus"
	"github.com/loqalabs/loqa-listen/internal/config"
	"github.com/loqalabs/loqa-listen/internal/engine"
	"github.com/loqalabs/loqa-listen/internal/history"
	"github.com/loqalabs/loqa-listen/internal/natsserver"
	"github.com/loqalabs/loqa-listen/internal/pipeline"
	"github.com/loqalabs/loqa-listen/internal/session"
)

// Runtime wires the capture session, pipeline, engine manager, history store
// and bus together and owns their lifecycles.
type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	ready       atomic.Bool
	wg          sync.WaitGroup

	baseCtx   context.Context
	embedded  *natsserver.EmbeddedServer
	busClient *bus.Client
	store     *history.Store
	engines   *engine.Manager
	pipe      *pipeline.Pipeline
	sess      *session.Session
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Start brings every component up, begins capturing and blocks until the
// context is canceled, then shuts down in reverse order.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.baseCtx = ctx

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	if r.cfg.Bus.Embedded {
		embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
		if err != nil {
			return fmt.Errorf("failed to start embedded bus: %w", err)
		}
		r.embedded = embedded
	}

	busClient, err := bus.Connect(ctx, r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to bus: %w", err)
	}
	r.busClient = busClient

	store, err := history.Open(ctx, r.cfg.History, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open history store: %w", err)
	}
	r.store = store

	r.engines = engine.NewManager(r.logger)
	r.engines.Register("mock", func() (engine.Engine, error) {
		return engine.NewMock(), nil
	})
	r.engines.Register("exec", func() (engine.Engine, error) {
		return engine.NewExec(r.cfg.Engine, r.cfg.Audio)
	})
	if err := r.engines.Switch(ctx, r.cfg.Engine.Mode, r.cfg.Engine.Model); err != nil {
		return fmt.Errorf("failed to load engine: %w", err)
	}

	sink := newBusSink(busClient, r.logger)
	r.pipe = pipeline.New(r.cfg.Engine, r.cfg.Audio, r.engines, sink, store, r.logger)

	source, err := r.buildSource()
	if err != nil {
		return fmt.Errorf("failed to build capture source: %w", err)
	}
	r.sess, err = session.New(r.cfg.Audio, source, r.pipe, sink, r.logger)
	if err != nil {
		return fmt.Errorf("failed to build session: %w", err)
	}

	if err := registerMetrics(r.pipe, r.sess); err != nil {
		r.logger.Warn("failed to register metrics", slog.String("error", err.Error()))
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r.routes(metricsHandler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	if err := r.sess.Start(ctx); err != nil {
		r.logger.Error("failed to start capture", slog.String("error", err.Error()))
	}

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.String("addr", addr),
		slog.String("engine", r.engines.Mode()),
		slog.String("source", r.cfg.Audio.Source))

	<-ctx.Done()
	r.logger.Info("runtime stopping")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := r.sess.Close(); err != nil {
		r.logger.Error("session shutdown error", slog.String("error", err.Error()))
	}
	r.pipe.Wait()
	r.engines.Close()

	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	if err := r.store.Close(); err != nil {
		r.logger.Error("history shutdown error", slog.String("error", err.Error()))
	}
	r.busClient.Close()
	r.embedded.Shutdown()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func (r *Runtime) buildSource() (audio.Source, error) {
	switch r.cfg.Audio.Source {
	case "exec":
		return audio.NewExecSource(r.cfg.Audio.CaptureCommand, r.logger)
	case "tone":
		return &audio.ToneSource{}, nil
	default:
		return nil, fmt.Errorf("unknown audio source %q", r.cfg.Audio.Source)
	}
}
