package runtime

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/loqalabs/loqa-listen/internal/pipeline"
	"github.com/loqalabs/loqa-listen/internal/session"
)

// registerMetrics exposes the pipeline and session counters as observable
// instruments. The callback snapshots the atomics at collection time.
func registerMetrics(pipe *pipeline.Pipeline, sess *session.Session) error {
	meter := otel.Meter("github.com/loqalabs/loqa-listen/runtime")

	processed, err := meter.Int64ObservableCounter("listen.windows.processed",
		metric.WithDescription("Windows transcribed and accepted or gated"))
	if err != nil {
		return err
	}
	dropped, err := meter.Int64ObservableCounter("listen.windows.dropped",
		metric.WithDescription("Windows dropped because a transcription was in flight"))
	if err != nil {
		return err
	}
	queueDrops, err := meter.Int64ObservableCounter("listen.frames.queue_dropped",
		metric.WithDescription("Raw frames dropped because the frame queue was full"))
	if err != nil {
		return err
	}
	inFlight, err := meter.Int64ObservableGauge("listen.pipeline.in_flight",
		metric.WithDescription("Whether a transcription is currently running"))
	if err != nil {
		return err
	}

	_, err = meter.RegisterCallback(func(_ context.Context, obs metric.Observer) error {
		stats := pipe.Stats()
		obs.ObserveInt64(processed, int64(stats.TotalProcessed))
		obs.ObserveInt64(dropped, int64(stats.Dropped))
		obs.ObserveInt64(queueDrops, int64(sess.QueueDrops()))
		var flight int64
		if stats.InFlight {
			flight = 1
		}
		obs.ObserveInt64(inFlight, flight)
		return nil
	}, processed, dropped, queueDrops, inFlight)
	return err
}
