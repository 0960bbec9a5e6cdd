package audio

import "context"

// FrameSink receives raw frames as they arrive from the device. Sinks must
// not block; capture sources deliver frames at the device cadence.
type FrameSink func(RawFrame)

// Source abstracts a capture device. Start begins delivery of fixed-size
// frames to the sink; Stop is idempotent and guarantees that no further
// frames are delivered after it returns.
type Source interface {
	Start(ctx context.Context, cfg StreamConfig, sink FrameSink) error
	Stop() error
}
