package runtime

import (
	"encoding/json"
	"log/slog"

	"github.com/loqalabs/loqa-listen/internal/bus"
	"github.com/loqalabs/loqa-listen/internal/protocol"
)

// busSink broadcasts pipeline results, faults, volume levels and session
// transitions on their protocol subjects. Publishing is fire and forget; a
// dropped observer message never blocks capture.
type busSink struct {
	bus *bus.Client
	log *slog.Logger
}

func newBusSink(client *bus.Client, log *slog.Logger) *busSink {
	return &busSink{
		bus: client,
		log: log.With(slog.String("component", "bus-sink")),
	}
}

func (s *busSink) PublishResult(r protocol.TranscriptionResult) {
	s.publish(protocol.SubjectTranscript, r)
}

func (s *busSink) PublishFault(f protocol.PipelineFault) {
	s.publish(protocol.SubjectError, f)
}

func (s *busSink) PublishVolume(v protocol.VolumeLevel) {
	s.publish(protocol.SubjectVolume, v)
}

func (s *busSink) PublishTransition(t protocol.SessionTransition) {
	s.publish(protocol.SubjectSession, t)
}

func (s *busSink) publish(subject string, payload any) {
	if s.bus == nil || !s.bus.Healthy() {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("failed to marshal bus message", slog.String("subject", subject), slog.String("error", err.Error()))
		return
	}
	if err := s.bus.Conn().Publish(subject, data); err != nil {
		s.log.Warn("failed to publish bus message", slog.String("subject", subject), slog.String("error", err.Error()))
	}
}
