package protocol

import "time"

// TranscriptionResult is an accepted recognition result broadcast on the bus.
type TranscriptionResult struct {
	SessionID     string        `json:"session_id"`
	Text          string        `json:"text"`
	Confidence    float64       `json:"confidence"`
	Language      string        `json:"language"`
	Engine        string        `json:"engine"`
	Processing    time.Duration `json:"processing_ns"`
	AudioDuration time.Duration `json:"audio_duration_ns"`
	Timestamp     time.Time     `json:"timestamp"`
}

// VolumeLevel reports per-frame loudness and the derived silence state.
type VolumeLevel struct {
	SessionID      string    `json:"session_id"`
	Sequence       uint64    `json:"sequence"`
	RMS            float64   `json:"rms"`
	SilenceSeconds float64   `json:"silence_seconds"`
	VoiceDetected  bool      `json:"voice_detected"`
	Timestamp      time.Time `json:"timestamp"`
}

// SessionTransition reports a recording state machine transition.
type SessionTransition struct {
	SessionID string    `json:"session_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Timestamp time.Time `json:"timestamp"`
}

// PipelineFault reports a per-window processing failure. Faults never stop
// capture; observers decide how to surface them.
type PipelineFault struct {
	SessionID string    `json:"session_id"`
	Stage     string    `json:"stage"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectTranscript = "listen.transcript"
	SubjectVolume     = "listen.volume"
	SubjectSession    = "listen.session"
	SubjectError      = "listen.error"
)
