package audio

import (
	"encoding/binary"
	"fmt"
	"time"
)

// StreamConfig describes the capture format: 16-bit little-endian PCM at a
// fixed rate, delivered in fixed-size frames.
type StreamConfig struct {
	SampleRate int
	Channels   int
	ChunkSize  int // samples per frame
}

// FrameBytes returns the byte length of one raw frame.
func (c StreamConfig) FrameBytes() int {
	return c.ChunkSize * c.Channels * 2
}

// FramePeriod returns the wall-clock duration one frame covers.
func (c StreamConfig) FramePeriod() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(c.ChunkSize) / float64(c.SampleRate) * float64(time.Second))
}

// RawFrame is one capture callback's worth of PCM bytes, tagged with a
// monotonically increasing sequence number.
type RawFrame struct {
	Seq  uint64
	Data []byte
}

// DeviceError wraps capture init/runtime failures. Device errors are fatal to
// the session and are surfaced to the caller, never swallowed.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("audio device: %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// DecodePCM16 converts little-endian PCM16 bytes into normalized float32
// samples in [-1, 1). A trailing odd byte is ignored.
func DecodePCM16(data []byte) []float32 {
	samples := make([]float32, len(data)/2)
	for i := range samples {
		s := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = float32(s) / 32768.0
	}
	return samples
}

// EncodePCM16 converts normalized samples back to little-endian PCM16 bytes,
// clamping values outside [-1, 1].
func EncodePCM16(samples []float32) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int32(s * 32768.0)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		binary.LittleEndian.PutUint16(data[i*2:], uint16(int16(v)))
	}
	return data
}
