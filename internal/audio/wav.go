package audio

import (
	"fmt"
	"os"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAV encodes normalized samples as a 16-bit PCM WAV file.
func WriteWAV(file *os.File, samples []float32, sampleRate, channels int) error {
	buffer := &gaudio.IntBuffer{Format: &gaudio.Format{NumChannels: channels, SampleRate: sampleRate}}
	pcm := EncodePCM16(samples)
	ints := make([]int, len(pcm)/2)
	for i := range ints {
		ints[i] = int(int16(pcm[i*2]) | int16(pcm[i*2+1])<<8)
	}
	buffer.Data = ints

	enc := wav.NewEncoder(file, sampleRate, 16, channels, 1)
	if err := enc.Write(buffer); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}

// SaveWAV writes samples to a new WAV file at path.
func SaveWAV(path string, samples []float32, sampleRate, channels int) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav file: %w", err)
	}
	defer file.Close()
	return WriteWAV(file, samples, sampleRate, channels)
}
