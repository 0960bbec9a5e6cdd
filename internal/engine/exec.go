package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/mattn/go-shellwords"

	"github.com/loqalabs/loqa-listen/internal/audio"
	"github.com/loqalabs/loqa-listen/internal/config"
)

// Exec runs a whisper-style command-line recognizer. The window is handed
// over as a temporary WAV file; the command prints {"text": ..., "confidence": ...}
// on stdout.
type Exec struct {
	cmd       []string
	cfg       config.EngineConfig
	audioCfg  config.AudioConfig
	languages []string

	mu     sync.Mutex
	model  string
	loaded bool
}

type execResult struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// whisperLanguages mirrors the language set of the batch models this engine
// wraps.
var whisperLanguages = []string{
	"ko", "en", "ja", "zh", "es", "fr", "de", "ru", "pt", "it",
	"nl", "pl", "tr", "ar", "sv", "da", "no", "fi", "hu", "cs",
}

func NewExec(cfg config.EngineConfig, audioCfg config.AudioConfig) (*Exec, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse engine command: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("engine command is empty")
	}
	return &Exec{
		cmd:       args,
		cfg:       cfg,
		audioCfg:  audioCfg,
		languages: whisperLanguages,
	}, nil
}

// Load records the model identifier and verifies the command binary resolves.
func (e *Exec) Load(_ context.Context, identifier string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := exec.LookPath(e.cmd[0]); err != nil {
		e.loaded = false
		return &Error{Engine: "exec", Op: "load", Err: err}
	}
	if identifier == "" {
		identifier = e.cfg.Model
	}
	e.model = identifier
	e.loaded = true
	return nil
}

func (e *Exec) Transcribe(ctx context.Context, samples []float32, language string) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.loaded {
		return Result{}, ErrNotLoaded
	}

	file, err := os.CreateTemp(os.TempDir(), "listen_stt_*.wav")
	if err != nil {
		return Result{}, &Error{Engine: "exec", Op: "transcribe", Err: fmt.Errorf("temp file: %w", err)}
	}
	defer os.Remove(file.Name())
	defer file.Close()

	if err := audio.WriteWAV(file, samples, e.audioCfg.SampleRate, e.audioCfg.Channels); err != nil {
		return Result{}, &Error{Engine: "exec", Op: "transcribe", Err: err}
	}

	args := append([]string{}, e.cmd[1:]...)
	args = append(args, "--audio", file.Name())
	if e.model != "" {
		args = append(args, "--model", e.model)
	}
	if language != "" {
		args = append(args, "--language", language)
	}

	command := exec.CommandContext(ctx, e.cmd[0], args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return Result{}, &Error{Engine: "exec", Op: "transcribe",
			Err: fmt.Errorf("command failed: %w: %s", err, stderr.String())}
	}

	var resp execResult
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return Result{}, &Error{Engine: "exec", Op: "transcribe",
			Err: fmt.Errorf("decode response: %w", err)}
	}

	return Result{
		Text:          resp.Text,
		Confidence:    resp.Confidence,
		Language:      language,
		Engine:        "exec",
		AudioDuration: time.Duration(float64(len(samples)) / float64(e.audioCfg.SampleRate) * float64(time.Second)),
	}, nil
}

func (e *Exec) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded
}

func (e *Exec) SupportedLanguages() []string {
	return append([]string(nil), e.languages...)
}

func (e *Exec) Cleanup() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loaded = false
	e.model = ""
	return nil
}
