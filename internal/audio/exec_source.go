package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/mattn/go-shellwords"
)

// ExecSource captures audio from an external recorder command (arecord, sox,
// ffmpeg) that writes raw little-endian PCM16 to stdout. The stream is sliced
// into fixed-size frames before delivery.
type ExecSource struct {
	cmd []string
	log *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewExecSource(command string, log *slog.Logger) (*ExecSource, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse capture command: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("capture command is empty")
	}
	return &ExecSource{
		cmd: args,
		log: log.With(slog.String("component", "exec-source")),
	}, nil
}

func (s *ExecSource) Start(ctx context.Context, cfg StreamConfig, sink FrameSink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return &DeviceError{Op: "start", Err: errors.New("capture already running")}
	}

	ctx, cancel := context.WithCancel(ctx)
	command := exec.CommandContext(ctx, s.cmd[0], s.cmd[1:]...)
	stdout, err := command.StdoutPipe()
	if err != nil {
		cancel()
		return &DeviceError{Op: "start", Err: err}
	}
	if err := command.Start(); err != nil {
		cancel()
		return &DeviceError{Op: "start", Err: err}
	}

	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.readLoop(command, stdout, cfg, sink)
	return nil
}

func (s *ExecSource) readLoop(command *exec.Cmd, stdout io.Reader, cfg StreamConfig, sink FrameSink) {
	defer close(s.done)

	frameBytes := cfg.FrameBytes()
	var seq uint64
	for {
		buf := make([]byte, frameBytes)
		if _, err := io.ReadFull(stdout, buf); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				s.log.Warn("capture read failed", slog.String("error", err.Error()))
			}
			break
		}
		sink(RawFrame{Seq: seq, Data: buf})
		seq++
	}
	if err := command.Wait(); err != nil && command.ProcessState != nil && !command.ProcessState.Success() {
		s.log.Debug("capture command exited", slog.String("error", err.Error()))
	}
}

// Stop halts the recorder process and waits for the reader goroutine to
// finish, so no frame callback can arrive after it returns.
func (s *ExecSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.cancel()
	<-s.done
	s.running = false
	s.cancel = nil
	s.done = nil
	return nil
}
