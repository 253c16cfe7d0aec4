package camera

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"gazecue/internal/domain"
	"gazecue/internal/log"
	"gazecue/internal/ports"
)

const (
	startupGrace = 250 * time.Millisecond
	stopGrace    = 1200 * time.Millisecond
	maxLineBytes = 4 << 20
)

// ProcessDetector runs an external landmark detector that prints one JSON
// DetectionMessage per line on stdout.
type ProcessDetector struct {
	command string
	logger  zerolog.Logger
}

func NewProcessDetector(command string, logger zerolog.Logger) *ProcessDetector {
	return &ProcessDetector{
		command: command,
		logger:  logger.With().Str(log.FieldComponent, "detector_process").Logger(),
	}
}

func (d *ProcessDetector) Start(ctx context.Context, cfg ports.CameraConfig) (ports.DetectionStream, error) {
	if d.command == "" {
		return nil, errors.New("detector command is not configured")
	}
	if cfg.Device == "" {
		cfg.Device = "/dev/video0"
	}
	if cfg.Width <= 0 {
		cfg.Width = 640
	}
	if cfg.Height <= 0 {
		cfg.Height = 480
	}

	args := []string{
		"--device", cfg.Device,
		"--width", strconv.Itoa(cfg.Width),
		"--height", strconv.Itoa(cfg.Height),
	}

	cmd := exec.CommandContext(ctx, d.command, args...)
	cmd.WaitDelay = stopGrace
	stderr := &lockedBuffer{}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create detector stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start detector: %w", err)
	}

	stream := &processStream{
		detections: make(chan domain.Detection, 1),
		stdout:     stdout,
		stderr:     stderr,
		process:    cmd.Process,
		exited:     make(chan struct{}),
		readerDone: make(chan struct{}),
		logger:     d.logger,
	}
	go func() {
		stream.exitErr = cmd.Wait()
		close(stream.exited)
	}()

	select {
	case <-stream.exited:
		if stream.exitErr != nil {
			return nil, fmt.Errorf("detector exited before capture started: %w: %s", stream.exitErr, stderr.trimmed())
		}
		return nil, errors.New("detector exited before capture started")
	case <-time.After(startupGrace):
	}

	go stream.readLoop()
	d.logger.Info().Str("device", cfg.Device).Msg("detector process started")
	return stream, nil
}

type processStream struct {
	detections chan domain.Detection
	stdout     io.ReadCloser
	stderr     *lockedBuffer
	process    *os.Process
	logger     zerolog.Logger

	// exitErr is written once before exited is closed.
	exited  chan struct{}
	exitErr error

	readerDone chan struct{}
	stopping   atomic.Bool

	errMu sync.Mutex
	err   error

	stopOnce sync.Once
	stopErr  error
}

func (s *processStream) Detections() <-chan domain.Detection {
	return s.detections
}

func (s *processStream) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *processStream) Stop() error {
	s.stopOnce.Do(func() {
		s.stopping.Store(true)
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case <-s.exited:
		case <-time.After(stopGrace):
			if s.process != nil {
				_ = s.process.Kill()
			}
			<-s.exited
		}
		s.stopErr = normalizeStopErr(s.exitErr)

		if closeErr := s.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			if s.stopErr == nil {
				s.stopErr = closeErr
			}
		}
		<-s.readerDone

		if s.stopErr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, s.stderr.trimmed())
		}
	})
	return s.stopErr
}

func (s *processStream) readLoop() {
	defer close(s.readerDone)
	defer close(s.detections)

	scanner := bufio.NewScanner(s.stdout)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var message DetectionMessage
		if err := json.Unmarshal(line, &message); err != nil {
			s.logger.Debug().Err(err).Msg("ignoring malformed detector line")
			continue
		}
		publishLatest(s.detections, message.Detection())
	}
	scanErr := scanner.Err()
	if errors.Is(scanErr, os.ErrClosed) {
		scanErr = nil
	}

	<-s.exited
	if s.stopping.Load() {
		return
	}

	cause := scanErr
	if cause == nil {
		cause = s.exitErr
	}
	if cause == nil {
		cause = errors.New("detector closed its output")
	}
	s.errMu.Lock()
	s.err = fmt.Errorf("detector stopped unexpectedly: %w: %s", cause, s.stderr.trimmed())
	s.errMu.Unlock()
}

func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) || errors.Is(err, exec.ErrWaitDelay) {
		return nil
	}
	return err
}

// lockedBuffer collects stderr written by the exec copier while Stop and the
// reader may inspect it.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

func (b *lockedBuffer) trimmed() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(bytes.TrimSpace(b.buf.Bytes()))
}
