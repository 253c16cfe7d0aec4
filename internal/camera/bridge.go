package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"gazecue/internal/domain"
	"gazecue/internal/log"
	"gazecue/internal/ports"
)

// ErrSuperseded fails a bridge stream replaced by a newer Start.
var ErrSuperseded = errors.New("camera stream superseded")

// Requester asks the webview to open or close its camera loop.
type Requester interface {
	OpenCamera(cfg ports.CameraConfig) error
	CloseCamera()
}

// Bridge is a FaceDetector whose detections are produced by FaceMesh running
// in the webview and submitted back through host bindings.
type Bridge struct {
	requester Requester
	logger    zerolog.Logger

	mu     sync.Mutex
	stream *bridgeStream
}

func NewBridge(requester Requester, logger zerolog.Logger) *Bridge {
	return &Bridge{
		requester: requester,
		logger:    logger.With().Str(log.FieldComponent, "camera_bridge").Logger(),
	}
}

func (b *Bridge) Start(ctx context.Context, cfg ports.CameraConfig) (ports.DetectionStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.requester == nil {
		return nil, errors.New("camera bridge has no webview")
	}

	stream := &bridgeStream{
		bridge:     b,
		detections: make(chan domain.Detection, 1),
	}

	b.mu.Lock()
	previous := b.stream
	b.stream = stream
	b.mu.Unlock()
	if previous != nil {
		previous.fail(ErrSuperseded)
	}

	if err := b.requester.OpenCamera(cfg); err != nil {
		b.release(stream)
		return nil, fmt.Errorf("open webview camera: %w", err)
	}
	b.logger.Info().Int("width", cfg.Width).Int("height", cfg.Height).Msg("webview camera requested")
	return stream, nil
}

// Submit hands one detection from the webview to the active stream. It
// reports false when no stream is open.
func (b *Bridge) Submit(message DetectionMessage) bool {
	b.mu.Lock()
	stream := b.stream
	b.mu.Unlock()
	if stream == nil {
		return false
	}
	return stream.publish(message.Detection())
}

// Fail ends the active stream with a device error reported by the webview.
func (b *Bridge) Fail(reason string) {
	b.mu.Lock()
	stream := b.stream
	b.stream = nil
	b.mu.Unlock()
	if stream == nil {
		return
	}
	if reason == "" {
		reason = "camera unavailable"
	}
	b.logger.Warn().Str("reason", reason).Msg("webview camera failed")
	stream.fail(errors.New(reason))
}

func (b *Bridge) release(stream *bridgeStream) {
	b.mu.Lock()
	owned := b.stream == stream
	if owned {
		b.stream = nil
	}
	b.mu.Unlock()
	stream.close(nil)
	if owned {
		b.requester.CloseCamera()
	}
}

type bridgeStream struct {
	bridge     *Bridge
	detections chan domain.Detection

	mu     sync.Mutex
	err    error
	closed bool
}

func (s *bridgeStream) Detections() <-chan domain.Detection {
	return s.detections
}

func (s *bridgeStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *bridgeStream) Stop() error {
	s.bridge.release(s)
	return nil
}

func (s *bridgeStream) publish(detection domain.Detection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	publishLatest(s.detections, detection)
	return true
}

func (s *bridgeStream) fail(err error) {
	s.close(err)
}

func (s *bridgeStream) close(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.err = err
	close(s.detections)
}
