package ports

import (
	"context"

	"gazecue/internal/domain"
)

// SessionCoordinator begins and ends server-side sessions.
type SessionCoordinator interface {
	StartSession(ctx context.Context, cfg domain.SessionConfig) (domain.StartResult, error)
	EndSession(ctx context.Context, studentID string) error
}

// InstructionSource yields the next presentation instruction for a student.
type InstructionSource interface {
	NextInstruction(ctx context.Context, studentID string) (domain.Instruction, error)
}

// SessionScopedSource is an InstructionSource that buffers between calls.
// ResetSession discards everything received for an earlier session.
type SessionScopedSource interface {
	InstructionSource
	ResetSession()
}

// FrameScorer scores one landmark sample.
type FrameScorer interface {
	SendFrame(ctx context.Context, sample domain.LandmarkSample) (domain.FrameResult, error)
}

// CameraConfig describes the requested capture geometry.
type CameraConfig struct {
	Device string
	Width  int
	Height int
}

// DetectionStream is a live camera + detector session.
type DetectionStream interface {
	// Detections is closed when the stream ends; Err reports why.
	Detections() <-chan domain.Detection
	Err() error
	Stop() error
}

// FaceDetector opens the camera and runs per-frame landmark detection.
type FaceDetector interface {
	Start(ctx context.Context, cfg CameraConfig) (DetectionStream, error)
}

// FullscreenTarget is one element that may be presented fullscreen.
type FullscreenTarget interface {
	Name() string
	RequestFullscreen(ctx context.Context) error
}

// MediaSurface owns the single audio element and the single video element.
// Handles identify one playback; lifecycle events echo them back.
type MediaSurface interface {
	PlayAudio(handle uint64, url string) error
	StopAudio()
	PlayVideo(handle uint64, url string) error
	PauseVideo()
	FullscreenTargets() []FullscreenTarget
}

// EventSink emits session state and notifications to the hosting UI.
type EventSink interface {
	StatusChanged(status domain.Status)
	SessionError(code domain.ErrorCode, detail string)
	SessionComplete(studentID string)
}
