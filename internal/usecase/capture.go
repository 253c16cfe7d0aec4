package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"gazecue/internal/domain"
	"gazecue/internal/metrics"
	"gazecue/internal/ports"
)

// landmarkCapture turns a detection stream into throttled single-face samples.
// Only the detector's first-ranked face is used.
type landmarkCapture struct {
	detector ports.FaceDetector
	camera   ports.CameraConfig
	limiter  *rate.Limiter
	now      func() time.Time
	logger   zerolog.Logger
}

func newLandmarkCapture(
	detector ports.FaceDetector,
	camera ports.CameraConfig,
	interval time.Duration,
	now func() time.Time,
	logger zerolog.Logger,
) *landmarkCapture {
	if now == nil {
		now = time.Now
	}
	return &landmarkCapture{
		detector: detector,
		camera:   camera,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		now:      now,
		logger:   logger,
	}
}

// run emits samples until ctx ends. A returned error means the camera could
// not be opened or failed mid-stream; capture is not retried.
func (c *landmarkCapture) run(ctx context.Context, studentID string, emit func(domain.LandmarkSample)) error {
	stream, err := c.detector.Start(ctx, c.camera)
	if err != nil {
		return fmt.Errorf("start camera: %w", err)
	}
	defer func() {
		if stopErr := stream.Stop(); stopErr != nil {
			c.logger.Debug().Err(stopErr).Msg("camera stop reported an error")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case detection, ok := <-stream.Detections():
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				if streamErr := stream.Err(); streamErr != nil {
					return fmt.Errorf("camera stream: %w", streamErr)
				}
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			if sample, ok := c.accept(studentID, detection); ok {
				emit(sample)
			}
		}
	}
}

func (c *landmarkCapture) accept(studentID string, detection domain.Detection) (domain.LandmarkSample, bool) {
	if len(detection.Faces) == 0 || len(detection.Faces[0]) == 0 {
		metrics.RecordSample(metrics.SampleNoFace)
		return domain.LandmarkSample{}, false
	}

	now := c.now()
	if !c.limiter.AllowN(now, 1) {
		metrics.RecordSample(metrics.SampleThrottled)
		return domain.LandmarkSample{}, false
	}
	metrics.RecordSample(metrics.SampleEmitted)

	return domain.LandmarkSample{
		StudentID:   studentID,
		Timestamp:   float64(now.UnixNano()) / float64(time.Second),
		ImageWidth:  detection.ImageWidth,
		ImageHeight: detection.ImageHeight,
		Landmarks:   append([]domain.Landmark(nil), detection.Faces[0]...),
	}, true
}
