package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"gazecue/internal/log"
	"gazecue/internal/metrics"
	"gazecue/internal/ports"
)

// enterFullscreen walks targets in rank order and stops at the first one that
// accepts. Failures are logged and never returned.
func enterFullscreen(ctx context.Context, targets []ports.FullscreenTarget, logger zerolog.Logger) bool {
	for _, target := range targets {
		if target == nil {
			continue
		}
		err := requestFullscreen(ctx, target)
		metrics.RecordFullscreen(target.Name(), err)
		if err == nil {
			logger.Debug().Str(log.FieldTarget, target.Name()).Msg("fullscreen entered")
			return true
		}
		logger.Debug().Err(err).Str(log.FieldTarget, target.Name()).Msg("fullscreen request failed")
		if ctx.Err() != nil {
			break
		}
	}
	logger.Info().Msg("fullscreen unavailable, continuing windowed")
	return false
}

func requestFullscreen(ctx context.Context, target ports.FullscreenTarget) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fullscreen request panicked: %v", r)
		}
	}()
	return target.RequestFullscreen(ctx)
}
