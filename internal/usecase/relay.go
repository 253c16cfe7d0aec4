package usecase

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"gazecue/internal/domain"
	"gazecue/internal/log"
	"gazecue/internal/metrics"
	"gazecue/internal/ports"
)

// sampleMailbox holds at most one unsent sample. A newer sample replaces an
// unsent one, so samples are dropped but never reordered.
type sampleMailbox struct {
	mu      sync.Mutex
	pending *domain.LandmarkSample
	ready   chan struct{}
}

func newSampleMailbox() *sampleMailbox {
	return &sampleMailbox{ready: make(chan struct{}, 1)}
}

func (m *sampleMailbox) offer(sample domain.LandmarkSample) {
	m.mu.Lock()
	if m.pending != nil {
		metrics.RecordSample(metrics.SampleSuperseded)
	}
	m.pending = &sample
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
}

func (m *sampleMailbox) take() (domain.LandmarkSample, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return domain.LandmarkSample{}, false
	}
	sample := *m.pending
	m.pending = nil
	return sample, true
}

// frameRelay forwards samples to the scorer one at a time.
type frameRelay struct {
	scorer ports.FrameScorer
	logger zerolog.Logger
}

func (r *frameRelay) run(ctx context.Context, box *sampleMailbox, onResult func(domain.FrameResult)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-box.ready:
		}

		sample, ok := box.take()
		if !ok {
			continue
		}

		result, err := r.scorer.SendFrame(ctx, sample)
		metrics.RecordFrameSend(err)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			r.logger.Debug().Err(err).Msg("frame send failed")
			continue
		}
		if result.Alert {
			r.logger.Info().Str(log.FieldAlertMsg, result.AlertMessage).Msg("scorer raised attention alert")
		}
		onResult(result)
	}
}
