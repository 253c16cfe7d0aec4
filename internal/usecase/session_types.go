package usecase

import (
	"context"
	"sync"

	"gazecue/internal/domain"
)

// activeSession is one running monitoring episode. Presentation fields are
// written only by SessionController while holding its mutex.
type activeSession struct {
	id     string
	config domain.SessionConfig

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	completeOnce sync.Once

	currentAction string
	message       string
	liveAttention *float64
	stimulus      *domain.Stimulus
	captureErr    string
}

func newActiveSession(parent context.Context, id string, cfg domain.SessionConfig) *activeSession {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	return &activeSession{
		id:      id,
		config:  cfg,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		message: "Session started",
	}
}

func (s *activeSession) status(state domain.SessionState) domain.Status {
	status := domain.Status{
		State:         state,
		Active:        state == domain.SessionStateActive,
		StudentID:     s.config.StudentID,
		SessionID:     s.id,
		CurrentAction: s.currentAction,
		Message:       s.message,
		CaptureError:  s.captureErr,
	}
	if s.liveAttention != nil {
		score := *s.liveAttention
		status.LiveAttention = &score
		status.LiveAttentionText = domain.FormatAttention(score)
	}
	if s.stimulus != nil {
		stimulus := *s.stimulus
		status.CurrentStimulus = &stimulus
	}
	return status
}
