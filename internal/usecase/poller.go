package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"gazecue/internal/domain"
	"gazecue/internal/log"
	"gazecue/internal/metrics"
	"gazecue/internal/ports"
)

// instructionPoller asks the coordinator what to present next. Polls run on
// the ticker goroutine, so at most one is in flight per session.
type instructionPoller struct {
	source   ports.InstructionSource
	interval time.Duration
	logger   zerolog.Logger
}

func (p *instructionPoller) run(ctx context.Context, studentID string, live func() bool, handle func(domain.Instruction)) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if ctx.Err() != nil || !live() {
			return
		}
		p.pollOnce(ctx, studentID, live, handle)
	}
}

func (p *instructionPoller) pollOnce(ctx context.Context, studentID string, live func() bool, handle func(domain.Instruction)) {
	instruction, err := p.source.NextInstruction(ctx, studentID)
	if ctx.Err() != nil || !live() {
		return
	}
	if err != nil {
		metrics.RecordPoll(metrics.PollError)
		p.logger.Warn().Err(err).Str(log.FieldStudentID, studentID).Msg("instruction poll failed")
		return
	}

	switch instruction.Kind {
	case domain.InstructionWait:
		metrics.RecordPoll(metrics.PollWait)
		return
	case domain.InstructionNoSession:
		metrics.RecordPoll(metrics.PollNoSession)
	default:
		metrics.RecordPoll(metrics.PollInstruction)
	}
	handle(instruction)
}
