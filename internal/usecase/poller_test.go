package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"gazecue/internal/domain"
)

func TestInstructionPollerSingleFlight(t *testing.T) {
	t.Parallel()

	source := &fakeInstructions{delay: 40 * time.Millisecond}
	poller := &instructionPoller{source: source, interval: 5 * time.Millisecond, logger: zerolog.Nop()}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		poller.run(ctx, "stu-1", func() bool { return true }, func(domain.Instruction) {})
	}()

	waitFor(t, 2*time.Second, func() bool { return source.callCount() >= 3 }, "several polls")
	cancel()
	<-done

	if got := source.maxInFlight(); got != 1 {
		t.Fatalf("expected at most one in-flight poll, got %d", got)
	}
}

func TestInstructionPollerDispatchesActions(t *testing.T) {
	t.Parallel()

	source := &fakeInstructions{script: []instructionReply{
		{instruction: domain.Instruction{Kind: domain.InstructionWait}},
		{err: errBoom},
		{instruction: domain.Instruction{Kind: domain.InstructionPlayVoice, VoiceURL: "/v/3.mp3"}},
		{instruction: domain.Instruction{Kind: domain.InstructionNoSession}},
	}}
	poller := &instructionPoller{source: source, interval: 5 * time.Millisecond, logger: zerolog.Nop()}

	var mu sync.Mutex
	var handled []domain.Instruction
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		poller.run(ctx, "stu-1", func() bool { return true }, func(ins domain.Instruction) {
			mu.Lock()
			handled = append(handled, ins)
			mu.Unlock()
		})
	}()

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(handled) == 2
	}, "two dispatched instructions")
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if handled[0].Kind != domain.InstructionPlayVoice || handled[0].VoiceURL != "/v/3.mp3" {
		t.Fatalf("unexpected first instruction: %+v", handled[0])
	}
	if handled[1].Kind != domain.InstructionNoSession {
		t.Fatalf("unexpected second instruction: %+v", handled[1])
	}
}

func TestInstructionPollerDropsResponseAfterSessionEnds(t *testing.T) {
	t.Parallel()

	var live atomic.Bool
	live.Store(true)

	source := &fakeInstructions{
		delay:  30 * time.Millisecond,
		script: []instructionReply{{instruction: domain.Instruction{Kind: domain.InstructionSessionComplete}}},
	}
	poller := &instructionPoller{source: source, interval: 5 * time.Millisecond, logger: zerolog.Nop()}

	var handled atomic.Int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		poller.run(context.Background(), "stu-1", live.Load, func(domain.Instruction) { handled.Add(1) })
	}()

	waitFor(t, time.Second, func() bool { return source.callCount() == 1 }, "first poll in flight")
	live.Store(false)
	<-done

	if handled.Load() != 0 {
		t.Fatalf("responses for an ended session must be discarded")
	}
}
