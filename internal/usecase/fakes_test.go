package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gazecue/internal/domain"
	"gazecue/internal/ports"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting: %s", msg)
}

func testConfig() Config {
	return Config{
		PollInterval:     10 * time.Millisecond,
		SampleInterval:   120 * time.Millisecond,
		VoiceDelay:       30 * time.Millisecond,
		FullscreenSettle: 10 * time.Millisecond,
		CompletionDelay:  20 * time.Millisecond,
		ResolveMediaURL:  func(path string) string { return "http://api" + path },
	}
}

type fakeCoordinator struct {
	mu       sync.Mutex
	result   domain.StartResult
	startErr error
	endErr   error
	started  []domain.SessionConfig
	endCalls int
	endedFor []string
}

func (f *fakeCoordinator) StartSession(_ context.Context, cfg domain.SessionConfig) (domain.StartResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, cfg)
	if f.startErr != nil {
		return domain.StartResult{}, f.startErr
	}
	return f.result, nil
}

func (f *fakeCoordinator) EndSession(_ context.Context, studentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.endCalls++
	f.endedFor = append(f.endedFor, studentID)
	return f.endErr
}

func (f *fakeCoordinator) ends() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.endCalls
}

func (f *fakeCoordinator) lastStarted() domain.SessionConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.started) == 0 {
		return domain.SessionConfig{}
	}
	return f.started[len(f.started)-1]
}

// fakeInstructions replays a script, then answers wait.
type fakeInstructions struct {
	mu       sync.Mutex
	script   []instructionReply
	calls    int
	inFlight int
	maxIn    int
	delay    time.Duration
	resets   int
}

type instructionReply struct {
	instruction domain.Instruction
	err         error
}

func (f *fakeInstructions) NextInstruction(ctx context.Context, _ string) (domain.Instruction, error) {
	f.mu.Lock()
	f.calls++
	f.inFlight++
	if f.inFlight > f.maxIn {
		f.maxIn = f.inFlight
	}
	var reply instructionReply
	if len(f.script) > 0 {
		reply = f.script[0]
		f.script = f.script[1:]
	} else {
		reply = instructionReply{instruction: domain.Instruction{Kind: domain.InstructionWait}}
	}
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
		}
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
	return reply.instruction, reply.err
}

func (f *fakeInstructions) ResetSession() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
}

func (f *fakeInstructions) resetCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resets
}

func (f *fakeInstructions) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeInstructions) maxInFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxIn
}

type fakeScorer struct {
	mu      sync.Mutex
	result  domain.FrameResult
	err     error
	samples []domain.LandmarkSample
}

func (f *fakeScorer) SendFrame(_ context.Context, sample domain.LandmarkSample) (domain.FrameResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples = append(f.samples, sample)
	return f.result, f.err
}

func (f *fakeScorer) sent() []domain.LandmarkSample {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.LandmarkSample(nil), f.samples...)
}

func (f *fakeScorer) setResult(result domain.FrameResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.result = result
}

type fakeDetector struct {
	mu      sync.Mutex
	err     error
	streams []*fakeStream
}

func (f *fakeDetector) Start(_ context.Context, _ ports.CameraConfig) (ports.DetectionStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	stream := newFakeStream()
	f.streams = append(f.streams, stream)
	return stream, nil
}

func (f *fakeDetector) latest() *fakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.streams) == 0 {
		return nil
	}
	return f.streams[len(f.streams)-1]
}

type fakeStream struct {
	detections chan domain.Detection
	mu         sync.Mutex
	err        error
	stopCalls  int
	closed     bool
}

func newFakeStream() *fakeStream {
	return &fakeStream{detections: make(chan domain.Detection, 16)}
}

func (f *fakeStream) Detections() <-chan domain.Detection { return f.detections }

func (f *fakeStream) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeStream) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	return nil
}

func (f *fakeStream) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
	if !f.closed {
		close(f.detections)
		f.closed = true
	}
}

type mediaCall struct {
	op     string
	handle uint64
	url    string
	at     time.Time
}

type fakeMedia struct {
	mu       sync.Mutex
	calls    []mediaCall
	audioErr error
	videoErr error
	targets  []ports.FullscreenTarget
}

func (f *fakeMedia) record(op string, handle uint64, url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, mediaCall{op: op, handle: handle, url: url, at: time.Now()})
}

func (f *fakeMedia) PlayAudio(handle uint64, url string) error {
	f.record("play_audio", handle, url)
	return f.audioErr
}

func (f *fakeMedia) StopAudio() { f.record("stop_audio", 0, "") }

func (f *fakeMedia) PlayVideo(handle uint64, url string) error {
	f.record("play_video", handle, url)
	return f.videoErr
}

func (f *fakeMedia) PauseVideo() { f.record("pause_video", 0, "") }

func (f *fakeMedia) FullscreenTargets() []ports.FullscreenTarget { return f.targets }

func (f *fakeMedia) snapshot(op string) []mediaCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []mediaCall
	for _, call := range f.calls {
		if op == "" || call.op == op {
			out = append(out, call)
		}
	}
	return out
}

type fakeTarget struct {
	name  string
	err   error
	panic bool
	delay time.Duration
	gate  chan struct{}
	mu    sync.Mutex
	calls int
}

func (f *fakeTarget) Name() string { return f.name }

func (f *fakeTarget) RequestFullscreen(_ context.Context) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.panic {
		panic("fullscreen api missing")
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.gate != nil {
		<-f.gate
	}
	return f.err
}

func (f *fakeTarget) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type errorEvent struct {
	code   domain.ErrorCode
	detail string
}

type fakeEventSink struct {
	mu        sync.Mutex
	statuses  []domain.Status
	errors    []errorEvent
	completes []string
}

func (f *fakeEventSink) StatusChanged(status domain.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
}

func (f *fakeEventSink) SessionError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errorEvent{code: code, detail: detail})
}

func (f *fakeEventSink) SessionComplete(studentID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completes = append(f.completes, studentID)
}

func (f *fakeEventSink) snapshotErrors() []errorEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]errorEvent(nil), f.errors...)
}

func (f *fakeEventSink) snapshotCompletes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.completes...)
}

func (f *fakeEventSink) snapshotStates() []domain.SessionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	var states []domain.SessionState
	for _, status := range f.statuses {
		if len(states) == 0 || states[len(states)-1] != status.State {
			states = append(states, status.State)
		}
	}
	return states
}

var errBoom = errors.New("boom")

func faceDetection(n int) domain.Detection {
	face := make([]domain.Landmark, n)
	for i := range face {
		face[i] = domain.Landmark{X: float64(i) / float64(n), Y: 0.5, Z: -0.01}
	}
	return domain.Detection{ImageWidth: 640, ImageHeight: 480, Faces: [][]domain.Landmark{face}}
}
