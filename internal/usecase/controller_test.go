package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"go.uber.org/goleak"

	"gazecue/internal/domain"
	"gazecue/internal/metrics"
	"gazecue/internal/ports"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type controllerHarness struct {
	controller   *SessionController
	coordinator  *fakeCoordinator
	instructions *fakeInstructions
	scorer       *fakeScorer
	detector     *fakeDetector
	media        *fakeMedia
	events       *fakeEventSink
}

func newHarness(t *testing.T, cfg Config) *controllerHarness {
	t.Helper()
	h := &controllerHarness{
		coordinator:  &fakeCoordinator{},
		instructions: &fakeInstructions{},
		scorer:       &fakeScorer{},
		detector:     &fakeDetector{},
		media:        &fakeMedia{},
		events:       &fakeEventSink{},
	}
	cfg.Logger = zerolog.Nop()
	h.controller = NewSessionController(h.coordinator, h.instructions, h.scorer, h.detector, h.media, h.events, cfg)
	t.Cleanup(func() {
		_ = h.controller.Close(context.Background())
	})
	return h
}

func scenarioRequest() domain.StartRequest {
	return domain.StartRequest{StudentID: "stu-1", StimulusSeconds: 30, VoiceOnLow: true, VoiceThreshold: 0.4}
}

func TestSessionControllerStartPlaysVoiceFromStartResponse(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	h.coordinator.result = domain.StartResult{Action: domain.InstructionPlayVoice, VoiceURL: "/v/1.mp3"}

	status, err := h.controller.Start(context.Background(), scenarioRequest())
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	want := domain.SessionConfig{StudentID: "stu-1", StimulusSeconds: 30, VoiceOnLow: true, VoiceThreshold: 0.4}
	if diff := cmp.Diff(want, h.coordinator.lastStarted()); diff != "" {
		t.Fatalf("unexpected start payload (-want +got):\n%s", diff)
	}

	if status.State != domain.SessionStateActive || !status.Active {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.CurrentAction != "Playing voice" {
		t.Fatalf("unexpected current action: %q", status.CurrentAction)
	}
	if status.SessionID == "" {
		t.Fatalf("expected a session id")
	}

	plays := h.media.snapshot("play_audio")
	if len(plays) != 1 || plays[0].url != "http://api/v/1.mp3" {
		t.Fatalf("expected voice to start immediately, got %+v", plays)
	}

	wantStates := []domain.SessionState{domain.SessionStateStarting, domain.SessionStateActive}
	if diff := cmp.Diff(wantStates, h.events.snapshotStates()); diff != "" {
		t.Fatalf("unexpected transitions (-want +got):\n%s", diff)
	}
}

func TestSessionControllerStartFailureStaysIdle(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	h.coordinator.startErr = errBoom

	status, err := h.controller.Start(context.Background(), scenarioRequest())
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected start error, got %v", err)
	}
	if status.State != domain.SessionStateIdle || status.Active {
		t.Fatalf("unexpected status after failure: %+v", status)
	}
	if calls := h.media.snapshot(""); len(calls) != 0 {
		t.Fatalf("expected no media side effects, got %+v", calls)
	}
	if h.detector.latest() != nil {
		t.Fatalf("camera must not open on failed start")
	}

	time.Sleep(5 * testConfig().PollInterval)
	if calls := h.instructions.callCount(); calls != 0 {
		t.Fatalf("expected no polls after failed start, got %d", calls)
	}

	errs := h.events.snapshotErrors()
	if len(errs) != 1 || errs[0].code != domain.ErrorCodeStart {
		t.Fatalf("expected one start error event, got %+v", errs)
	}
}

func TestSessionControllerStartValidation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		req  domain.StartRequest
		want error
	}{
		{name: "missing student", req: domain.StartRequest{StudentID: "  ", StimulusSeconds: 30}, want: ErrMissingStudent},
		{name: "short duration", req: domain.StartRequest{StudentID: "s", StimulusSeconds: 3}, want: ErrInvalidDuration},
		{name: "negative duration", req: domain.StartRequest{StudentID: "s", StimulusSeconds: -10}, want: ErrInvalidDuration},
		{name: "threshold above one", req: domain.StartRequest{StudentID: "s", StimulusSeconds: 30, VoiceThreshold: 1.5}, want: ErrInvalidThreshold},
		{name: "negative threshold", req: domain.StartRequest{StudentID: "s", StimulusSeconds: 30, VoiceThreshold: -0.1}, want: ErrInvalidThreshold},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, testConfig())
			if _, err := h.controller.Start(context.Background(), tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if len(h.coordinator.started) != 0 {
				t.Fatalf("coordinator must not be called on invalid input")
			}
		})
	}
}

func TestSessionControllerStartUsesDefaultDuration(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	if _, err := h.controller.Start(context.Background(), domain.StartRequest{StudentID: "stu-1", VoiceThreshold: 0.4}); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if got := h.coordinator.lastStarted().StimulusSeconds; got != 30 {
		t.Fatalf("expected default duration 30, got %d", got)
	}
}

func TestSessionControllerRejectsSecondStart(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	if _, err := h.controller.Start(context.Background(), scenarioRequest()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := h.controller.Start(context.Background(), scenarioRequest()); !errors.Is(err, ErrSessionBusy) {
		t.Fatalf("expected ErrSessionBusy, got %v", err)
	}
}

func TestSessionControllerStopIsIdempotent(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	if _, err := h.controller.Start(context.Background(), scenarioRequest()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if err := h.controller.Stop(context.Background()); err != nil {
		t.Fatalf("first stop failed: %v", err)
	}
	first := h.controller.Status()
	if err := h.controller.Stop(context.Background()); err != nil {
		t.Fatalf("second stop failed: %v", err)
	}
	second := h.controller.Status()

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("second stop changed state (-first +second):\n%s", diff)
	}
	if second.State != domain.SessionStateIdle || second.Active {
		t.Fatalf("unexpected final status: %+v", second)
	}
	if ends := h.coordinator.ends(); ends != 1 {
		t.Fatalf("expected one end-session call, got %d", ends)
	}
	if len(h.media.snapshot("stop_audio")) == 0 || len(h.media.snapshot("pause_video")) == 0 {
		t.Fatalf("expected media handles to be released")
	}
	if stream := h.detector.latest(); stream == nil || stream.stopCalls == 0 {
		t.Fatalf("expected camera stream to be stopped")
	}
}

func TestSessionControllerStopWhileIdleIsNoop(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	if err := h.controller.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if ends := h.coordinator.ends(); ends != 0 {
		t.Fatalf("expected no end-session call, got %d", ends)
	}
}

func TestSessionControllerStopEndFailureStillTearsDown(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	h.coordinator.endErr = errBoom
	if _, err := h.controller.Start(context.Background(), scenarioRequest()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := h.controller.Stop(context.Background()); err != nil {
		t.Fatalf("stop should swallow end failures: %v", err)
	}
	if status := h.controller.Status(); status.State != domain.SessionStateIdle {
		t.Fatalf("expected idle after failed end request, got %+v", status)
	}
}

func TestSessionControllerStopWithoutRemoteNotify(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	if _, err := h.controller.Start(context.Background(), scenarioRequest()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := h.controller.Stop(context.Background(), WithoutRemoteNotify()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if ends := h.coordinator.ends(); ends != 0 {
		t.Fatalf("expected no end-session call, got %d", ends)
	}
}

func TestSessionControllerSessionCompleteStopsOnceWithoutNotify(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	h.instructions.script = []instructionReply{
		{instruction: domain.Instruction{Kind: domain.InstructionSessionComplete}},
		{instruction: domain.Instruction{Kind: domain.InstructionSessionComplete}},
	}

	if _, err := h.controller.Start(context.Background(), scenarioRequest()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return len(h.events.snapshotCompletes()) == 1 }, "completion callback")
	time.Sleep(10 * testConfig().PollInterval)

	if completes := h.events.snapshotCompletes(); len(completes) != 1 || completes[0] != "stu-1" {
		t.Fatalf("expected exactly one completion for stu-1, got %v", completes)
	}
	if ends := h.coordinator.ends(); ends != 0 {
		t.Fatalf("session_complete must not send end-session, got %d", ends)
	}
	if status := h.controller.Status(); status.State != domain.SessionStateIdle || status.Active {
		t.Fatalf("expected idle after completion, got %+v", status)
	}

	// A later user stop is a no-op and still does not notify.
	if err := h.controller.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if ends := h.coordinator.ends(); ends != 0 {
		t.Fatalf("expected no end-session after completion, got %d", ends)
	}
}

func TestSessionControllerCompletionWaitsForDelay(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.CompletionDelay = 150 * time.Millisecond
	h := newHarness(t, cfg)
	h.instructions.script = []instructionReply{{instruction: domain.Instruction{Kind: domain.InstructionSessionComplete}}}

	if _, err := h.controller.Start(context.Background(), scenarioRequest()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	waitFor(t, time.Second, func() bool { return h.controller.Status().State == domain.SessionStateIdle }, "idle after completion")
	if completes := h.events.snapshotCompletes(); len(completes) != 0 {
		t.Fatalf("completion fired before settle delay")
	}
	waitFor(t, time.Second, func() bool { return len(h.events.snapshotCompletes()) == 1 }, "delayed completion")
}

func TestSessionControllerNeverPollsWhileInactive(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	time.Sleep(5 * testConfig().PollInterval)
	if calls := h.instructions.callCount(); calls != 0 {
		t.Fatalf("expected no polls before start, got %d", calls)
	}

	if _, err := h.controller.Start(context.Background(), scenarioRequest()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	waitFor(t, time.Second, func() bool { return h.instructions.callCount() > 0 }, "first poll")

	if err := h.controller.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	after := h.instructions.callCount()
	time.Sleep(10 * testConfig().PollInterval)
	if calls := h.instructions.callCount(); calls != after {
		t.Fatalf("expected polling to halt after stop, got %d -> %d", after, calls)
	}
}

func TestSessionControllerFrameResultUpdatesLiveAttention(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	score := 0.82
	h.scorer.setResult(domain.FrameResult{SmoothedAttention: &score, Alert: true, AlertMessage: "look here"})

	if _, err := h.controller.Start(context.Background(), scenarioRequest()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	waitFor(t, time.Second, func() bool { return h.detector.latest() != nil }, "camera start")
	h.detector.latest().detections <- faceDetection(468)

	waitFor(t, time.Second, func() bool { return h.controller.Status().LiveAttention != nil }, "live attention")
	status := h.controller.Status()
	if *status.LiveAttention != 0.82 {
		t.Fatalf("unexpected attention: %v", *status.LiveAttention)
	}
	if status.LiveAttentionText != "82.0%" {
		t.Fatalf("unexpected attention text: %q", status.LiveAttentionText)
	}
	if status.State != domain.SessionStateActive {
		t.Fatalf("alerts must not change state, got %s", status.State)
	}

	sent := h.scorer.sent()
	if len(sent) != 1 || sent[0].StudentID != "stu-1" || len(sent[0].Landmarks) != 468 {
		t.Fatalf("unexpected forwarded samples: %d", len(sent))
	}
}

func TestSessionControllerStartResetsLiveAttention(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	score := 0.5
	h.scorer.setResult(domain.FrameResult{SmoothedAttention: &score})

	if _, err := h.controller.Start(context.Background(), scenarioRequest()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	waitFor(t, time.Second, func() bool { return h.detector.latest() != nil }, "camera start")
	h.detector.latest().detections <- faceDetection(4)
	waitFor(t, time.Second, func() bool { return h.controller.Status().LiveAttention != nil }, "first score")

	if err := h.controller.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	status, err := h.controller.Start(context.Background(), scenarioRequest())
	if err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	if status.LiveAttention != nil || status.LiveAttentionText != "" {
		t.Fatalf("expected live attention reset, got %+v", status)
	}
}

func TestSessionControllerFrameSendFailureKeepsSession(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	h.scorer.err = errBoom

	if _, err := h.controller.Start(context.Background(), scenarioRequest()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	waitFor(t, time.Second, func() bool { return h.detector.latest() != nil }, "camera start")
	h.detector.latest().detections <- faceDetection(4)
	waitFor(t, time.Second, func() bool { return len(h.scorer.sent()) == 1 }, "frame send")

	if status := h.controller.Status(); !status.Active {
		t.Fatalf("frame failures must not end the session: %+v", status)
	}
	if errs := h.events.snapshotErrors(); len(errs) != 0 {
		t.Fatalf("frame failures must not reach the user, got %+v", errs)
	}
}

func TestSessionControllerCameraFailureKeepsSessionActive(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	h.detector.err = errors.New("permission denied")

	if _, err := h.controller.Start(context.Background(), scenarioRequest()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	waitFor(t, time.Second, func() bool { return h.controller.Status().CaptureError != "" }, "capture error status")
	errs := h.events.snapshotErrors()
	if len(errs) != 1 || errs[0].code != domain.ErrorCodeCamera {
		t.Fatalf("expected camera error event, got %+v", errs)
	}
	if status := h.controller.Status(); !status.Active {
		t.Fatalf("camera failure must not end the session: %+v", status)
	}
	waitFor(t, time.Second, func() bool { return h.instructions.callCount() > 0 }, "polling continues")
}

func TestSessionControllerPlayStimulusInstruction(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	h.instructions.script = []instructionReply{{instruction: domain.Instruction{
		Kind:         domain.InstructionPlayStimulus,
		StimulusURL:  "/s/2.mp4",
		StimulusName: "Color Card",
		VoiceURL:     "/v/2.mp3",
	}}}

	if _, err := h.controller.Start(context.Background(), scenarioRequest()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	waitFor(t, time.Second, func() bool { return h.controller.Status().CurrentStimulus != nil }, "stimulus")

	status := h.controller.Status()
	want := &domain.Stimulus{URL: "http://api/s/2.mp4", Name: "Color Card"}
	if diff := cmp.Diff(want, status.CurrentStimulus); diff != "" {
		t.Fatalf("unexpected stimulus (-want +got):\n%s", diff)
	}
	if status.CurrentAction != "Playing stimulus" {
		t.Fatalf("unexpected action: %q", status.CurrentAction)
	}
	waitFor(t, time.Second, func() bool { return len(h.media.snapshot("play_audio")) == 1 }, "delayed voice")
}

func TestSessionControllerNoSessionInstructionSetsStatus(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	h.instructions.script = []instructionReply{{instruction: domain.Instruction{Kind: domain.InstructionNoSession}}}

	if _, err := h.controller.Start(context.Background(), scenarioRequest()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	waitFor(t, time.Second, func() bool { return h.controller.Status().Message == "No active session" }, "no_session status")
	if status := h.controller.Status(); !status.Active {
		t.Fatalf("no_session must not end the session")
	}
}

func TestSessionControllerStartRequestsFullscreen(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	window := &fakeTarget{name: "window"}
	h.media.targets = []ports.FullscreenTarget{&fakeTarget{name: "video", err: errBoom}, window}

	if _, err := h.controller.Start(context.Background(), scenarioRequest()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if window.callCount() != 1 {
		t.Fatalf("expected synchronous fullscreen fallback during start")
	}
}

func TestSessionControllerRequestFullscreenRequiresSession(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	if err := h.controller.RequestFullscreen(context.Background()); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
}

func TestSessionControllerIgnoresMediaEventsAfterStop(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	h.coordinator.result = domain.StartResult{Action: domain.InstructionPlayVoice, VoiceURL: "/v/1.mp3"}
	if _, err := h.controller.Start(context.Background(), scenarioRequest()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	handle := h.media.snapshot("play_audio")[0].handle

	if err := h.controller.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	h.controller.HandleMediaEvent(domain.MediaEvent{Media: domain.MediaAudio, Type: domain.MediaEnded, Handle: handle})

	if status := h.controller.Status(); status.Message != "" || status.CurrentAction != "" {
		t.Fatalf("expected cleared status after stop, got %+v", status)
	}
}

func TestSessionControllerStartResponseVoicePrecedesFirstPoll(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	h.coordinator.result = domain.StartResult{Action: domain.InstructionPlayVoice, VoiceURL: "/v/1.mp3"}
	h.instructions.script = []instructionReply{
		{instruction: domain.Instruction{Kind: domain.InstructionPlayStimulus, StimulusURL: "/s/2.mp4", StimulusName: "Color Card"}},
	}
	// Both page targets time out, several poll intervals each.
	h.media.targets = []ports.FullscreenTarget{
		&fakeTarget{name: "video", err: errBoom, delay: 40 * time.Millisecond},
		&fakeTarget{name: "container", err: errBoom, delay: 40 * time.Millisecond},
	}

	status, err := h.controller.Start(context.Background(), scenarioRequest())
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if status.CurrentAction != "Playing voice" {
		t.Fatalf("expected start response voice to be current, got %q", status.CurrentAction)
	}

	waitFor(t, time.Second, func() bool { return len(h.media.snapshot("play_video")) == 1 }, "stimulus from first poll")

	var plays []string
	for _, call := range h.media.snapshot("") {
		if call.op == "play_audio" || call.op == "play_video" {
			plays = append(plays, call.op+" "+call.url)
		}
	}
	want := []string{"play_audio http://api/v/1.mp3", "play_video http://api/s/2.mp4"}
	if diff := cmp.Diff(want, plays); diff != "" {
		t.Fatalf("instructions applied out of order (-want +got):\n%s", diff)
	}
	if got := h.controller.Status().CurrentAction; got != "Playing stimulus" {
		t.Fatalf("expected stimulus to be current, got %q", got)
	}
}

func TestSessionControllerStopDuringStartFullscreen(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	target := &fakeTarget{name: "video", gate: make(chan struct{})}
	h.media.targets = []ports.FullscreenTarget{target}

	started := make(chan error, 1)
	go func() {
		_, err := h.controller.Start(context.Background(), scenarioRequest())
		started <- err
	}()
	waitFor(t, time.Second, func() bool { return target.callCount() == 1 }, "fullscreen request")

	stopped := make(chan error, 1)
	go func() { stopped <- h.controller.Stop(context.Background()) }()
	waitFor(t, time.Second, func() bool { return h.coordinator.ends() == 1 }, "stop to begin")
	close(target.gate)

	if err := <-started; err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := <-stopped; err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	time.Sleep(5 * testConfig().PollInterval)
	if calls := h.instructions.callCount(); calls != 0 {
		t.Fatalf("expected no polls for a session stopped during start, got %d", calls)
	}
	if h.detector.latest() != nil {
		t.Fatalf("camera must not open for a session stopped during start")
	}
	if status := h.controller.Status(); status.State != domain.SessionStateIdle {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestSessionControllerResetsInstructionSourcePerSession(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	if _, err := h.controller.Start(context.Background(), scenarioRequest()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if got := h.instructions.resetCount(); got != 1 {
		t.Fatalf("expected reset on start, got %d", got)
	}
	if err := h.controller.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if got := h.instructions.resetCount(); got != 2 {
		t.Fatalf("expected reset on stop, got %d", got)
	}
	if _, err := h.controller.Start(context.Background(), scenarioRequest()); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	if got := h.instructions.resetCount(); got != 3 {
		t.Fatalf("expected reset on restart, got %d", got)
	}
}

// Not parallel: the attention gauge is process-wide.
func TestSessionControllerStaleFrameResultLeavesGauge(t *testing.T) {
	metrics.SetLiveAttention(0.25)

	h := newHarness(t, testConfig())
	score := 0.9
	h.controller.applyFrameResult("ended-session", domain.FrameResult{SmoothedAttention: &score})

	expected := `
# HELP gazecue_live_attention Most recent smoothed attention score (0-1)
# TYPE gazecue_live_attention gauge
gazecue_live_attention 0.25
`
	if err := testutil.GatherAndCompare(prometheus.DefaultGatherer, strings.NewReader(expected), "gazecue_live_attention"); err != nil {
		t.Fatalf("stale frame result moved the gauge: %v", err)
	}
}
