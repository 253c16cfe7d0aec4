package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"gazecue/internal/domain"
	"gazecue/internal/log"
	"gazecue/internal/metrics"
	"gazecue/internal/ports"
)

var (
	ErrNoActiveSession  = errors.New("no active session")
	ErrSessionBusy      = errors.New("a session is already starting or active")
	ErrMissingStudent   = errors.New("student id is required")
	ErrInvalidDuration  = errors.New("stimulus duration must be at least 5 seconds")
	ErrInvalidThreshold = errors.New("voice threshold must be between 0 and 1")
)

const minStimulusSeconds = 5

// Config controls session timing and capture behaviour.
type Config struct {
	Camera ports.CameraConfig

	PollInterval     time.Duration
	SampleInterval   time.Duration
	VoiceDelay       time.Duration
	FullscreenSettle time.Duration
	CompletionDelay  time.Duration

	// Defaults seeds inputs the caller leaves unset.
	Defaults domain.SessionConfig

	// ResolveMediaURL turns coordinator-relative media paths into playable URLs.
	ResolveMediaURL func(string) string
	Now             func() time.Time
	Logger          zerolog.Logger
}

func (cfg Config) withDefaults() Config {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 700 * time.Millisecond
	}
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = 120 * time.Millisecond
	}
	if cfg.VoiceDelay <= 0 {
		cfg.VoiceDelay = 500 * time.Millisecond
	}
	if cfg.FullscreenSettle <= 0 {
		cfg.FullscreenSettle = 500 * time.Millisecond
	}
	if cfg.CompletionDelay <= 0 {
		cfg.CompletionDelay = time.Second
	}
	if cfg.Defaults.StimulusSeconds <= 0 {
		cfg.Defaults.StimulusSeconds = 30
	}
	if cfg.ResolveMediaURL == nil {
		cfg.ResolveMediaURL = func(url string) string { return url }
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return cfg
}

// StopOption adjusts how a session is stopped.
type StopOption func(*stopOptions)

type stopOptions struct {
	notifyRemote bool
}

// WithoutRemoteNotify skips the end-session request, for sessions the
// coordinator has already finalized.
func WithoutRemoteNotify() StopOption {
	return func(o *stopOptions) { o.notifyRemote = false }
}

// SessionController owns the session lifecycle and is the only writer of
// session state. States run Idle -> Starting -> Active -> Stopping -> Idle.
type SessionController struct {
	coordinator  ports.SessionCoordinator
	instructions ports.InstructionSource
	scorer       ports.FrameScorer
	detector     ports.FaceDetector
	events       ports.EventSink
	sequencer    *playbackSequencer
	completion   completionNotifier
	cfg          Config
	logger       zerolog.Logger

	fullscreenGate *semaphore.Weighted

	mu      sync.Mutex
	state   domain.SessionState
	current *activeSession

	workers sync.WaitGroup
}

// NewSessionController wires the controller. EventSink implementations must
// not call back into the controller.
func NewSessionController(
	coordinator ports.SessionCoordinator,
	instructions ports.InstructionSource,
	scorer ports.FrameScorer,
	detector ports.FaceDetector,
	media ports.MediaSurface,
	events ports.EventSink,
	cfg Config,
) *SessionController {
	cfg = cfg.withDefaults()
	logger := cfg.Logger.With().Str(log.FieldComponent, "session").Logger()

	c := &SessionController{
		coordinator:    coordinator,
		instructions:   instructions,
		scorer:         scorer,
		detector:       detector,
		events:         events,
		cfg:            cfg,
		logger:         logger,
		fullscreenGate: semaphore.NewWeighted(1),
		state:          domain.SessionStateIdle,
	}
	c.completion = newCompletionNotifier(events, cfg.CompletionDelay, &c.workers)
	c.sequencer = &playbackSequencer{
		media:      media,
		writer:     c,
		resolve:    cfg.ResolveMediaURL,
		voiceDelay: cfg.VoiceDelay,
		settle:     cfg.FullscreenSettle,
		logger:     cfg.Logger.With().Str(log.FieldComponent, "playback").Logger(),
	}
	return c
}

// Start begins a session. On failure the controller stays Idle.
func (c *SessionController) Start(ctx context.Context, req domain.StartRequest) (domain.Status, error) {
	sessionCfg, err := c.sessionConfig(req)
	if err != nil {
		return c.Status(), err
	}

	c.mu.Lock()
	if c.state != domain.SessionStateIdle {
		c.mu.Unlock()
		return c.Status(), ErrSessionBusy
	}
	c.transitionLocked(domain.SessionStateStarting)
	c.mu.Unlock()

	result, err := c.coordinator.StartSession(ctx, sessionCfg)
	if err != nil {
		c.mu.Lock()
		c.transitionLocked(domain.SessionStateIdle)
		c.mu.Unlock()
		metrics.RecordSession(metrics.SessionStartFailed)
		c.logger.Error().Err(err).Str(log.FieldStudentID, sessionCfg.StudentID).Msg("start session failed")
		c.events.SessionError(domain.ErrorCodeStart, err.Error())
		return c.Status(), fmt.Errorf("start session: %w", err)
	}

	active := newActiveSession(ctx, uuid.NewString(), sessionCfg)

	c.mu.Lock()
	c.current = active
	c.transitionLocked(domain.SessionStateActive)
	c.mu.Unlock()
	metrics.RecordSession(metrics.SessionStarted)
	metrics.SetSessionActive(true)

	c.sequencer.begin(active.id)
	c.resetInstructions()

	// Fullscreen is requested before returning so it stays tied to the
	// user action that started the session.
	c.sequencer.enterFullscreen(ctx)

	// The start response is the first instruction; polling begins after it.
	if result.Action == domain.InstructionPlayVoice {
		c.sequencer.apply(domain.Instruction{Kind: domain.InstructionPlayVoice, VoiceURL: result.VoiceURL})
	}

	if !c.isActive(active.id) {
		// Stopped while fullscreen was pending.
		close(active.done)
		return c.Status(), nil
	}
	c.launchWorkers(active)
	return c.Status(), nil
}

// Stop ends the active session. It is a no-op unless a session is Active.
func (c *SessionController) Stop(ctx context.Context, opts ...StopOption) error {
	options := stopOptions{notifyRemote: true}
	for _, opt := range opts {
		opt(&options)
	}

	c.mu.Lock()
	active := c.current
	c.mu.Unlock()
	if active == nil {
		return nil
	}

	c.stopSession(ctx, active, options.notifyRemote, true)
	return nil
}

// Close stops any session and waits for background work to finish.
func (c *SessionController) Close(ctx context.Context) error {
	err := c.Stop(ctx)
	c.Wait()
	return err
}

// Wait blocks until session workers and pending notifications have finished.
func (c *SessionController) Wait() {
	c.workers.Wait()
}

// Status returns the current session snapshot.
func (c *SessionController) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// HandleMediaEvent routes a media element lifecycle event to playback.
func (c *SessionController) HandleMediaEvent(event domain.MediaEvent) {
	c.sequencer.handleMediaEvent(event)
}

// RequestFullscreen retries fullscreen for the active session. Concurrent
// requests collapse into the one already running.
func (c *SessionController) RequestFullscreen(ctx context.Context) error {
	if !c.isActive("") {
		return ErrNoActiveSession
	}
	if !c.fullscreenGate.TryAcquire(1) {
		return nil
	}
	defer c.fullscreenGate.Release(1)
	c.sequencer.enterFullscreen(ctx)
	return nil
}

func (c *SessionController) sessionConfig(req domain.StartRequest) (domain.SessionConfig, error) {
	studentID := strings.TrimSpace(req.StudentID)
	if studentID == "" {
		return domain.SessionConfig{}, ErrMissingStudent
	}

	seconds := req.StimulusSeconds
	if seconds == 0 {
		seconds = c.cfg.Defaults.StimulusSeconds
	}
	if seconds < minStimulusSeconds {
		return domain.SessionConfig{}, ErrInvalidDuration
	}

	threshold := req.VoiceThreshold
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return domain.SessionConfig{}, ErrInvalidThreshold
	}

	return domain.SessionConfig{
		StudentID:       studentID,
		StimulusSeconds: seconds,
		VoiceOnLow:      req.VoiceOnLow,
		VoiceThreshold:  threshold,
	}, nil
}

func (c *SessionController) launchWorkers(active *activeSession) {
	studentID := active.config.StudentID
	logger := c.logger.With().
		Str(log.FieldSessionID, active.id).
		Str(log.FieldStudentID, studentID).
		Logger()

	group, groupCtx := errgroup.WithContext(active.ctx)
	box := newSampleMailbox()
	live := func() bool { return c.isActive(active.id) }

	capture := newLandmarkCapture(c.detector, c.cfg.Camera, c.cfg.SampleInterval, c.cfg.Now, logger)
	relay := &frameRelay{scorer: c.scorer, logger: logger}
	poller := &instructionPoller{source: c.instructions, interval: c.cfg.PollInterval, logger: logger}

	group.Go(func() error {
		err := capture.run(groupCtx, studentID, func(sample domain.LandmarkSample) {
			if live() {
				box.offer(sample)
			}
		})
		if err != nil {
			c.captureFailed(active.id, err)
		}
		return nil
	})
	group.Go(func() error {
		relay.run(groupCtx, box, func(result domain.FrameResult) {
			c.applyFrameResult(active.id, result)
		})
		return nil
	})
	group.Go(func() error {
		poller.run(groupCtx, studentID, live, func(instruction domain.Instruction) {
			c.sequencer.apply(instruction)
		})
		return nil
	})

	c.workers.Add(1)
	go func() {
		defer c.workers.Done()
		_ = group.Wait()
		close(active.done)
	}()
}

// stopSession tears down active and reports whether this call did so. wait
// must be false when called from one of the session's own workers.
func (c *SessionController) stopSession(ctx context.Context, active *activeSession, notifyRemote bool, wait bool) bool {
	c.mu.Lock()
	if c.current != active || c.state != domain.SessionStateActive {
		c.mu.Unlock()
		return false
	}
	c.transitionLocked(domain.SessionStateStopping)
	c.mu.Unlock()

	if notifyRemote {
		if err := c.coordinator.EndSession(ctx, active.config.StudentID); err != nil {
			c.logger.Warn().Err(err).Str(log.FieldStudentID, active.config.StudentID).Msg("end session request failed")
		}
	}

	active.cancel()
	c.sequencer.reset()
	c.resetInstructions()

	c.mu.Lock()
	c.current = nil
	c.transitionLocked(domain.SessionStateIdle)
	c.mu.Unlock()
	metrics.RecordSession(metrics.SessionStopped)
	metrics.SetSessionActive(false)

	if wait {
		<-active.done
	}
	return true
}

func (c *SessionController) completeFromRemote(sessionID string) {
	c.mu.Lock()
	active := c.current
	c.mu.Unlock()
	if active == nil || active.id != sessionID {
		return
	}

	active.completeOnce.Do(func() {
		if !c.stopSession(context.Background(), active, false, false) {
			return
		}
		metrics.RecordSession(metrics.SessionCompleted)
		c.completion.Notify(active.config.StudentID)
	})
}

func (c *SessionController) applyFrameResult(sessionID string, result domain.FrameResult) {
	if result.SmoothedAttention == nil {
		return
	}
	score := *result.SmoothedAttention
	c.update(sessionID, func(s *activeSession) {
		s.liveAttention = &score
		metrics.SetLiveAttention(score)
	})
}

// resetInstructions drops anything a buffering instruction source still
// holds from an earlier session.
func (c *SessionController) resetInstructions() {
	if scoped, ok := c.instructions.(ports.SessionScopedSource); ok {
		scoped.ResetSession()
	}
}

func (c *SessionController) captureFailed(sessionID string, err error) {
	if !c.isActive(sessionID) {
		return
	}
	c.logger.Error().Err(err).Str(log.FieldSessionID, sessionID).Msg("landmark capture stopped")
	c.update(sessionID, func(s *activeSession) {
		s.captureErr = "Failed to access camera. Please grant camera permissions."
	})
	c.events.SessionError(domain.ErrorCodeCamera, err.Error())
}

func (c *SessionController) setAction(sessionID string, action string) {
	c.update(sessionID, func(s *activeSession) { s.currentAction = action })
}

func (c *SessionController) setMessage(sessionID string, message string) {
	c.update(sessionID, func(s *activeSession) { s.message = message })
}

func (c *SessionController) setStimulus(sessionID string, stimulus *domain.Stimulus) {
	c.update(sessionID, func(s *activeSession) { s.stimulus = stimulus })
}

func (c *SessionController) update(sessionID string, mutate func(*activeSession)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || c.current.id != sessionID || c.state != domain.SessionStateActive {
		return
	}
	mutate(c.current)
	c.events.StatusChanged(c.statusLocked())
}

// isActive reports whether sessionID is the active session. An empty id
// matches any active session.
func (c *SessionController) isActive(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || c.state != domain.SessionStateActive {
		return false
	}
	return sessionID == "" || c.current.id == sessionID
}

func (c *SessionController) transitionLocked(next domain.SessionState) {
	previous := c.state
	c.state = next
	c.logger.Info().
		Str(log.FieldOldState, string(previous)).
		Str(log.FieldNewState, string(next)).
		Msg("session state changed")
	c.events.StatusChanged(c.statusLocked())
}

func (c *SessionController) statusLocked() domain.Status {
	if c.current == nil {
		return domain.Status{State: c.state, Active: false}
	}
	return c.current.status(c.state)
}
