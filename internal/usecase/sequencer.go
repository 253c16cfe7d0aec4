package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"gazecue/internal/domain"
	"gazecue/internal/log"
	"gazecue/internal/metrics"
	"gazecue/internal/ports"
)

// Current-action labels and status lines shown to the operator.
const (
	actionPlayingVoice    = "Playing voice"
	actionPlayingStimulus = "Playing stimulus"
	actionSessionComplete = "Session complete"

	messageVoicePrompt     = "Playing voice prompt..."
	messageVoiceFinished   = "Voice finished, waiting for stimulus..."
	messageSessionComplete = "Session completed!"
	messageNoSession       = "No active session"
)

// sessionWriter is the narrow set of mutations the sequencer may request.
// Calls for a session that is no longer active are ignored.
type sessionWriter interface {
	setAction(sessionID string, action string)
	setMessage(sessionID string, message string)
	setStimulus(sessionID string, stimulus *domain.Stimulus)
	completeFromRemote(sessionID string)
}

// playbackSequencer realizes instructions on the media surface. It owns the
// single audio element and the single video element.
type playbackSequencer struct {
	media      ports.MediaSurface
	writer     sessionWriter
	resolve    func(string) string
	voiceDelay time.Duration
	settle     time.Duration
	logger     zerolog.Logger

	mu          sync.Mutex
	sessionID   string
	lastHandle  uint64
	audioHandle uint64
	videoHandle uint64

	// awaitingPlaying is the video handle whose first "playing" event still
	// has to schedule fullscreen.
	awaitingPlaying uint64

	voiceTimer      *time.Timer
	voiceSeq        uint64
	fullscreenTimer *time.Timer
	fullscreenSeq   uint64
}

func (s *playbackSequencer) begin(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelTimersLocked()
	s.sessionID = sessionID
	s.audioHandle = 0
	s.videoHandle = 0
	s.awaitingPlaying = 0
}

// reset stops all media and pending timers. Safe to call when idle.
func (s *playbackSequencer) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelTimersLocked()
	s.media.StopAudio()
	s.media.PauseVideo()
	s.sessionID = ""
	s.audioHandle = 0
	s.videoHandle = 0
	s.awaitingPlaying = 0
}

func (s *playbackSequencer) apply(instruction domain.Instruction) {
	s.mu.Lock()
	sessionID := s.sessionID
	if sessionID == "" {
		s.mu.Unlock()
		return
	}
	metrics.RecordInstruction(string(instruction.Kind))
	s.logger.Info().
		Str(log.FieldInstruction, string(instruction.Kind)).
		Str(log.FieldSessionID, sessionID).
		Msg("applying instruction")

	switch instruction.Kind {
	case domain.InstructionPlayVoice:
		s.writer.setAction(sessionID, actionPlayingVoice)
		s.writer.setMessage(sessionID, messageVoicePrompt)
		if instruction.VoiceURL != "" {
			s.cancelVoiceTimerLocked()
			s.playVoiceLocked(instruction.VoiceURL)
		}
	case domain.InstructionPlayStimulus:
		s.writer.setAction(sessionID, actionPlayingStimulus)
		s.cancelVoiceTimerLocked()
		s.playVideoLocked(instruction.StimulusURL, instruction.StimulusName)
		if instruction.VoiceURL != "" {
			s.scheduleVoiceLocked(instruction.VoiceURL)
		}
	case domain.InstructionSessionComplete:
		s.writer.setAction(sessionID, actionSessionComplete)
		s.writer.setMessage(sessionID, messageSessionComplete)
		s.mu.Unlock()
		s.writer.completeFromRemote(sessionID)
		return
	case domain.InstructionNoSession:
		s.writer.setMessage(sessionID, messageNoSession)
	case domain.InstructionWait:
	default:
		s.logger.Warn().Str(log.FieldInstruction, string(instruction.Kind)).Msg("ignoring unknown instruction")
	}
	s.mu.Unlock()
}

func (s *playbackSequencer) handleMediaEvent(event domain.MediaEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessionID := s.sessionID
	if sessionID == "" || event.Handle == 0 {
		return
	}

	switch event.Media {
	case domain.MediaAudio:
		if event.Handle != s.audioHandle {
			return
		}
		switch event.Type {
		case domain.MediaEnded:
			s.writer.setMessage(sessionID, messageVoiceFinished)
		case domain.MediaError:
			s.logger.Warn().Uint64(log.FieldHandle, event.Handle).Str("detail", event.Detail).Msg("voice playback error")
			s.writer.setMessage(sessionID, "Error playing voice: "+event.Detail)
		}
	case domain.MediaVideo:
		if event.Handle != s.videoHandle {
			return
		}
		switch event.Type {
		case domain.MediaPlaying:
			if s.awaitingPlaying == event.Handle {
				s.awaitingPlaying = 0
				s.scheduleFullscreenLocked()
			}
		case domain.MediaError:
			s.logger.Warn().Uint64(log.FieldHandle, event.Handle).Str("detail", event.Detail).Msg("video playback error")
			s.writer.setMessage(sessionID, "Error loading video: "+event.Detail)
		case domain.MediaLoadedMetadata:
			s.logger.Debug().Uint64(log.FieldHandle, event.Handle).Msg("video metadata loaded")
		case domain.MediaEnded:
			s.logger.Debug().Uint64(log.FieldHandle, event.Handle).Msg("video ended")
		}
	}
}

// enterFullscreen runs the target fallback walk outside the sequencer lock.
func (s *playbackSequencer) enterFullscreen(ctx context.Context) bool {
	return enterFullscreen(ctx, s.media.FullscreenTargets(), s.logger)
}

func (s *playbackSequencer) playVoiceLocked(url string) {
	if s.audioHandle != 0 {
		s.media.StopAudio()
	}
	handle := s.nextHandleLocked()
	s.audioHandle = handle

	full := s.resolve(url)
	s.logger.Debug().Uint64(log.FieldHandle, handle).Str(log.FieldURL, full).Msg("starting voice")
	if err := s.media.PlayAudio(handle, full); err != nil {
		s.logger.Warn().Err(err).Str(log.FieldURL, full).Msg("voice play failed")
		s.writer.setMessage(s.sessionID, fmt.Sprintf("Error playing voice: %v", err))
	}
}

func (s *playbackSequencer) playVideoLocked(url string, name string) {
	full := s.resolve(url)
	s.writer.setStimulus(s.sessionID, &domain.Stimulus{URL: full, Name: name})
	s.writer.setMessage(s.sessionID, "Playing stimulus: "+name)

	s.cancelFullscreenTimerLocked()
	handle := s.nextHandleLocked()
	s.videoHandle = handle
	s.awaitingPlaying = handle

	s.logger.Debug().Uint64(log.FieldHandle, handle).Str(log.FieldURL, full).Msg("starting stimulus")
	if err := s.media.PlayVideo(handle, full); err != nil {
		s.logger.Warn().Err(err).Str(log.FieldURL, full).Msg("video play failed")
		s.writer.setMessage(s.sessionID, fmt.Sprintf("Error playing video: %v", err))
	}
}

func (s *playbackSequencer) scheduleVoiceLocked(url string) {
	s.voiceSeq++
	seq := s.voiceSeq
	sessionID := s.sessionID
	s.voiceTimer = time.AfterFunc(s.voiceDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.sessionID != sessionID || s.voiceSeq != seq {
			return
		}
		s.voiceTimer = nil
		s.playVoiceLocked(url)
	})
}

func (s *playbackSequencer) scheduleFullscreenLocked() {
	s.fullscreenSeq++
	seq := s.fullscreenSeq
	sessionID := s.sessionID
	s.fullscreenTimer = time.AfterFunc(s.settle, func() {
		s.mu.Lock()
		current := s.sessionID == sessionID && s.fullscreenSeq == seq
		if current {
			s.fullscreenTimer = nil
		}
		s.mu.Unlock()
		if current {
			s.enterFullscreen(context.Background())
		}
	})
}

func (s *playbackSequencer) cancelVoiceTimerLocked() {
	s.voiceSeq++
	if s.voiceTimer != nil {
		s.voiceTimer.Stop()
		s.voiceTimer = nil
	}
}

func (s *playbackSequencer) cancelFullscreenTimerLocked() {
	s.fullscreenSeq++
	if s.fullscreenTimer != nil {
		s.fullscreenTimer.Stop()
		s.fullscreenTimer = nil
	}
}

func (s *playbackSequencer) cancelTimersLocked() {
	s.cancelVoiceTimerLocked()
	s.cancelFullscreenTimerLocked()
}

func (s *playbackSequencer) nextHandleLocked() uint64 {
	s.lastHandle++
	return s.lastHandle
}
