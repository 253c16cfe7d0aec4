package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sample outcomes.
const (
	SampleEmitted    = "emitted"
	SampleNoFace     = "no_face"
	SampleThrottled  = "throttled"
	SampleSuperseded = "superseded"
)

// Poll outcomes.
const (
	PollInstruction = "instruction"
	PollWait        = "wait"
	PollNoSession   = "no_session"
	PollError       = "error"
)

// Session outcomes.
const (
	SessionStarted     = "started"
	SessionStartFailed = "start_failed"
	SessionStopped     = "stopped"
	SessionCompleted   = "completed"
)

var (
	samplesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gazecue_samples_total",
		Help: "Landmark detections by capture outcome",
	}, []string{"outcome"}) // outcome=emitted|no_face|throttled|superseded

	pollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gazecue_polls_total",
		Help: "Instruction polls by outcome",
	}, []string{"outcome"})

	instructionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gazecue_instructions_total",
		Help: "Instructions applied by the playback sequencer",
	}, []string{"kind"})

	framesSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gazecue_frames_sent_total",
		Help: "Landmark frames sent to the scorer by outcome",
	}, []string{"outcome"}) // outcome=ok|error

	sessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gazecue_sessions_total",
		Help: "Session lifecycle transitions by outcome",
	}, []string{"outcome"})

	fullscreenAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gazecue_fullscreen_attempts_total",
		Help: "Fullscreen requests by target and outcome",
	}, []string{"target", "outcome"}) // outcome=ok|error

	liveAttention = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gazecue_live_attention",
		Help: "Most recent smoothed attention score (0-1)",
	})

	sessionActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gazecue_session_active",
		Help: "Whether a session is active (1) or not (0)",
	})
)

// RecordSample counts one capture outcome.
func RecordSample(outcome string) {
	samplesTotal.WithLabelValues(outcome).Inc()
}

// RecordPoll counts one poll outcome.
func RecordPoll(outcome string) {
	pollsTotal.WithLabelValues(outcome).Inc()
}

// RecordInstruction counts an applied instruction kind.
func RecordInstruction(kind string) {
	instructionsTotal.WithLabelValues(kind).Inc()
}

// RecordFrameSend counts a scorer round-trip.
func RecordFrameSend(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	framesSentTotal.WithLabelValues(outcome).Inc()
}

// RecordSession counts a lifecycle outcome.
func RecordSession(outcome string) {
	sessionsTotal.WithLabelValues(outcome).Inc()
}

// RecordFullscreen counts one fullscreen attempt against a target.
func RecordFullscreen(target string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	fullscreenAttempts.WithLabelValues(target, outcome).Inc()
}

// SetLiveAttention publishes the latest attention score.
func SetLiveAttention(score float64) {
	liveAttention.Set(score)
}

// SetSessionActive flips the active gauge.
func SetSessionActive(active bool) {
	if active {
		sessionActive.Set(1)
		return
	}
	sessionActive.Set(0)
	liveAttention.Set(0)
}
