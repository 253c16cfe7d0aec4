package domain

import "fmt"

// SessionState models the attention-session lifecycle.
type SessionState string

const (
	SessionStateIdle     SessionState = "idle"
	SessionStateStarting SessionState = "starting"
	SessionStateActive   SessionState = "active"
	SessionStateStopping SessionState = "stopping"
)

// ErrorCode identifies non-fatal and fatal backend errors surfaced to the UI.
type ErrorCode string

const (
	ErrorCodeStartup ErrorCode = "startup"
	ErrorCodeStart   ErrorCode = "session_start"
	ErrorCodeCamera  ErrorCode = "camera"
)

// SessionConfig is fixed when a session starts.
type SessionConfig struct {
	StudentID       string  `json:"studentId"`
	StimulusSeconds int     `json:"stimulusSeconds"`
	VoiceOnLow      bool    `json:"voiceOnLowAttention"`
	VoiceThreshold  float64 `json:"voiceThreshold"`
}

// StartRequest carries the user's inputs for a new session.
type StartRequest = SessionConfig

// StartResult is the coordinator's answer to a start request.
type StartResult struct {
	Action   InstructionKind `json:"action,omitempty"`
	VoiceURL string          `json:"voiceUrl,omitempty"`
}

// Landmark is one normalized face-mesh point.
type Landmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Detection is one detector result for a camera frame.
type Detection struct {
	ImageWidth  int          `json:"imageWidth"`
	ImageHeight int          `json:"imageHeight"`
	Faces       [][]Landmark `json:"faces"`
}

// LandmarkSample is a throttled, single-face snapshot ready for the scorer.
type LandmarkSample struct {
	StudentID   string     `json:"studentId"`
	Timestamp   float64    `json:"timestamp"`
	ImageWidth  int        `json:"imageWidth"`
	ImageHeight int        `json:"imageHeight"`
	Landmarks   []Landmark `json:"landmarks"`
}

// FrameResult is the scorer's response to one landmark sample.
type FrameResult struct {
	SmoothedAttention *float64 `json:"smoothedAttention,omitempty"`
	Alert             bool     `json:"alert"`
	AlertMessage      string   `json:"alertMessage,omitempty"`
}

// InstructionKind enumerates coordinator directives.
type InstructionKind string

const (
	InstructionWait            InstructionKind = "wait"
	InstructionNoSession       InstructionKind = "no_session"
	InstructionPlayVoice       InstructionKind = "play_voice"
	InstructionPlayStimulus    InstructionKind = "play_stimulus"
	InstructionSessionComplete InstructionKind = "session_complete"
)

// Instruction is one coordinator directive for the presentation layer.
type Instruction struct {
	Kind         InstructionKind `json:"kind"`
	VoiceURL     string          `json:"voiceUrl,omitempty"`
	StimulusURL  string          `json:"stimulusUrl,omitempty"`
	StimulusName string          `json:"stimulusName,omitempty"`
}

// Stimulus is the video currently presented.
type Stimulus struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// MediaKind identifies which media element emitted an event.
type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

// MediaEventType enumerates media element lifecycle events.
type MediaEventType string

const (
	MediaPlaying        MediaEventType = "playing"
	MediaEnded          MediaEventType = "ended"
	MediaError          MediaEventType = "error"
	MediaLoadedMetadata MediaEventType = "loadedmetadata"
)

// MediaEvent is reported by the presentation surface for a playback handle.
type MediaEvent struct {
	Media  MediaKind      `json:"media"`
	Type   MediaEventType `json:"type"`
	Handle uint64         `json:"handle"`
	Detail string         `json:"detail,omitempty"`
}

// Status summarizes the current session for the UI.
type Status struct {
	State             SessionState `json:"state"`
	Active            bool         `json:"active"`
	StudentID         string       `json:"studentId,omitempty"`
	SessionID         string       `json:"sessionId,omitempty"`
	CurrentAction     string       `json:"currentAction,omitempty"`
	Message           string       `json:"message,omitempty"`
	LiveAttention     *float64     `json:"liveAttention,omitempty"`
	LiveAttentionText string       `json:"liveAttentionText,omitempty"`
	CurrentStimulus   *Stimulus    `json:"currentStimulus,omitempty"`
	CaptureError      string       `json:"captureError,omitempty"`
}

// FormatAttention renders a 0-1 score as a percentage with one decimal.
func FormatAttention(score float64) string {
	return fmt.Sprintf("%.1f%%", score*100)
}
