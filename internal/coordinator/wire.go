package coordinator

import (
	"fmt"
	"strings"

	"gazecue/internal/domain"
)

type startPayload struct {
	StudentID           string  `json:"student_id"`
	TotalTime           int     `json:"total_time"`
	VoiceOnLowAttention bool    `json:"voice_on_low_attention"`
	VoiceThreshold      float64 `json:"voice_threshold"`
}

type startResponse struct {
	Action   string `json:"action"`
	VoiceURL string `json:"voice_url"`
}

type endPayload struct {
	StudentID string `json:"student_id"`
}

type landmarkPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type framePayload struct {
	StudentID   string            `json:"student_id"`
	Timestamp   float64           `json:"ts"`
	ImageWidth  int               `json:"image_w"`
	ImageHeight int               `json:"image_h"`
	Landmarks   []landmarkPayload `json:"landmarks"`
}

type frameResponse struct {
	SmoothedAttention *float64 `json:"smoothed_attention"`
	Alert             bool     `json:"alert"`
	AlertMessage      string   `json:"alert_msg"`
}

// instructionPayload is shared by the poll endpoint and the push feed.
type instructionPayload struct {
	Status       string `json:"status"`
	Action       string `json:"action"`
	VoiceURL     string `json:"voice_url"`
	StimulusURL  string `json:"stimulus_url"`
	StimulusName string `json:"stimulus_name"`
}

func newFramePayload(sample domain.LandmarkSample) framePayload {
	landmarks := make([]landmarkPayload, len(sample.Landmarks))
	for i, lm := range sample.Landmarks {
		landmarks[i] = landmarkPayload{X: lm.X, Y: lm.Y, Z: lm.Z}
	}
	return framePayload{
		StudentID:   sample.StudentID,
		Timestamp:   sample.Timestamp,
		ImageWidth:  sample.ImageWidth,
		ImageHeight: sample.ImageHeight,
		Landmarks:   landmarks,
	}
}

func (p instructionPayload) instruction() (domain.Instruction, error) {
	switch strings.TrimSpace(p.Status) {
	case string(domain.InstructionWait):
		return domain.Instruction{Kind: domain.InstructionWait}, nil
	case string(domain.InstructionNoSession):
		return domain.Instruction{Kind: domain.InstructionNoSession}, nil
	}

	kind := domain.InstructionKind(strings.TrimSpace(p.Action))
	switch kind {
	case domain.InstructionPlayVoice, domain.InstructionPlayStimulus, domain.InstructionSessionComplete:
		return domain.Instruction{
			Kind:         kind,
			VoiceURL:     p.VoiceURL,
			StimulusURL:  p.StimulusURL,
			StimulusName: p.StimulusName,
		}, nil
	}
	return domain.Instruction{}, fmt.Errorf("%w: status=%q action=%q", ErrUnknownInstruction, p.Status, p.Action)
}
