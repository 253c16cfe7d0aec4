package camera

import "gazecue/internal/domain"

// LandmarkMessage is one normalized landmark as produced by FaceMesh.
type LandmarkMessage struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// DetectionMessage is the wire form of one detector pass. The webview and
// external detector processes both emit it.
type DetectionMessage struct {
	ImageWidth  int                 `json:"image_w"`
	ImageHeight int                 `json:"image_h"`
	Faces       [][]LandmarkMessage `json:"faces"`
}

func (m DetectionMessage) Detection() domain.Detection {
	faces := make([][]domain.Landmark, 0, len(m.Faces))
	for _, face := range m.Faces {
		landmarks := make([]domain.Landmark, len(face))
		for i, lm := range face {
			landmarks[i] = domain.Landmark{X: lm.X, Y: lm.Y, Z: lm.Z}
		}
		faces = append(faces, landmarks)
	}
	return domain.Detection{
		ImageWidth:  m.ImageWidth,
		ImageHeight: m.ImageHeight,
		Faces:       faces,
	}
}

// publishLatest delivers detection on a one-slot channel, replacing an
// unread detection. Only one goroutine may publish to ch.
func publishLatest(ch chan domain.Detection, detection domain.Detection) {
	select {
	case ch <- detection:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- detection:
	default:
	}
}
