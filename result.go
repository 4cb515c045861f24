package vitpose

import (
	"encoding/json"
	"time"

	"github.com/swdee/go-vitpose/postprocess"
	"github.com/swdee/go-vitpose/render"
)

// Result holds the poses found in one image
type Result struct {
	// Width and Height of the source image
	Width  int
	Height int
	// Poses are ordered as the detector returned them
	Poses []postprocess.PoseResult
	// Skeleton names the keypoints of each pose
	Skeleton render.Skeleton
	// DetectTime, PoseTime and Elapsed are the stage timings
	DetectTime time.Duration
	PoseTime   time.Duration
	Elapsed    time.Duration
}

type jsonKeyPoint struct {
	Name  string  `json:"name"`
	X     float32 `json:"x"`
	Y     float32 `json:"y"`
	Score float32 `json:"score"`
}

type jsonInstance struct {
	ID    int64  `json:"id"`
	Class int    `json:"class"`
	Label string `json:"label,omitempty"`
	// Box is [x, y, width, height]
	Box       [4]float32     `json:"box"`
	Score     float32        `json:"score"`
	KeyPoints []jsonKeyPoint `json:"keypoints"`
}

type jsonResult struct {
	Width     int            `json:"width"`
	Height    int            `json:"height"`
	Skeleton  string         `json:"skeleton"`
	Instances []jsonInstance `json:"instances"`
	ElapsedMS float64        `json:"elapsed_ms"`
}

// JSON exports the result with keypoints named by the skeleton
func (r *Result) JSON() ([]byte, error) {

	out := jsonResult{
		Width:     r.Width,
		Height:    r.Height,
		Skeleton:  r.Skeleton.Name,
		Instances: make([]jsonInstance, len(r.Poses)),
		ElapsedMS: float64(r.Elapsed.Microseconds()) / 1000,
	}

	for i, p := range r.Poses {
		inst := jsonInstance{
			ID:        p.ID,
			Class:     p.Detection.Class,
			Label:     p.Detection.Label,
			Box:       [4]float32{p.Box.X, p.Box.Y, p.Box.Width, p.Box.Height},
			Score:     p.Detection.Probability,
			KeyPoints: make([]jsonKeyPoint, len(p.KeyPoints)),
		}

		for j, kp := range p.KeyPoints {
			inst.KeyPoints[j] = jsonKeyPoint{
				Name:  r.Skeleton.JointName(j),
				X:     kp.X,
				Y:     kp.Y,
				Score: kp.Score,
			}
		}

		out.Instances[i] = inst
	}

	return json.MarshalIndent(out, "", "  ")
}
