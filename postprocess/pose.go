package postprocess

import (
	"github.com/pkg/errors"
)

// ErrKeyPointMismatch is returned when a pose model emits a different number
// of keypoints than the skeleton expects
var ErrKeyPointMismatch = errors.New("keypoint count does not match skeleton")

// KeyPoint is a single pose joint location in source image pixels
type KeyPoint struct {
	X     float32
	Y     float32
	Score float32
}

// PoseResult associates one detected instance with its ordered keypoints.
// Keypoint order follows the joint order of the skeleton the model was
// trained on.
type PoseResult struct {
	// ID is the detection ID the pose was estimated for
	ID int64
	// Detection is the detector output for the instance
	Detection DetectResult
	// Box is the detection box in origin plus size form, as fed to the pose
	// image processor
	Box BoxXYWH
	// KeyPoints are the pose joints in source image coordinates
	KeyPoints []KeyPoint
}

// Scores returns the per keypoint confidence scores
func (p PoseResult) Scores() []float32 {

	scores := make([]float32, len(p.KeyPoints))

	for i, kp := range p.KeyPoints {
		scores[i] = kp.Score
	}

	return scores
}

// PointMapper maps a point in pose model input space back onto the source
// image
type PointMapper interface {
	InverseMap(x, y float32) (float32, float32)
}

// PoseParams configures decoding of pose model output
type PoseParams struct {
	// KeyPointsNumber is the number of joints per instance the skeleton
	// expects, eg: 17 for COCO
	KeyPointsNumber int
	// Normalized indicates keypoint coordinates are fractions of the model
	// input dimensions rather than pixels
	Normalized bool
	// InputWidth and InputHeight are the pose model input dimensions
	InputWidth  int
	InputHeight int
}

// COCOPoseParams returns PoseParams for a 17 keypoint COCO model with a
// 192x256 input
func COCOPoseParams() PoseParams {
	return PoseParams{
		KeyPointsNumber: 17,
		InputWidth:      192,
		InputHeight:     256,
	}
}

// DecodeKeyPoints takes a [N,K,3] tensor of (x, y, score) in model input space
// and maps each instance through its crop transform into source image space
func DecodeKeyPoints(data []float32, shape []int64, mappers []PointMapper,
	p PoseParams) ([][]KeyPoint, error) {

	if len(shape) != 3 || shape[2] != 3 {
		return nil, errors.Errorf("keypoint tensor shape %v is not [N,K,3]", shape)
	}

	n, k := int(shape[0]), int(shape[1])

	if k != p.KeyPointsNumber {
		return nil, errors.Wrapf(ErrKeyPointMismatch, "model returned %d, expected %d",
			k, p.KeyPointsNumber)
	}

	if n != len(mappers) {
		return nil, errors.Errorf("model returned %d instances for %d crops", n, len(mappers))
	}

	if len(data) != n*k*3 {
		return nil, errors.Errorf("keypoint data length %d does not match shape %v",
			len(data), shape)
	}

	all := make([][]KeyPoint, n)

	for i := 0; i < n; i++ {

		kps := make([]KeyPoint, k)

		for j := 0; j < k; j++ {
			off := (i*k + j) * 3
			x, y := data[off], data[off+1]

			if p.Normalized {
				x *= float32(p.InputWidth)
				y *= float32(p.InputHeight)
			}

			x, y = mappers[i].InverseMap(x, y)

			kps[j] = KeyPoint{X: x, Y: y, Score: data[off+2]}
		}

		all[i] = kps
	}

	return all, nil
}

// BuildPoseResults zips detections with their decoded keypoints
func BuildPoseResults(dets []DetectResult, keyPoints [][]KeyPoint) ([]PoseResult, error) {

	if len(dets) != len(keyPoints) {
		return nil, errors.Errorf("%d detections but %d keypoint sets",
			len(dets), len(keyPoints))
	}

	poses := make([]PoseResult, len(dets))

	for i, det := range dets {
		poses[i] = PoseResult{
			ID:        det.ID,
			Detection: det,
			Box:       det.Box.XYWH(),
			KeyPoints: keyPoints[i],
		}
	}

	return poses, nil
}
