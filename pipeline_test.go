package vitpose

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/swdee/go-vitpose/postprocess"
	"github.com/swdee/go-vitpose/preprocess"
	"github.com/swdee/go-vitpose/render"
	"go.viam.com/test"
	"gocv.io/x/gocv"
)

type staticDetector struct {
	dets []postprocess.DetectResult
	err  error
}

func (d *staticDetector) Detect(ctx context.Context, img gocv.Mat) ([]postprocess.DetectResult, error) {
	return d.dets, d.err
}

// centerEstimator places every keypoint at the center of each crop
type centerEstimator struct {
	keyPoints int
	calls     int
	closed    bool
}

func (e *centerEstimator) Estimate(ctx context.Context, batch preprocess.Batch) ([][]postprocess.KeyPoint, error) {
	e.calls++

	out := make([][]postprocess.KeyPoint, batch.Len())

	for i, tr := range batch.Transforms {
		kps := make([]postprocess.KeyPoint, e.keyPoints)
		for j := range kps {
			kps[j] = postprocess.KeyPoint{X: tr.Center[0], Y: tr.Center[1], Score: 0.8}
		}
		out[i] = kps
	}

	return out, nil
}

func (e *centerEstimator) Close() error {
	e.closed = true
	return errors.New("close failed")
}

func testImage() gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 240, 320, gocv.MatTypeCV8UC3)
}

func TestPipelineRun(t *testing.T) {

	det := &staticDetector{dets: []postprocess.DetectResult{
		{ID: 1, Class: 0, Label: "person", Probability: 0.9,
			Box: postprocess.BoxRect{Left: 10, Top: 20, Right: 110, Bottom: 220}},
		{ID: 2, Class: 0, Label: "person", Probability: 0.7,
			Box: postprocess.BoxRect{Left: 200, Top: 40, Right: 260, Bottom: 200}},
	}}
	est := &centerEstimator{keyPoints: 17}

	p := NewPipeline(det, est)

	img := testImage()
	defer img.Close()

	res, err := p.Run(context.Background(), img)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Width, test.ShouldEqual, 320)
	test.That(t, res.Height, test.ShouldEqual, 240)
	test.That(t, res.Poses, test.ShouldHaveLength, 2)

	pose := res.Poses[0]
	test.That(t, pose.ID, test.ShouldEqual, int64(1))
	test.That(t, pose.Box, test.ShouldResemble, postprocess.BoxXYWH{X: 10, Y: 20, Width: 100, Height: 200})
	test.That(t, pose.KeyPoints[0].X, test.ShouldAlmostEqual, 60, 1e-3)
	test.That(t, pose.KeyPoints[0].Y, test.ShouldAlmostEqual, 120, 1e-3)

	before := img.ToBytes()
	p.Render(&img, res)
	test.That(t, string(img.ToBytes()) == string(before), test.ShouldBeFalse)
}

func TestPipelineNoDetections(t *testing.T) {

	est := &centerEstimator{keyPoints: 17}
	p := NewPipeline(&staticDetector{}, est)

	img := testImage()
	defer img.Close()

	res, err := p.Run(context.Background(), img)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Poses, test.ShouldBeEmpty)
	test.That(t, est.calls, test.ShouldEqual, 0)

	data, err := res.JSON()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(data), test.ShouldContainSubstring, `"instances": []`)
}

func TestPipelineSkipsEmptyBoxes(t *testing.T) {

	det := &staticDetector{dets: []postprocess.DetectResult{
		// clamped to the image corner, nothing left to crop
		{ID: 1, Class: 0, Probability: 0.9,
			Box: postprocess.BoxRect{Left: 320, Top: 240, Right: 320, Bottom: 240}},
		{ID: 2, Class: 0, Probability: 0.8,
			Box: postprocess.BoxRect{Left: 10, Top: 20, Right: 110, Bottom: 220}},
	}}
	est := &centerEstimator{keyPoints: 17}

	img := testImage()
	defer img.Close()

	res, err := NewPipeline(det, est).Run(context.Background(), img)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Poses, test.ShouldHaveLength, 1)
	test.That(t, res.Poses[0].ID, test.ShouldEqual, int64(2))

	// only empty boxes behaves like no detections
	det.dets = det.dets[:1]
	res, err = NewPipeline(det, est).Run(context.Background(), img)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Poses, test.ShouldBeEmpty)
	test.That(t, est.calls, test.ShouldEqual, 1)
}

func TestPipelineMissingStages(t *testing.T) {

	img := testImage()
	defer img.Close()

	_, err := NewPipeline(nil, &centerEstimator{}).Run(context.Background(), img)
	test.That(t, errors.Is(err, ErrNoDetector), test.ShouldBeTrue)

	_, err = NewPipeline(&staticDetector{}, nil).Run(context.Background(), img)
	test.That(t, errors.Is(err, ErrNoEstimator), test.ShouldBeTrue)
}

func TestPipelineDetectorError(t *testing.T) {

	img := testImage()
	defer img.Close()

	p := NewPipeline(&staticDetector{err: errors.New("server down")}, &centerEstimator{})

	_, err := p.Run(context.Background(), img)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "server down")
}

func TestPipelineSkeletonMismatch(t *testing.T) {

	det := &staticDetector{dets: []postprocess.DetectResult{
		{ID: 1, Box: postprocess.BoxRect{Left: 10, Top: 20, Right: 110, Bottom: 220}},
	}}

	p := NewPipeline(det, &centerEstimator{keyPoints: 5})

	img := testImage()
	defer img.Close()

	_, err := p.Run(context.Background(), img)
	test.That(t, errors.Is(err, postprocess.ErrKeyPointMismatch), test.ShouldBeTrue)
}

func TestPipelineClose(t *testing.T) {
	est := &centerEstimator{}
	err := NewPipeline(&staticDetector{}, est).Close()

	test.That(t, est.closed, test.ShouldBeTrue)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestResultJSON(t *testing.T) {

	skel, err := render.SkeletonFromConfig(render.SkeletonConfig{
		Name:   "pair",
		Joints: []string{"head", "tail"},
		Edges:  [][2]int{{0, 1}},
	})
	test.That(t, err, test.ShouldBeNil)

	res := &Result{
		Width:    64,
		Height:   48,
		Skeleton: skel,
		Poses: []postprocess.PoseResult{{
			ID:        3,
			Detection: postprocess.DetectResult{ID: 3, Label: "cat", Probability: 0.5},
			Box:       postprocess.BoxXYWH{X: 1, Y: 2, Width: 3, Height: 4},
			KeyPoints: []postprocess.KeyPoint{{X: 1, Y: 2, Score: 0.25}, {X: 3, Y: 4, Score: 1}},
		}},
	}

	data, err := res.JSON()
	test.That(t, err, test.ShouldBeNil)

	var out jsonResult
	test.That(t, json.Unmarshal(data, &out), test.ShouldBeNil)
	test.That(t, out.Skeleton, test.ShouldEqual, "pair")
	test.That(t, out.Instances, test.ShouldHaveLength, 1)
	test.That(t, out.Instances[0].Label, test.ShouldEqual, "cat")
	test.That(t, out.Instances[0].Box, test.ShouldResemble, [4]float32{1, 2, 3, 4})
	test.That(t, out.Instances[0].KeyPoints[1], test.ShouldResemble,
		jsonKeyPoint{Name: "tail", X: 3, Y: 4, Score: 1})
}
