package vitpose

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/swdee/go-vitpose/postprocess"
	"github.com/swdee/go-vitpose/preprocess"
	"github.com/swdee/go-vitpose/render"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// Pipeline chains detection, cropping, pose estimation and keypoint mapping
// for single images.  It holds no per image state so may be shared between
// goroutines when its Detector and Estimator can.
type Pipeline struct {
	detector   Detector
	estimator  Estimator
	processor  *preprocess.Processor
	skeleton   render.Skeleton
	style      render.PoseStyle
	classNames []string
	logger     *zap.SugaredLogger
}

// PipelineOption configures a Pipeline
type PipelineOption func(*Pipeline)

// WithProcessor sets the pose image processor, it must match the pose model
// input
func WithProcessor(p *preprocess.Processor) PipelineOption {
	return func(pl *Pipeline) {
		pl.processor = p
	}
}

// WithSkeleton sets the skeleton results are named and drawn with
func WithSkeleton(s render.Skeleton) PipelineOption {
	return func(pl *Pipeline) {
		pl.skeleton = s
	}
}

// WithStyle sets the drawing style used by Render
func WithStyle(s render.PoseStyle) PipelineOption {
	return func(pl *Pipeline) {
		pl.style = s
	}
}

// WithClassNames sets the class names used for box labels of detections that
// carry no label
func WithClassNames(names []string) PipelineOption {
	return func(pl *Pipeline) {
		pl.classNames = names
	}
}

// WithPipelineLogger sets the logger
func WithPipelineLogger(l *zap.SugaredLogger) PipelineOption {
	return func(pl *Pipeline) {
		pl.logger = l
	}
}

// NewPipeline returns a pipeline using the COCO17 skeleton, default style and
// default processor unless overridden
func NewPipeline(det Detector, est Estimator, opts ...PipelineOption) *Pipeline {

	p := &Pipeline{
		detector:  det,
		estimator: est,
		processor: preprocess.NewProcessor(preprocess.DefaultProcessorParams()),
		skeleton:  render.COCO17(),
		style:     render.DefaultPoseStyle(),
		logger:    zap.NewNop().Sugar(),
	}

	for _, o := range opts {
		o(p)
	}

	return p
}

// Skeleton returns the skeleton of the pipeline
func (p *Pipeline) Skeleton() render.Skeleton {
	return p.skeleton
}

// Run detects every instance in img and estimates its pose.  An image
// without detections yields an empty result.
func (p *Pipeline) Run(ctx context.Context, img gocv.Mat) (*Result, error) {

	if p.detector == nil {
		return nil, ErrNoDetector
	}

	if p.estimator == nil {
		return nil, ErrNoEstimator
	}

	start := time.Now()

	res := &Result{
		Width:    img.Cols(),
		Height:   img.Rows(),
		Skeleton: p.skeleton,
		Poses:    []postprocess.PoseResult{},
	}

	dets, err := p.detector.Detect(ctx, img)

	if err != nil {
		return nil, errors.Wrap(err, "detection failed")
	}

	res.DetectTime = time.Since(start)

	// a zero area box has no region to crop
	valid := lo.Filter(dets, func(d postprocess.DetectResult, _ int) bool {
		return d.Box.Area() > 0
	})

	if dropped := len(dets) - len(valid); dropped > 0 {
		p.logger.Debugw("dropped empty detections", "count", dropped)
	}

	dets = valid

	if len(dets) == 0 {
		res.Elapsed = res.DetectTime
		return res, nil
	}

	batch, err := p.processor.Process(img, postprocess.DetectionBoxes(dets))

	if err != nil {
		return nil, errors.Wrap(err, "error cropping instances")
	}

	poseStart := time.Now()

	kps, err := p.estimator.Estimate(ctx, batch)

	if err != nil {
		return nil, errors.Wrap(err, "pose estimation failed")
	}

	for i, k := range kps {
		if len(k) != p.skeleton.Len() {
			return nil, errors.Wrapf(postprocess.ErrKeyPointMismatch,
				"instance %d has %d keypoints, skeleton %s has %d",
				i, len(k), p.skeleton.Name, p.skeleton.Len())
		}
	}

	res.Poses, err = postprocess.BuildPoseResults(dets, kps)

	if err != nil {
		return nil, err
	}

	res.PoseTime = time.Since(poseStart)
	res.Elapsed = time.Since(start)

	p.logger.Debugw("pipeline run", "instances", len(res.Poses),
		"detect", res.DetectTime, "pose", res.PoseTime)

	return res, nil
}

// Render draws the result onto img using the pipeline style
func (p *Pipeline) Render(img *gocv.Mat, res *Result) {

	if res == nil {
		return
	}

	if p.style.ShowBoxes {
		render.PoseBoxes(img, res.Poses, p.classNames, p.style.Font, p.style.LineThickness)
	}

	render.PoseKeyPoints(img, res.Poses, p.skeleton, p.style)
}

// Close closes the detector and estimator if they hold resources
func (p *Pipeline) Close() error {

	var err error

	for _, c := range []interface{}{p.detector, p.estimator} {
		if closer, ok := c.(io.Closer); ok {
			err = multierr.Append(err, closer.Close())
		}
	}

	return err
}
