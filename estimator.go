package vitpose

import (
	"context"

	"github.com/pkg/errors"
	"github.com/swdee/go-vitpose/kserve"
	"github.com/swdee/go-vitpose/postprocess"
	"github.com/swdee/go-vitpose/preprocess"
	"go.uber.org/zap"
)

// Estimator predicts keypoints for a batch of cropped instances.  Keypoints
// are returned in source image pixels, one set per batch instance.
type Estimator interface {
	Estimate(ctx context.Context, batch preprocess.Batch) ([][]postprocess.KeyPoint, error)
}

// EstimatorConfig configures a pose model served by a KServe v2 model server.
// The model takes a [N,3,H,W] float tensor and returns [N,K,3] keypoints of
// (x, y, score) in model input space.
type EstimatorConfig struct {
	Model   string `mapstructure:"model"`
	Version string `mapstructure:"version"`
	Input   string `mapstructure:"input"`
	Output  string `mapstructure:"output"`
	// Width and Height are the model input dimensions
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
	// Padding enlarges each crop region around its box
	Padding float32 `mapstructure:"padding"`
	// Normalized indicates keypoints are fractions of the input size
	Normalized bool `mapstructure:"normalized"`
	// MaxBatchSize splits larger batches into several requests, zero sends
	// every instance in one request
	MaxBatchSize int `mapstructure:"max_batch_size"`
}

// DefaultEstimatorConfig returns the settings of a ViTPose base model trained
// on COCO
func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfig{
		Model:        "vitpose-base",
		Input:        "pixel_values",
		Output:       "keypoints",
		Width:        192,
		Height:       256,
		Padding:      1.25,
		MaxBatchSize: 8,
	}
}

// ProcessorParams returns the pose image processor parameters matching the
// model input
func (c EstimatorConfig) ProcessorParams() preprocess.ProcessorParams {
	p := preprocess.DefaultProcessorParams()
	p.Width = c.Width
	p.Height = c.Height
	p.Padding = c.Padding
	return p
}

// ServerEstimator runs a pose model on a KServe v2 model server
type ServerEstimator struct {
	client *kserve.Client
	cfg    EstimatorConfig
	params postprocess.PoseParams
	logger *zap.SugaredLogger
}

// NewServerEstimator returns an estimator for a model emitting keyPoints
// joints per instance
func NewServerEstimator(client *kserve.Client, cfg EstimatorConfig, keyPoints int,
	logger *zap.SugaredLogger) (*ServerEstimator, error) {

	if client == nil {
		return nil, errors.New("estimator requires a model server client")
	}

	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, errors.Errorf("invalid estimator input size %dx%d", cfg.Width, cfg.Height)
	}

	if keyPoints <= 0 {
		return nil, errors.Errorf("invalid keypoint count %d", keyPoints)
	}

	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &ServerEstimator{
		client: client,
		cfg:    cfg,
		params: postprocess.PoseParams{
			KeyPointsNumber: keyPoints,
			Normalized:      cfg.Normalized,
			InputWidth:      cfg.Width,
			InputHeight:     cfg.Height,
		},
		logger: logger,
	}, nil
}

// Estimate sends the batch to the model, split into requests of at most
// MaxBatchSize instances, and maps the keypoints back onto the source image
func (e *ServerEstimator) Estimate(ctx context.Context,
	batch preprocess.Batch) ([][]postprocess.KeyPoint, error) {

	n := batch.Len()

	if n == 0 {
		return [][]postprocess.KeyPoint{}, nil
	}

	if len(batch.Shape) != 4 {
		return nil, errors.Errorf("batch shape %v is not [N,C,H,W]", batch.Shape)
	}

	size := int(batch.Shape[1] * batch.Shape[2] * batch.Shape[3])

	if len(batch.Data) != n*size {
		return nil, errors.Errorf("batch data length %d does not match %d instances",
			len(batch.Data), n)
	}

	step := e.cfg.MaxBatchSize

	if step <= 0 {
		step = n
	}

	mappers := batch.Mappers()
	all := make([][]postprocess.KeyPoint, 0, n)

	for start := 0; start < n; start += step {

		end := start + step

		if end > n {
			end = n
		}

		shape := append([]int64{int64(end - start)}, batch.Shape[1:]...)

		res, err := e.client.Infer(ctx, kserve.InferRequest{
			Model:   e.cfg.Model,
			Version: e.cfg.Version,
			Inputs: []kserve.Tensor{{
				Name:     e.cfg.Input,
				Shape:    shape,
				Datatype: kserve.DatatypeFP32,
				Data:     batch.Data[start*size : end*size],
			}},
			Outputs: []kserve.RequestOutput{{Name: e.cfg.Output}},
		})

		if err != nil {
			return nil, errors.Wrapf(err, "pose inference failed for instances %d-%d",
				start, end-1)
		}

		out, err := res.Output(e.cfg.Output)

		if err != nil {
			return nil, err
		}

		kps, err := postprocess.DecodeKeyPoints(out.Values, out.Shape,
			mappers[start:end], e.params)

		if err != nil {
			return nil, errors.Wrapf(err, "instances %d-%d", start, end-1)
		}

		all = append(all, kps...)
	}

	e.logger.Debugw("pose estimated", "model", e.cfg.Model, "instances", n)

	return all, nil
}
