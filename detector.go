package vitpose

import (
	"context"
	"image/color"

	"github.com/pkg/errors"
	"github.com/swdee/go-vitpose/kserve"
	"github.com/swdee/go-vitpose/postprocess"
	"github.com/swdee/go-vitpose/preprocess"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// Detector finds instances in an image.  Boxes are returned in source image
// pixels.
type Detector interface {
	Detect(ctx context.Context, img gocv.Mat) ([]postprocess.DetectResult, error)
}

// Detector output formats
const (
	// OutputSSD is a single [1,1,N,7] tensor of
	// [image_id, label, conf, x1, y1, x2, y2] rows
	OutputSSD = "ssd"
	// OutputBoxes is separate [N,4] boxes, [N] scores and [N] labels tensors
	OutputBoxes = "boxes"
)

// DetectorConfig configures a detector served by a KServe v2 model server
type DetectorConfig struct {
	Model   string `mapstructure:"model"`
	Version string `mapstructure:"version"`
	// Input is the name of the image input tensor
	Input string `mapstructure:"input"`
	// Width and Height are the model input dimensions
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
	// Layout of the input tensor, NCHW or NHWC
	Layout string `mapstructure:"layout"`
	// Datatype of the input tensor, eg: FP32 or UINT8
	Datatype string `mapstructure:"datatype"`
	// Normalize applies ImageNet mean/std normalization, otherwise raw pixel
	// values are sent
	Normalize bool `mapstructure:"normalize"`
	// OutputFormat is one of OutputSSD or OutputBoxes
	OutputFormat string `mapstructure:"output_format"`
	// Output names the SSD output tensor
	Output string `mapstructure:"output"`
	// BoxesOutput, ScoresOutput and LabelsOutput name the tensors of the
	// boxes output format.  LabelsOutput may be empty for single class models.
	BoxesOutput  string `mapstructure:"boxes_output"`
	ScoresOutput string `mapstructure:"scores_output"`
	LabelsOutput string `mapstructure:"labels_output"`
	// Normalized indicates box coordinates are fractions of the input size
	Normalized  bool `mapstructure:"normalized"`
	LabelOffset int  `mapstructure:"label_offset"`
	// LabelsFile is an optional text file of class names
	LabelsFile string `mapstructure:"labels_file"`
	// Classes restricts detections to these class numbers, empty keeps all
	Classes        []int   `mapstructure:"classes"`
	ScoreThreshold float32 `mapstructure:"score_threshold"`
	NMSThreshold   float32 `mapstructure:"nms_threshold"`
	MinArea        float32 `mapstructure:"min_area"`
	MaxDetections  int     `mapstructure:"max_detections"`
}

// DefaultDetectorConfig returns the settings of an SSD person detector served
// by OpenVINO Model Server
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		Model:          "person-detection",
		Input:          "image",
		Width:          640,
		Height:         640,
		Layout:         string(preprocess.LayoutNCHW),
		Datatype:       kserve.DatatypeFP32,
		OutputFormat:   OutputSSD,
		Output:         "detection_out",
		BoxesOutput:    "boxes",
		ScoresOutput:   "scores",
		LabelsOutput:   "labels",
		Normalized:     true,
		Classes:        []int{0},
		ScoreThreshold: 0.5,
		NMSThreshold:   0.45,
		MaxDetections:  32,
	}
}

// ServerDetector runs a detection model on a KServe v2 model server
type ServerDetector struct {
	client  *kserve.Client
	cfg     DetectorConfig
	norm    preprocess.Normalization
	decoder *postprocess.DetectDecoder
	filter  postprocess.Filter
	logger  *zap.SugaredLogger
}

// NewServerDetector returns a detector using the given client.  labels may be
// nil.
func NewServerDetector(client *kserve.Client, cfg DetectorConfig, labels []string,
	logger *zap.SugaredLogger) (*ServerDetector, error) {

	if client == nil {
		return nil, errors.New("detector requires a model server client")
	}

	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, errors.Errorf("invalid detector input size %dx%d", cfg.Width, cfg.Height)
	}

	if cfg.OutputFormat != OutputSSD && cfg.OutputFormat != OutputBoxes {
		return nil, errors.Errorf("unknown detector output format %q", cfg.OutputFormat)
	}

	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	norm := preprocess.RawNormalization()

	if cfg.Normalize {
		norm = preprocess.ImageNetNormalization()
	}

	filters := []postprocess.Filter{
		postprocess.NewScoreFilter(cfg.ScoreThreshold),
		postprocess.NewClassFilter(cfg.Classes...),
		postprocess.NewAreaFilter(cfg.MinArea),
		postprocess.NewNMSFilter(cfg.NMSThreshold),
	}

	if cfg.MaxDetections > 0 {
		filters = append(filters, postprocess.NewLimitFilter(cfg.MaxDetections))
	}

	return &ServerDetector{
		client: client,
		cfg:    cfg,
		norm:   norm,
		decoder: postprocess.NewDetectDecoder(postprocess.DecodeParams{
			Normalized:  cfg.Normalized,
			InputWidth:  cfg.Width,
			InputHeight: cfg.Height,
			Labels:      labels,
			LabelOffset: cfg.LabelOffset,
		}),
		filter: postprocess.Chain(filters...),
		logger: logger,
	}, nil
}

// Detect letterboxes img to the model input, runs inference and returns the
// filtered detections mapped back onto img
func (d *ServerDetector) Detect(ctx context.Context, img gocv.Mat) ([]postprocess.DetectResult, error) {

	if img.Empty() {
		return nil, errors.New("empty image")
	}

	lb := preprocess.NewLetterbox(img.Cols(), img.Rows(), d.cfg.Width, d.cfg.Height)
	defer lb.Close()

	resized := gocv.NewMat()
	defer resized.Close()

	lb.Resize(img, &resized, color.RGBA{R: 0, G: 0, B: 0, A: 255})

	layout := preprocess.Layout(d.cfg.Layout)
	data := make([]float32, 3*d.cfg.Width*d.cfg.Height)

	if err := preprocess.WriteTensor(resized, data, layout, d.norm); err != nil {
		return nil, errors.Wrap(err, "error building detector tensor")
	}

	shape := []int64{1, 3, int64(d.cfg.Height), int64(d.cfg.Width)}

	if layout == preprocess.LayoutNHWC {
		shape = []int64{1, int64(d.cfg.Height), int64(d.cfg.Width), 3}
	}

	res, err := d.client.Infer(ctx, kserve.InferRequest{
		Model:   d.cfg.Model,
		Version: d.cfg.Version,
		Inputs: []kserve.Tensor{{
			Name:     d.cfg.Input,
			Shape:    shape,
			Datatype: d.cfg.Datatype,
			Data:     data,
		}},
		Outputs: d.requestedOutputs(),
	})

	if err != nil {
		return nil, errors.Wrap(err, "detector inference failed")
	}

	dets, err := d.decode(res, lb, img.Cols(), img.Rows())

	if err != nil {
		return nil, err
	}

	kept := d.filter(dets)

	d.logger.Debugw("detections", "model", d.cfg.Model, "decoded", len(dets), "kept", len(kept))

	return kept, nil
}

func (d *ServerDetector) requestedOutputs() []kserve.RequestOutput {

	names := []string{d.cfg.Output}

	if d.cfg.OutputFormat == OutputBoxes {
		names = []string{d.cfg.BoxesOutput, d.cfg.ScoresOutput}

		if d.cfg.LabelsOutput != "" {
			names = append(names, d.cfg.LabelsOutput)
		}
	}

	outs := make([]kserve.RequestOutput, len(names))

	for i, n := range names {
		outs[i] = kserve.RequestOutput{Name: n}
	}

	return outs
}

func (d *ServerDetector) decode(res *kserve.InferResponse, lb *preprocess.Letterbox,
	width, height int) ([]postprocess.DetectResult, error) {

	if d.cfg.OutputFormat == OutputSSD {
		out, err := res.Output(d.cfg.Output)

		if err != nil {
			return nil, err
		}

		return d.decoder.DecodeSSD(out.Values, lb, width, height)
	}

	boxes, err := res.Output(d.cfg.BoxesOutput)

	if err != nil {
		return nil, err
	}

	scores, err := res.Output(d.cfg.ScoresOutput)

	if err != nil {
		return nil, err
	}

	var labels []float32

	if d.cfg.LabelsOutput != "" {
		out, err := res.Output(d.cfg.LabelsOutput)

		if err != nil {
			return nil, err
		}

		labels = out.Values
	}

	return d.decoder.DecodeBoxes(boxes.Values, scores.Values, labels, lb, width, height)
}
