package vitpose

import (
	"encoding/json"
	"net/url"
	"time"

	"github.com/a8m/envsubst"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"github.com/swdee/go-vitpose/kserve"
	"github.com/swdee/go-vitpose/preprocess"
	"github.com/swdee/go-vitpose/render"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ServerConfig configures the connection to the KServe v2 model server
type ServerConfig struct {
	// Address is the base URL of the server, eg: http://localhost:8000
	Address       string        `mapstructure:"address"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Retries       int           `mapstructure:"retries"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	// BinaryOutput requests outputs using the binary data extension
	BinaryOutput bool `mapstructure:"binary_output"`
}

// RenderConfig configures drawing of results
type RenderConfig struct {
	Threshold          float32 `mapstructure:"threshold"`
	Radius             int     `mapstructure:"radius"`
	LineThickness      int     `mapstructure:"line_thickness"`
	ShowKeyPointWeight bool    `mapstructure:"show_keypoint_weight"`
	ShowBoxes          bool    `mapstructure:"show_boxes"`
}

// Config is the complete configuration of the pose pipeline and CLI
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Detector  DetectorConfig  `mapstructure:"detector"`
	Estimator EstimatorConfig `mapstructure:"estimator"`
	// Skeleton replaces the built in COCO17 skeleton when set
	Skeleton *render.SkeletonConfig `mapstructure:"skeleton"`
	Render   RenderConfig           `mapstructure:"render"`
	// Workers is the number of images processed concurrently by the CLI
	Workers int       `mapstructure:"workers"`
	Log     LogConfig `mapstructure:"log"`
}

// DefaultConfig returns a configuration for a local model server
func DefaultConfig() *Config {

	style := render.DefaultPoseStyle()

	return &Config{
		Server: ServerConfig{
			Address:       "http://localhost:8000",
			Timeout:       kserve.DefaultTimeout,
			Retries:       kserve.DefaultRetries,
			RetryInterval: kserve.DefaultRetryInterval,
		},
		Detector:  DefaultDetectorConfig(),
		Estimator: DefaultEstimatorConfig(),
		Render: RenderConfig{
			Threshold:     style.Threshold,
			Radius:        style.Radius,
			LineThickness: style.LineThickness,
			ShowBoxes:     style.ShowBoxes,
		},
		Workers: 1,
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// LoadConfig reads a JSON config file, expanding ${VAR} references from the
// environment, over the defaults
func LoadConfig(path string) (*Config, error) {

	data, err := envsubst.ReadFile(path)

	if err != nil {
		return nil, errors.Wrapf(err, "error reading config %s", path)
	}

	cfg, err := decodeConfig(data)

	if err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}

	return cfg, nil
}

// ParseConfig decodes JSON config data, expanding ${VAR} references from the
// environment, over the defaults
func ParseConfig(data []byte) (*Config, error) {

	expanded, err := envsubst.Bytes(data)

	if err != nil {
		return nil, errors.Wrap(err, "error expanding config")
	}

	return decodeConfig(expanded)
}

func decodeConfig(data []byte) (*Config, error) {

	var raw map[string]interface{}

	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "error parsing config")
	}

	cfg := DefaultConfig()

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})

	if err != nil {
		return nil, errors.Wrap(err, "error creating config decoder")
	}

	if err := dec.Decode(raw); err != nil {
		return nil, errors.Wrap(err, "error decoding config")
	}

	return cfg, nil
}

// Validate checks the configuration and reports every problem found
func (c *Config) Validate() error {

	var err error

	u, perr := url.Parse(c.Server.Address)

	if perr != nil || u.Scheme == "" || u.Host == "" {
		err = multierr.Append(err, errors.Errorf("server.address %q is not an absolute URL",
			c.Server.Address))
	}

	if c.Server.Timeout <= 0 {
		err = multierr.Append(err, errors.New("server.timeout must be positive"))
	}

	if c.Detector.Model == "" {
		err = multierr.Append(err, errors.New("detector.model is required"))
	}

	if c.Detector.Input == "" {
		err = multierr.Append(err, errors.New("detector.input is required"))
	}

	if c.Detector.Width <= 0 || c.Detector.Height <= 0 {
		err = multierr.Append(err, errors.Errorf("detector size %dx%d is invalid",
			c.Detector.Width, c.Detector.Height))
	}

	switch preprocess.Layout(c.Detector.Layout) {
	case preprocess.LayoutNCHW, preprocess.LayoutNHWC:
	default:
		err = multierr.Append(err, errors.Errorf("detector.layout %q is not NCHW or NHWC",
			c.Detector.Layout))
	}

	switch c.Detector.OutputFormat {
	case OutputSSD:
		if c.Detector.Output == "" {
			err = multierr.Append(err, errors.New("detector.output is required for ssd output"))
		}
	case OutputBoxes:
		if c.Detector.BoxesOutput == "" || c.Detector.ScoresOutput == "" {
			err = multierr.Append(err, errors.New(
				"detector.boxes_output and detector.scores_output are required for boxes output"))
		}
	default:
		err = multierr.Append(err, errors.Errorf("detector.output_format %q is not %s or %s",
			c.Detector.OutputFormat, OutputSSD, OutputBoxes))
	}

	if c.Estimator.Model == "" || c.Estimator.Input == "" || c.Estimator.Output == "" {
		err = multierr.Append(err, errors.New("estimator model, input and output are required"))
	}

	if c.Estimator.Width <= 0 || c.Estimator.Height <= 0 {
		err = multierr.Append(err, errors.Errorf("estimator size %dx%d is invalid",
			c.Estimator.Width, c.Estimator.Height))
	}

	if c.Estimator.Padding <= 0 {
		err = multierr.Append(err, errors.New("estimator.padding must be positive"))
	}

	if c.Skeleton != nil {
		if _, serr := render.SkeletonFromConfig(*c.Skeleton); serr != nil {
			err = multierr.Append(err, serr)
		}
	}

	if c.Workers < 1 {
		err = multierr.Append(err, errors.New("workers must be at least 1"))
	}

	return err
}

// PoseStyle returns the render style from the config
func (c *Config) PoseStyle() render.PoseStyle {
	style := render.DefaultPoseStyle()
	style.Threshold = c.Render.Threshold
	style.Radius = c.Render.Radius
	style.LineThickness = c.Render.LineThickness
	style.ShowKeyPointWeight = c.Render.ShowKeyPointWeight
	style.ShowBoxes = c.Render.ShowBoxes
	return style
}

// SkeletonDef returns the configured skeleton, or COCO17
func (c *Config) SkeletonDef() (render.Skeleton, error) {
	if c.Skeleton == nil {
		return render.COCO17(), nil
	}
	return render.SkeletonFromConfig(*c.Skeleton)
}

// NewClient returns a model server client for the config
func (c *Config) NewClient(logger *zap.SugaredLogger) (*kserve.Client, error) {
	return kserve.NewClient(c.Server.Address,
		kserve.WithTimeout(c.Server.Timeout),
		kserve.WithRetries(c.Server.Retries, c.Server.RetryInterval),
		kserve.WithBinaryOutput(c.Server.BinaryOutput),
		kserve.WithLogger(logger),
	)
}

// NewPipeline builds the server backed pipeline described by the config
func (c *Config) NewPipeline(client *kserve.Client, logger *zap.SugaredLogger) (*Pipeline, error) {

	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	skel, err := c.SkeletonDef()

	if err != nil {
		return nil, err
	}

	var labels []string

	if c.Detector.LabelsFile != "" {
		labels, err = LoadLabels(c.Detector.LabelsFile)

		if err != nil {
			return nil, err
		}
	}

	det, err := NewServerDetector(client, c.Detector, labels, logger.Named("detector"))

	if err != nil {
		return nil, err
	}

	est, err := NewServerEstimator(client, c.Estimator, skel.Len(), logger.Named("estimator"))

	if err != nil {
		return nil, err
	}

	return NewPipeline(det, est,
		WithProcessor(preprocess.NewProcessor(c.Estimator.ProcessorParams())),
		WithSkeleton(skel),
		WithStyle(c.PoseStyle()),
		WithClassNames(labels),
		WithPipelineLogger(logger),
	), nil
}
