package vitpose

import "github.com/pkg/errors"

var (
	// ErrNoDetector is returned when a pipeline is run without a detector
	ErrNoDetector = errors.New("pipeline has no detector")
	// ErrNoEstimator is returned when a pipeline is run without a pose
	// estimator
	ErrNoEstimator = errors.New("pipeline has no pose estimator")
)
