package postprocess

import (
	"github.com/samber/lo"
)

// Filter modifies or drops detections after decoding
type Filter func([]DetectResult) []DetectResult

// NewScoreFilter drops detections with a probability below conf
func NewScoreFilter(conf float32) Filter {
	return func(in []DetectResult) []DetectResult {
		return lo.Filter(in, func(d DetectResult, _ int) bool {
			return d.Probability >= conf
		})
	}
}

// NewClassFilter keeps only detections of the given classes.  An empty class
// list keeps everything.
func NewClassFilter(classes ...int) Filter {

	if len(classes) == 0 {
		return identity
	}

	return func(in []DetectResult) []DetectResult {
		return lo.Filter(in, func(d DetectResult, _ int) bool {
			return lo.Contains(classes, d.Class)
		})
	}
}

// NewAreaFilter drops detections whose box area is below area pixels.  Zero
// area boxes are always dropped.
func NewAreaFilter(area float32) Filter {
	return func(in []DetectResult) []DetectResult {
		return lo.Filter(in, func(d DetectResult, _ int) bool {
			a := d.Box.Area()
			return a > 0 && a >= area
		})
	}
}

// NewNMSFilter applies class wise NMS at the given IoU threshold
func NewNMSFilter(threshold float32) Filter {
	return func(in []DetectResult) []DetectResult {
		return NMS(in, threshold)
	}
}

// NewLimitFilter keeps at most max detections, max of zero or less keeps all
func NewLimitFilter(max int) Filter {
	return func(in []DetectResult) []DetectResult {
		if max <= 0 || len(in) <= max {
			return in
		}
		return in[:max]
	}
}

// Chain runs the filters in order, nil filters are skipped
func Chain(filters ...Filter) Filter {
	return func(in []DetectResult) []DetectResult {
		for _, f := range filters {
			if f != nil {
				in = f(in)
			}
		}
		return in
	}
}

func identity(in []DetectResult) []DetectResult {
	return in
}
