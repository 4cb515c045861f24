package preprocess

import (
	"github.com/pkg/errors"
	"github.com/swdee/go-vitpose/postprocess"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"
)

// BoxToCenterScale converts a box into the center point and the pixel size of
// the region to crop.  The region is grown on one axis so it matches the
// aspect ratio of the width x height model input, then multiplied by padding.
func BoxToCenterScale(box postprocess.BoxXYWH, width, height int,
	padding float32) (center, scale [2]float32) {

	cx, cy := box.Center()
	center = [2]float32{cx, cy}

	aspect := float32(width) / float32(height)
	w, h := box.Width, box.Height

	if w > aspect*h {
		h = w / aspect
	} else if w < aspect*h {
		w = h * aspect
	}

	scale = [2]float32{w * padding, h * padding}

	return center, scale
}

// Transform is the affine mapping between a region of the source image and
// the pose model input
type Transform struct {
	// Center of the region in source image pixels
	Center [2]float32
	// Scale is the region width and height in source image pixels
	Scale [2]float32
	// forward maps source image points into model input space
	forward *mat.Dense
	// inverse maps model input points back onto the source image
	inverse *mat.Dense
}

// NewTransform builds the affine transform cropping the region described by
// center and scale onto a width x height model input
func NewTransform(center, scale [2]float32, width, height int) (*Transform, error) {

	if scale[0] <= 0 || scale[1] <= 0 {
		return nil, errors.Errorf("crop region %vx%v is empty", scale[0], scale[1])
	}

	sx := float64(width) / float64(scale[0])
	sy := float64(height) / float64(scale[1])

	forward := mat.NewDense(3, 3, []float64{
		sx, 0, float64(width)/2 - float64(center[0])*sx,
		0, sy, float64(height)/2 - float64(center[1])*sy,
		0, 0, 1,
	})

	var inverse mat.Dense

	if err := inverse.Inverse(forward); err != nil {
		return nil, errors.Wrap(err, "crop transform is not invertible")
	}

	return &Transform{
		Center:  center,
		Scale:   scale,
		forward: forward,
		inverse: &inverse,
	}, nil
}

// Map applies the forward transform to a source image point
func (t *Transform) Map(x, y float32) (float32, float32) {
	return apply(t.forward, x, y)
}

// InverseMap applies the inverse transform to a model input point
func (t *Transform) InverseMap(x, y float32) (float32, float32) {
	return apply(t.inverse, x, y)
}

// AffineMat returns the forward transform as a 2x3 CV_64F Mat for use with
// gocv.WarpAffine.  The caller must Close it.
func (t *Transform) AffineMat() gocv.Mat {

	m := gocv.NewMatWithSize(2, 3, gocv.MatTypeCV64F)

	for r := 0; r < 2; r++ {
		for c := 0; c < 3; c++ {
			m.SetDoubleAt(r, c, t.forward.At(r, c))
		}
	}

	return m
}

func apply(m *mat.Dense, x, y float32) (float32, float32) {

	p := mat.NewVecDense(3, []float64{float64(x), float64(y), 1})

	var out mat.VecDense
	out.MulVec(m, p)

	return float32(out.AtVec(0)), float32(out.AtVec(1))
}
