package preprocess

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
	"github.com/swdee/go-vitpose/postprocess"
	"gocv.io/x/gocv"
)

// ProcessorParams defines the pose image processor configuration
type ProcessorParams struct {
	// Width and Height are the pose model input dimensions
	Width  int
	Height int
	// Padding enlarges each crop region around its box, eg: 1.25
	Padding float32
	// Normalization applied to the cropped pixels
	Normalization Normalization
	// BorderColor fills crop areas outside the source image
	BorderColor color.RGBA
}

// DefaultProcessorParams returns the parameters used by ViTPose style models
// trained on COCO with a 256x192 input
func DefaultProcessorParams() ProcessorParams {
	return ProcessorParams{
		Width:         192,
		Height:        256,
		Padding:       1.25,
		Normalization: ImageNetNormalization(),
	}
}

// Batch is the model ready tensor for all instances of one image along with
// the transforms needed to map results back
type Batch struct {
	// Data is the [N,3,H,W] float32 tensor
	Data []float32
	// Shape of Data
	Shape []int64
	// Transforms hold one crop transform per instance
	Transforms []*Transform
}

// Len returns the number of instances in the batch
func (b Batch) Len() int {
	return len(b.Transforms)
}

// Mappers returns the crop transforms as point mappers for keypoint decoding
func (b Batch) Mappers() []postprocess.PointMapper {

	out := make([]postprocess.PointMapper, len(b.Transforms))

	for i, t := range b.Transforms {
		out[i] = t
	}

	return out
}

// Processor crops and normalizes image regions per box into a single batch
// tensor for the pose model
type Processor struct {
	Params ProcessorParams
}

// NewProcessor returns a pose image processor
func NewProcessor(p ProcessorParams) *Processor {
	return &Processor{Params: p}
}

// Process crops every box out of img.  An empty box list returns an empty
// batch.
func (p *Processor) Process(img gocv.Mat, boxes []postprocess.BoxXYWH) (Batch, error) {

	w, h := p.Params.Width, p.Params.Height
	size := 3 * w * h

	batch := Batch{
		Data:       make([]float32, len(boxes)*size),
		Shape:      []int64{int64(len(boxes)), 3, int64(h), int64(w)},
		Transforms: make([]*Transform, len(boxes)),
	}

	crop := gocv.NewMat()
	defer crop.Close()

	for i, box := range boxes {

		center, scale := BoxToCenterScale(box, w, h, p.Params.Padding)

		t, err := NewTransform(center, scale, w, h)

		if err != nil {
			return Batch{}, errors.Wrapf(err, "instance %d", i)
		}

		m := t.AffineMat()
		gocv.WarpAffineWithParams(img, &crop, m, image.Pt(w, h),
			gocv.InterpolationLinear, gocv.BorderConstant, p.Params.BorderColor)
		m.Close()

		err = WriteTensor(crop, batch.Data[i*size:(i+1)*size], LayoutNCHW,
			p.Params.Normalization)

		if err != nil {
			return Batch{}, errors.Wrapf(err, "instance %d", i)
		}

		batch.Transforms[i] = t
	}

	return batch, nil
}
