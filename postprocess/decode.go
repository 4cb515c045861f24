package postprocess

import (
	"github.com/pkg/errors"
	"github.com/swdee/go-vitpose/postprocess/result"
)

// SSDRowLength is the number of values per detection in an SSD style output
// tensor shaped [1,1,N,7]
const SSDRowLength = 7

// BoxScaler maps a box from model input pixels back onto the source image,
// undoing any letterbox padding and scaling
type BoxScaler interface {
	ScaleBox(b BoxRect) BoxRect
}

// DecodeParams configures how raw detector outputs are decoded
type DecodeParams struct {
	// Normalized indicates box coordinates are fractions of the model input
	// dimensions rather than pixels
	Normalized bool
	// InputWidth and InputHeight are the detector model input dimensions
	InputWidth  int
	InputHeight int
	// Labels are the class names indexed by class number, optional
	Labels []string
	// LabelOffset is added to raw label values before lookup, eg: -1 for
	// models that reserve class 0 for background
	LabelOffset int
}

// DetectDecoder turns detector output tensors into DetectResults in source
// image coordinates
type DetectDecoder struct {
	Params DecodeParams
	idGen  *result.IDGenerator
}

// NewDetectDecoder returns a decoder for the given params
func NewDetectDecoder(p DecodeParams) *DetectDecoder {
	return &DetectDecoder{
		Params: p,
		idGen:  result.NewIDGenerator(),
	}
}

// DecodeSSD decodes rows of [image_id, label, conf, x1, y1, x2, y2].  A
// negative image_id marks the end of valid rows.  Boxes are scaled back onto
// an image of width x height and clamped to it.
func (d *DetectDecoder) DecodeSSD(data []float32, scaler BoxScaler,
	width, height int) ([]DetectResult, error) {

	if len(data)%SSDRowLength != 0 {
		return nil, errors.Errorf("ssd output length %d is not a multiple of %d",
			len(data), SSDRowLength)
	}

	count := len(data) / SSDRowLength
	dets := make([]DetectResult, 0, count)

	for i := 0; i < count; i++ {
		row := data[i*SSDRowLength : (i+1)*SSDRowLength]

		if row[0] < 0 {
			break
		}

		box := BoxRect{Left: row[3], Top: row[4], Right: row[5], Bottom: row[6]}
		dets = append(dets, d.newResult(int(row[1]), row[2], box, scaler, width, height))
	}

	return dets, nil
}

// DecodeBoxes decodes separate outputs of [N,4] corner pair boxes, [N]
// scores and [N] class labels
func (d *DetectDecoder) DecodeBoxes(boxes, scores, labels []float32,
	scaler BoxScaler, width, height int) ([]DetectResult, error) {

	if len(boxes) != len(scores)*4 {
		return nil, errors.Errorf("boxes length %d does not match %d scores",
			len(boxes), len(scores))
	}

	if labels != nil && len(labels) != len(scores) {
		return nil, errors.Errorf("labels length %d does not match %d scores",
			len(labels), len(scores))
	}

	dets := make([]DetectResult, 0, len(scores))

	for i := range scores {
		class := 0

		if labels != nil {
			class = int(labels[i])
		}

		box := BoxRect{
			Left:   boxes[i*4+0],
			Top:    boxes[i*4+1],
			Right:  boxes[i*4+2],
			Bottom: boxes[i*4+3],
		}

		dets = append(dets, d.newResult(class, scores[i], box, scaler, width, height))
	}

	return dets, nil
}

// newResult builds a DetectResult mapping the box onto the source image
func (d *DetectDecoder) newResult(class int, prob float32, box BoxRect,
	scaler BoxScaler, width, height int) DetectResult {

	if d.Params.Normalized {
		box.Left *= float32(d.Params.InputWidth)
		box.Right *= float32(d.Params.InputWidth)
		box.Top *= float32(d.Params.InputHeight)
		box.Bottom *= float32(d.Params.InputHeight)
	}

	if scaler != nil {
		box = scaler.ScaleBox(box)
	}

	class += d.Params.LabelOffset

	return DetectResult{
		Class:       class,
		Label:       d.label(class),
		Box:         clampBox(box, width, height),
		Probability: prob,
		ID:          d.idGen.GetNext(),
	}
}

func (d *DetectDecoder) label(class int) string {
	if class < 0 || class >= len(d.Params.Labels) {
		return ""
	}
	return d.Params.Labels[class]
}
