package postprocess

import (
	"testing"

	"go.viam.com/test"
)

// halfScaler maps model input pixels to a source image twice the size
type halfScaler struct{}

func (halfScaler) ScaleBox(b BoxRect) BoxRect {
	return BoxRect{b.Left * 2, b.Top * 2, b.Right * 2, b.Bottom * 2}
}

func TestDecodeSSD(t *testing.T) {

	d := NewDetectDecoder(DecodeParams{
		Normalized:  true,
		InputWidth:  300,
		InputHeight: 300,
		Labels:      []string{"person", "bicycle"},
	})

	data := []float32{
		0, 0, 0.9, 0.1, 0.1, 0.5, 0.9,
		0, 1, 0.4, 0.0, 0.0, 0.2, 0.2,
		-1, 0, 0, 0, 0, 0, 0,
		0, 0, 0.7, 0.1, 0.1, 0.2, 0.2,
	}

	dets, err := d.DecodeSSD(data, halfScaler{}, 600, 600)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dets, test.ShouldHaveLength, 2)

	test.That(t, dets[0].Label, test.ShouldEqual, "person")
	test.That(t, dets[0].ID, test.ShouldEqual, int64(1))
	test.That(t, dets[0].Box.Left, test.ShouldAlmostEqual, 60, 1e-3)
	test.That(t, dets[0].Box.Bottom, test.ShouldAlmostEqual, 540, 1e-3)
	test.That(t, dets[1].Label, test.ShouldEqual, "bicycle")
	test.That(t, dets[1].ID, test.ShouldEqual, int64(2))

	_, err = d.DecodeSSD(data[:8], nil, 600, 600)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestDecodeBoxes(t *testing.T) {

	d := NewDetectDecoder(DecodeParams{LabelOffset: -1, Labels: []string{"person"}})

	boxes := []float32{10, 20, 30, 40, -5, -5, 900, 900}
	scores := []float32{0.8, 0.6}
	labels := []float32{1, 1}

	dets, err := d.DecodeBoxes(boxes, scores, labels, nil, 640, 480)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dets, test.ShouldHaveLength, 2)
	test.That(t, dets[0].Class, test.ShouldEqual, 0)
	test.That(t, dets[0].Label, test.ShouldEqual, "person")
	test.That(t, dets[0].Box, test.ShouldResemble, BoxRect{10, 20, 30, 40})
	// clamped to the image
	test.That(t, dets[1].Box, test.ShouldResemble, BoxRect{0, 0, 640, 480})

	_, err = d.DecodeBoxes(boxes[:4], scores, labels, nil, 640, 480)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = d.DecodeBoxes(boxes, scores, labels[:1], nil, 640, 480)
	test.That(t, err, test.ShouldNotBeNil)
}
