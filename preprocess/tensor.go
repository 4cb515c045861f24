package preprocess

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Layout is the memory order of an image tensor
type Layout string

const (
	// LayoutNCHW is channel planar, as used by PyTorch exported models
	LayoutNCHW Layout = "NCHW"
	// LayoutNHWC is channel interleaved, as used by OpenVINO/TensorFlow models
	LayoutNHWC Layout = "NHWC"
)

// Normalization defines how 8 bit pixel values are converted to tensor values.
// Each value becomes (pixel*Rescale - Mean[c]) / Std[c].
type Normalization struct {
	Rescale float32
	Mean    [3]float32
	Std     [3]float32
	// SwapRB converts the BGR channel order of gocv Mats to RGB
	SwapRB bool
}

// ImageNetNormalization is the normalization used by ViT style pose models
func ImageNetNormalization() Normalization {
	return Normalization{
		Rescale: 1.0 / 255.0,
		Mean:    [3]float32{0.485, 0.456, 0.406},
		Std:     [3]float32{0.229, 0.224, 0.225},
		SwapRB:  true,
	}
}

// RawNormalization passes pixel values through unchanged in BGR order
func RawNormalization() Normalization {
	return Normalization{
		Rescale: 1,
		Std:     [3]float32{1, 1, 1},
	}
}

// WriteTensor writes a 3 channel 8 bit Mat into dst using the given layout
// and normalization.  dst must hold rows*cols*3 values.
func WriteTensor(img gocv.Mat, dst []float32, layout Layout, norm Normalization) error {

	if img.Channels() != 3 || img.Type() != gocv.MatTypeCV8UC3 {
		return errors.Errorf("expected a 3 channel 8 bit image, got type %v", img.Type())
	}

	rows, cols := img.Rows(), img.Cols()
	plane := rows * cols

	if len(dst) != plane*3 {
		return errors.Errorf("tensor holds %d values, image needs %d", len(dst), plane*3)
	}

	// make mat continuous
	if !img.IsContinuous() {
		img = img.Clone()
		defer img.Close()
	}

	data, err := img.DataPtrUint8()

	if err != nil {
		return errors.Wrap(err, "error getting data pointer to Mat")
	}

	for i := 0; i < plane; i++ {
		for c := 0; c < 3; c++ {
			src := c

			if norm.SwapRB {
				src = 2 - c
			}

			v := (float32(data[i*3+src])*norm.Rescale - norm.Mean[c]) / norm.Std[c]

			if layout == LayoutNHWC {
				dst[i*3+c] = v
			} else {
				dst[c*plane+i] = v
			}
		}
	}

	return nil
}
