package vitpose

import (
	"image"
	"os"

	// formats OpenCV may be built without
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	_ "image/jpeg"
	_ "image/png"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// LoadImage reads an image file into a BGR Mat.  Files OpenCV can not decode
// are decoded with the Go image packages instead.
func LoadImage(path string) (gocv.Mat, error) {

	img := gocv.IMRead(path, gocv.IMReadColor)

	if !img.Empty() {
		return img, nil
	}

	img.Close()

	f, err := os.Open(path)

	if err != nil {
		return gocv.NewMat(), errors.Wrap(err, "error opening image")
	}

	defer f.Close()

	decoded, format, err := image.Decode(f)

	if err != nil {
		return gocv.NewMat(), errors.Wrapf(err, "error decoding image %s", path)
	}

	mat, err := gocv.ImageToMatRGB(decoded)

	if err != nil {
		return gocv.NewMat(), errors.Wrapf(err, "error converting %s image", format)
	}

	return mat, nil
}
