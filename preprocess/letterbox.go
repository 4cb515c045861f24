package preprocess

import (
	"github.com/swdee/go-vitpose/postprocess"
	"gocv.io/x/gocv"
	"image"
	"image/color"
)

// Letterbox handles aspect preserving resizing of a source image to the
// detector model input dimensions
type Letterbox struct {
	// srcWidth is the width of the source image
	srcWidth int
	// srcHeight is the height of the source image
	srcHeight int
	// destWidth is the width of the model input
	destWidth int
	// destHeight is the height of the model input
	destHeight int
	// tempMat is a Mat used during the resize process
	tempMat gocv.Mat
	// letterbox parameters used in scaling
	xPad  int
	yPad  int
	scale float32
	// resize dimensions before padding
	resizeW int
	resizeH int
}

// NewLetterbox returns a Letterbox used for scaling an image of srcWidth x
// srcHeight into destWidth x destHeight
func NewLetterbox(srcWidth, srcHeight, destWidth, destHeight int) *Letterbox {
	l := &Letterbox{
		srcWidth:   srcWidth,
		srcHeight:  srcHeight,
		destWidth:  destWidth,
		destHeight: destHeight,
		tempMat:    gocv.NewMat(),
	}

	l.preCalc()

	return l
}

// Close frees memory allocated during resize process
func (l *Letterbox) Close() error {
	return l.tempMat.Close()
}

// preCalc the scaling factors for source and destination Mats
func (l *Letterbox) preCalc() {

	l.resizeW = l.destWidth
	l.resizeH = l.destHeight

	scaleW := float32(l.destWidth) / float32(l.srcWidth)
	scaleH := float32(l.destHeight) / float32(l.srcHeight)
	l.scale = scaleH

	if scaleW < scaleH {
		l.scale = scaleW
		l.resizeH = int(float32(l.srcHeight) * l.scale)
	} else {
		l.resizeW = int(float32(l.srcWidth) * l.scale)
	}

	l.yPad = (l.destHeight - l.resizeH) / 2
	l.xPad = (l.destWidth - l.resizeW) / 2
}

// Resize scales src into dest keeping the image aspect, the remaining area
// is filled with the pad color
func (l *Letterbox) Resize(src gocv.Mat, dest *gocv.Mat, pad color.RGBA) {

	gocv.Resize(src, &l.tempMat, image.Pt(l.resizeW, l.resizeH),
		0, 0, gocv.InterpolationArea)

	gocv.CopyMakeBorder(l.tempMat, dest, l.yPad, l.destHeight-l.resizeH-l.yPad,
		l.xPad, l.destWidth-l.resizeW-l.xPad, gocv.BorderConstant, pad)
}

// ScaleBox maps a box in model input pixels back onto the source image
func (l *Letterbox) ScaleBox(b postprocess.BoxRect) postprocess.BoxRect {
	return postprocess.BoxRect{
		Left:   (b.Left - float32(l.xPad)) / l.scale,
		Top:    (b.Top - float32(l.yPad)) / l.scale,
		Right:  (b.Right - float32(l.xPad)) / l.scale,
		Bottom: (b.Bottom - float32(l.yPad)) / l.scale,
	}
}

// ScaleFactor returns the scale factor used in letterbox resize
func (l *Letterbox) ScaleFactor() float32 {
	return l.scale
}

// XPad returns the x padding used in letterbox resize
func (l *Letterbox) XPad() int {
	return l.xPad
}

// YPad returns the y padding used in letterbox resize
func (l *Letterbox) YPad() int {
	return l.yPad
}

// SrcWidth returns the width of the source image
func (l *Letterbox) SrcWidth() int {
	return l.srcWidth
}

// SrcHeight returns the height of the source image
func (l *Letterbox) SrcHeight() int {
	return l.srcHeight
}
