package render

import (
	"image/color"

	"gocv.io/x/gocv"
)

type Alignment int

const (
	Left   Alignment = 1
	Center Alignment = 2
	Right  Alignment = 3
)

// Font defines the parameters for rendering box labels
type Font struct {
	Face      gocv.HersheyFont
	Scale     float64
	Color     color.RGBA
	Thickness int
	LineType  gocv.LineType
	// Padding to place around text
	LeftPad   int
	RightPad  int
	TopPad    int
	BottomPad int
	// Alignment of the text label to the bounding box
	Alignment Alignment
}

// DefaultFont returns default font settings
func DefaultFont() Font {
	return Font{
		Face:      gocv.FontHersheySimplex,
		Scale:     0.5,
		Color:     White,
		Thickness: 1,
		LineType:  gocv.LineAA,
		LeftPad:   4,
		RightPad:  4,
		TopPad:    4,
		BottomPad: 6,
		Alignment: Left,
	}
}

// PoseStyle defines how poses are drawn
type PoseStyle struct {
	// Threshold is the score a keypoint must exceed to be drawn
	Threshold float32
	// Radius of keypoint circles
	Radius int
	// LineThickness of links and boxes
	LineThickness int
	// ShowKeyPointWeight blends points and links by their score instead of
	// drawing them opaque
	ShowKeyPointWeight bool
	// ShowBoxes draws the detection box with its label around each pose
	ShowBoxes bool
	// Font used for box labels
	Font Font
}

// DefaultPoseStyle returns default pose style settings
func DefaultPoseStyle() PoseStyle {
	return PoseStyle{
		Threshold:     0.3,
		Radius:        4,
		LineThickness: 2,
		ShowBoxes:     true,
		Font:          DefaultFont(),
	}
}
