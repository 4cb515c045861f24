package postprocess

import (
	"fmt"
	"image"
)

// DetectionResult is implemented by any result that carries object detections
type DetectionResult interface {
	GetDetectResults() []DetectResult
}

// BoxRect are the corner pair dimensions of the bounding box of a detected
// object in source image pixels
type BoxRect struct {
	Left   float32
	Top    float32
	Right  float32
	Bottom float32
}

// Rect returns the box as an integer image.Rectangle for rendering
func (b BoxRect) Rect() image.Rectangle {
	return image.Rect(int(b.Left), int(b.Top), int(b.Right), int(b.Bottom))
}

// Width of the box
func (b BoxRect) Width() float32 {
	return b.Right - b.Left
}

// Height of the box
func (b BoxRect) Height() float32 {
	return b.Bottom - b.Top
}

// Area of the box, zero for degenerate boxes
func (b BoxRect) Area() float32 {
	w, h := b.Width(), b.Height()

	if w <= 0 || h <= 0 {
		return 0
	}

	return w * h
}

func (b BoxRect) String() string {
	return fmt.Sprintf("(%.1f,%.1f)-(%.1f,%.1f)", b.Left, b.Top, b.Right, b.Bottom)
}

// DetectResult defines the attributes of a single object detected
type DetectResult struct {
	// Class is the line number in the labels file the Model was trained on
	// defining the Class of the detected object
	Class int
	// Label is the class name looked up from the labels file, empty when no
	// labels were provided
	Label string
	// Box are the bounding box dimensions of the object location
	Box BoxRect
	// Probability is the confidence score of the object detected
	Probability float32
	// ID is a unique ID assigned to the detection result
	ID int64
}

// Detections is a slice of detect results that satisfies DetectionResult
type Detections []DetectResult

// GetDetectResults returns the object detection results
func (d Detections) GetDetectResults() []DetectResult {
	return d
}
