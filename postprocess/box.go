package postprocess

// BoxXYWH is a bounding box in origin plus size form, the layout pose image
// processors expect
type BoxXYWH struct {
	X      float32
	Y      float32
	Width  float32
	Height float32
}

// XYWH converts the corner pair box into origin plus size form
func (b BoxRect) XYWH() BoxXYWH {
	return BoxXYWH{
		X:      b.Left,
		Y:      b.Top,
		Width:  b.Right - b.Left,
		Height: b.Bottom - b.Top,
	}
}

// Rect converts the origin plus size box back into corner pair form
func (b BoxXYWH) Rect() BoxRect {
	return BoxRect{
		Left:   b.X,
		Top:    b.Y,
		Right:  b.X + b.Width,
		Bottom: b.Y + b.Height,
	}
}

// Center returns the center point of the box
func (b BoxXYWH) Center() (float32, float32) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// ToXYWH converts a batch of corner pair boxes
func ToXYWH(boxes []BoxRect) []BoxXYWH {

	out := make([]BoxXYWH, len(boxes))

	for i, b := range boxes {
		out[i] = b.XYWH()
	}

	return out
}

// DetectionBoxes returns the origin plus size boxes of the given detections in
// the same order
func DetectionBoxes(dets []DetectResult) []BoxXYWH {

	out := make([]BoxXYWH, len(dets))

	for i, d := range dets {
		out[i] = d.Box.XYWH()
	}

	return out
}
