package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/swdee/go-vitpose/postprocess"
	"gocv.io/x/gocv"
)

// boxLabel holds a precalculated box label for rendering after all boxes
type boxLabel struct {
	rect    image.Rectangle
	clr     color.RGBA
	text    string
	textPos image.Point
}

// DetectionBoxes renders the bounding boxes around the objects detected.  The
// label text is the detection Label, falling back to classNames when the
// detection has none.
func DetectionBoxes(img *gocv.Mat, detectResults []postprocess.DetectResult,
	classNames []string, font Font, lineThickness int) {

	// keep a record of all box labels for later rendering
	boxLabels := make([]boxLabel, 0, len(detectResults))

	for i, detResult := range detectResults {

		useClr := ClassColor(i)
		rect := detResult.Box.Rect()

		gocv.Rectangle(img, rect, useClr, lineThickness)

		text := fmt.Sprintf("%s %.2f", labelText(detResult, classNames),
			detResult.Probability)

		boxLabels = append(boxLabels, placeLabel(rect, text, useClr, font, lineThickness))
	}

	// draw labels last so they are the top most layer on the image
	drawLabels(img, boxLabels, font)
}

// PoseBoxes renders the detection box of every pose result
func PoseBoxes(img *gocv.Mat, poses []postprocess.PoseResult, classNames []string,
	font Font, lineThickness int) {

	dets := make([]postprocess.DetectResult, len(poses))

	for i, p := range poses {
		dets[i] = p.Detection
	}

	DetectionBoxes(img, dets, classNames, font, lineThickness)
}

func labelText(det postprocess.DetectResult, classNames []string) string {

	if det.Label != "" {
		return det.Label
	}

	if det.Class >= 0 && det.Class < len(classNames) {
		return classNames[det.Class]
	}

	return fmt.Sprintf("class %d", det.Class)
}

// placeLabel calculates where the label of a box is drawn
func placeLabel(rect image.Rectangle, text string, clr color.RGBA, font Font,
	lineThickness int) boxLabel {

	textSize := gocv.GetTextSize(text, font.Face, font.Scale, font.Thickness)

	// Calculate the alignment of text label
	var centerX int

	switch font.Alignment {
	case Center:
		centerX = (rect.Min.X + rect.Max.X) / 2

	case Right:
		centerX = rect.Max.X - (textSize.X / 2) - font.RightPad + (lineThickness / 2)

	case Left:
		fallthrough
	default:
		centerX = rect.Min.X + (textSize.X / 2) + font.LeftPad - (lineThickness / 2)
	}

	return boxLabel{
		rect: image.Rect(centerX-textSize.X/2-font.LeftPad,
			rect.Min.Y-textSize.Y-font.TopPad-font.BottomPad,
			centerX+textSize.X/2+font.RightPad, rect.Min.Y),
		clr:     clr,
		text:    text,
		textPos: image.Pt(centerX-textSize.X/2, rect.Min.Y-font.BottomPad),
	}
}

func drawLabels(img *gocv.Mat, labels []boxLabel, font Font) {
	for _, box := range labels {
		// draw box text gets written on
		gocv.Rectangle(img, box.rect, box.clr, -1)

		gocv.PutTextWithParams(img, box.text, box.textPos,
			font.Face, font.Scale, font.Color, font.Thickness,
			font.LineType, false)
	}
}
