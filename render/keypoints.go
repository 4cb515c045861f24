package render

import (
	"image"
	"image/color"
	"math"

	"github.com/swdee/go-vitpose/postprocess"
	"gocv.io/x/gocv"
)

// stickWidth is the half width of the ellipse drawn for a weighted link
const stickWidth = 2

// PoseKeyPoints renders the links and joints of every pose onto the image
func PoseKeyPoints(img *gocv.Mat, poses []postprocess.PoseResult, skel Skeleton,
	style PoseStyle) {

	for _, pose := range poses {
		// links first so the joints sit on top of them
		DrawLinks(img, pose.KeyPoints, skel.Edges, skel.LinkColors, style)
		DrawPoints(img, pose.KeyPoints, skel.PointColors, style)
	}
}

// DrawPoints draws a filled circle for every keypoint scoring above the style
// threshold that lies within the image.  Keypoints without a matching color
// are drawn in white.
func DrawPoints(img *gocv.Mat, keyPoints []postprocess.KeyPoint, colors []color.RGBA,
	style PoseStyle) {

	w, h := float32(img.Cols()), float32(img.Rows())

	for i, kp := range keyPoints {

		// positive comparisons so NaN scores and coordinates are skipped
		if !(kp.Score > style.Threshold) || !inside(kp, w, h) {
			continue
		}

		clr := colorAt(colors, i)
		center := image.Pt(int(kp.X), int(kp.Y))

		if !style.ShowKeyPointWeight {
			gocv.Circle(img, center, style.Radius, clr, -1)
			continue
		}

		bounds := image.Rect(center.X-style.Radius, center.Y-style.Radius,
			center.X+style.Radius+1, center.Y+style.Radius+1)

		blend(img, bounds, clampUnit(kp.Score), func(dst *gocv.Mat, origin image.Point) {
			gocv.Circle(dst, center.Sub(origin), style.Radius, clr, -1)
		})
	}
}

// DrawLinks draws each skeleton edge whose endpoints both score above the style
// threshold and lie strictly inside the image.  Edges referencing missing
// keypoints are skipped.
func DrawLinks(img *gocv.Mat, keyPoints []postprocess.KeyPoint, edges []Edge,
	colors []color.RGBA, style PoseStyle) {

	w, h := float32(img.Cols()), float32(img.Rows())

	for i, e := range edges {

		if e.From < 0 || e.To < 0 || e.From >= len(keyPoints) || e.To >= len(keyPoints) {
			continue
		}

		p1, p2 := keyPoints[e.From], keyPoints[e.To]

		if !(p1.Score > style.Threshold) || !(p2.Score > style.Threshold) {
			continue
		}

		if !strictlyInside(p1, w, h) || !strictlyInside(p2, w, h) {
			continue
		}

		clr := colorAt(colors, i)
		pt1 := image.Pt(int(p1.X), int(p1.Y))
		pt2 := image.Pt(int(p2.X), int(p2.Y))

		if !style.ShowKeyPointWeight {
			gocv.Line(img, pt1, pt2, clr, style.LineThickness)
			continue
		}

		// filled ellipse segment along the link
		dx := float64(p1.X - p2.X)
		dy := float64(p1.Y - p2.Y)
		length := math.Sqrt(dx*dx + dy*dy)
		angle := math.Atan2(dy, dx) * 180 / math.Pi
		mid := image.Pt(int((p1.X+p2.X)/2), int((p1.Y+p2.Y)/2))
		axes := image.Pt(int(length/2), stickWidth)

		bounds := image.Rectangle{Min: pt1, Max: pt2}.Canon().
			Inset(-(stickWidth + 1))
		alpha := clampUnit(0.5 * (p1.Score + p2.Score))

		blend(img, bounds, alpha, func(dst *gocv.Mat, origin image.Point) {
			gocv.Ellipse(dst, mid.Sub(origin), axes, angle, 0, 360, clr, -1)
		})
	}
}

// blend runs draw on a copy of the image region within bounds and mixes the
// copy back with the given alpha.  Only pixels inside the image are touched.
func blend(img *gocv.Mat, bounds image.Rectangle, alpha float64,
	draw func(dst *gocv.Mat, origin image.Point)) {

	r := bounds.Intersect(image.Rect(0, 0, img.Cols(), img.Rows()))

	if r.Empty() {
		return
	}

	roi := img.Region(r)
	defer roi.Close()

	overlay := roi.Clone()
	defer overlay.Close()

	draw(&overlay, r.Min)

	gocv.AddWeighted(overlay, alpha, roi, 1-alpha, 0, &roi)
}

func inside(kp postprocess.KeyPoint, w, h float32) bool {
	return kp.X >= 0 && kp.X < w && kp.Y >= 0 && kp.Y < h
}

func strictlyInside(kp postprocess.KeyPoint, w, h float32) bool {
	return kp.X > 0 && kp.X < w && kp.Y > 0 && kp.Y < h
}

func clampUnit(v float32) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return float64(v)
}

func colorAt(colors []color.RGBA, i int) color.RGBA {
	if i < len(colors) {
		return colors[i]
	}
	return White
}
