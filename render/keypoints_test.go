package render

import (
	"bytes"
	"image/color"
	"math"
	"testing"

	"github.com/swdee/go-vitpose/postprocess"
	"go.viam.com/test"
	"gocv.io/x/gocv"
)

func blankImage(w, h int) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), h, w, gocv.MatTypeCV8UC3)
}

// countChanged returns the number of bytes that differ between two buffers
func countChanged(a, b []byte) int {
	n := 0
	for i := range a {
		if a[i] != b[i] {
			n++
		}
	}
	return n
}

func testPose() []postprocess.KeyPoint {
	kps := make([]postprocess.KeyPoint, 17)
	for i := range kps {
		kps[i] = postprocess.KeyPoint{X: float32(10 + i*4), Y: float32(10 + i*3), Score: 0.9}
	}
	return kps
}

func TestDrawBelowThresholdIsNoop(t *testing.T) {

	for _, weighted := range []bool{false, true} {
		img := blankImage(100, 100)
		before := img.ToBytes()

		kps := testPose()
		for i := range kps {
			kps[i].Score = 0.3
		}

		style := DefaultPoseStyle()
		style.ShowKeyPointWeight = weighted
		skel := COCO17()

		DrawPoints(&img, kps, skel.PointColors, style)
		DrawLinks(&img, kps, skel.Edges, skel.LinkColors, style)

		test.That(t, bytes.Equal(before, img.ToBytes()), test.ShouldBeTrue)
		img.Close()
	}
}

func TestDrawInBoundsChangesPixels(t *testing.T) {

	for _, weighted := range []bool{false, true} {
		img := blankImage(100, 100)
		before := img.ToBytes()

		style := DefaultPoseStyle()
		style.ShowKeyPointWeight = weighted

		PoseKeyPoints(&img, []postprocess.PoseResult{{KeyPoints: testPose()}},
			COCO17(), style)

		test.That(t, countChanged(before, img.ToBytes()), test.ShouldBeGreaterThan, 0)
		img.Close()
	}
}

func TestDrawSkipsOutOfBounds(t *testing.T) {

	for _, weighted := range []bool{false, true} {
		img := blankImage(50, 50)
		before := img.ToBytes()

		kps := []postprocess.KeyPoint{
			{X: -20, Y: 10, Score: 1},
			{X: 10, Y: 500, Score: 1},
			{X: 50, Y: 10, Score: 1},
			{X: 0, Y: 0.5, Score: 1},
		}
		edges := []Edge{{0, 1}, {1, 2}, {2, 3}, {0, 3}, {3, 9}}

		style := DefaultPoseStyle()
		style.ShowKeyPointWeight = weighted

		DrawLinks(&img, kps, edges, nil, style)
		DrawPoints(&img, kps[:3], nil, style)

		test.That(t, bytes.Equal(before, img.ToBytes()), test.ShouldBeTrue)
		img.Close()
	}
}

func TestDrawPointAtEdgeIsClipped(t *testing.T) {
	img := blankImage(20, 20)
	defer img.Close()

	style := DefaultPoseStyle()
	style.ShowKeyPointWeight = true

	// circle overlaps the image border and must not fault
	DrawPoints(&img, []postprocess.KeyPoint{{X: 0, Y: 19, Score: 0.8}}, nil, style)

	px := img.GetVecbAt(19, 0)
	test.That(t, px[0], test.ShouldBeGreaterThan, 0)
}

func TestDrawWeightedBlendsByScore(t *testing.T) {

	style := DefaultPoseStyle()
	style.ShowKeyPointWeight = true
	white := []color.RGBA{White}

	tests := []struct {
		score float32
		min   uint8
		max   uint8
	}{
		{0.5, 120, 135},
		{1, 255, 255},
	}

	for _, tc := range tests {
		img := blankImage(50, 50)

		DrawPoints(&img, []postprocess.KeyPoint{{X: 25, Y: 25, Score: tc.score}}, white, style)

		px := img.GetVecbAt(25, 25)
		for c := 0; c < 3; c++ {
			test.That(t, px[c], test.ShouldBeBetweenOrEqual, tc.min, tc.max)
		}
		img.Close()

		img = blankImage(50, 50)

		kps := []postprocess.KeyPoint{
			{X: 10, Y: 25, Score: tc.score},
			{X: 40, Y: 25, Score: tc.score},
		}
		DrawLinks(&img, kps, []Edge{{0, 1}}, white, style)

		px = img.GetVecbAt(25, 25)
		for c := 0; c < 3; c++ {
			test.That(t, px[c], test.ShouldBeBetweenOrEqual, tc.min, tc.max)
		}
		img.Close()
	}
}

func TestDrawSkipsNaN(t *testing.T) {

	nan := float32(math.NaN())

	for _, weighted := range []bool{false, true} {
		img := blankImage(50, 50)
		before := img.ToBytes()

		kps := []postprocess.KeyPoint{
			{X: 10, Y: 10, Score: nan},
			{X: nan, Y: 20, Score: 1},
			{X: 30, Y: nan, Score: 1},
			{X: 40, Y: 40, Score: 1},
		}
		edges := []Edge{{0, 3}, {1, 3}, {2, 3}}

		style := DefaultPoseStyle()
		style.ShowKeyPointWeight = weighted

		DrawLinks(&img, kps, edges, nil, style)
		DrawPoints(&img, kps[:3], nil, style)

		test.That(t, bytes.Equal(before, img.ToBytes()), test.ShouldBeTrue)
		img.Close()
	}
}
