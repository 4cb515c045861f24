package postprocess

import (
	"testing"

	"go.viam.com/test"
)

func sampleDetections() []DetectResult {
	return []DetectResult{
		{ID: 1, Class: 0, Probability: 0.95, Box: BoxRect{0, 0, 100, 200}},
		{ID: 2, Class: 2, Probability: 0.85, Box: BoxRect{0, 0, 5, 5}},
		{ID: 3, Class: 0, Probability: 0.20, Box: BoxRect{50, 50, 150, 250}},
		{ID: 4, Class: 0, Probability: 0.55, Box: BoxRect{300, 0, 310, 10}},
	}
}

func ids(dets []DetectResult) []int64 {
	out := make([]int64, len(dets))
	for i, d := range dets {
		out[i] = d.ID
	}
	return out
}

func TestScoreFilter(t *testing.T) {
	got := NewScoreFilter(0.5)(sampleDetections())
	test.That(t, ids(got), test.ShouldResemble, []int64{1, 2, 4})
}

func TestClassFilter(t *testing.T) {
	got := NewClassFilter(0)(sampleDetections())
	test.That(t, ids(got), test.ShouldResemble, []int64{1, 3, 4})

	all := NewClassFilter()(sampleDetections())
	test.That(t, all, test.ShouldHaveLength, 4)
}

func TestAreaFilter(t *testing.T) {
	got := NewAreaFilter(101)(sampleDetections())
	test.That(t, ids(got), test.ShouldResemble, []int64{1, 3})

	dets := append(sampleDetections(),
		DetectResult{ID: 5, Probability: 0.9, Box: BoxRect{5, 5, 5, 5}},
		DetectResult{ID: 6, Probability: 0.9, Box: BoxRect{5, 5, 50, 5}},
	)
	got = NewAreaFilter(0)(dets)
	test.That(t, ids(got), test.ShouldResemble, []int64{1, 2, 3, 4})
}

func TestChain(t *testing.T) {
	f := Chain(
		NewClassFilter(0),
		NewScoreFilter(0.5),
		nil,
		NewNMSFilter(0.45),
		NewLimitFilter(1),
	)

	got := f(sampleDetections())
	test.That(t, ids(got), test.ShouldResemble, []int64{1})

	test.That(t, NewLimitFilter(0)(sampleDetections()), test.ShouldHaveLength, 4)
}
