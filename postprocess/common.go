package postprocess

import (
	"math"
)

// clamp restricts the value to be within the range min and max
func clamp(val, min, max float32) float32 {

	if val > min {

		if val < max {
			return val
		}

		return max
	}

	return min
}

// clampBox restricts a box to the image dimensions
func clampBox(b BoxRect, width, height int) BoxRect {
	return BoxRect{
		Left:   clamp(b.Left, 0, float32(width)),
		Top:    clamp(b.Top, 0, float32(height)),
		Right:  clamp(b.Right, 0, float32(width)),
		Bottom: clamp(b.Bottom, 0, float32(height)),
	}
}

// quickSortIndiceInverse is a quick sort algorithm that sorts the probs
// vector in descending order and synchronously updates the indices vector to
// track the reordering of elements
func quickSortIndiceInverse(input []float32, left int, right int, indices []int) int {

	var key float32
	var keyIndex int

	low := left
	high := right

	if left < right {
		keyIndex = indices[left]
		key = input[left]

		for low < high {
			for low < high && input[high] <= key {
				high--
			}

			input[low] = input[high]
			indices[low] = indices[high]

			for low < high && input[low] >= key {
				low++
			}

			input[high] = input[low]
			indices[high] = indices[low]
		}

		input[low] = key
		indices[low] = keyIndex

		quickSortIndiceInverse(input, left, low-1, indices)
		quickSortIndiceInverse(input, low+1, right, indices)
	}

	return low
}

// NMS implements a class wise Non-Maximum Suppression (NMS) algorithm.  The
// returned detections are ordered by descending probability.  A threshold
// of zero or less disables suppression and only sorts.
func NMS(dets []DetectResult, threshold float32) []DetectResult {

	if len(dets) == 0 {
		return dets
	}

	probs := make([]float32, len(dets))
	order := make([]int, len(dets))

	for i, d := range dets {
		probs[i] = d.Probability
		order[i] = i
	}

	quickSortIndiceInverse(probs, 0, len(dets)-1, order)

	if threshold > 0 {
		for i := 0; i < len(order); i++ {

			if order[i] == -1 {
				continue
			}

			n := dets[order[i]]

			for j := i + 1; j < len(order); j++ {
				if order[j] == -1 {
					continue
				}

				m := dets[order[j]]

				if m.Class != n.Class {
					continue
				}

				if calculateOverlap(n.Box, m.Box) > threshold {
					order[j] = -1
				}
			}
		}
	}

	out := make([]DetectResult, 0, len(order))

	for _, idx := range order {
		if idx != -1 {
			out = append(out, dets[idx])
		}
	}

	return out
}

// calculateOverlap works out the Intersection of Union (IoU) value of two
// boxes dimensions
func calculateOverlap(a, b BoxRect) float32 {

	w := math.Max(0.0, math.Min(float64(a.Right), float64(b.Right))-math.Max(float64(a.Left), float64(b.Left))+1.0)
	h := math.Max(0.0, math.Min(float64(a.Bottom), float64(b.Bottom))-math.Max(float64(a.Top), float64(b.Top))+1.0)
	intersection := w * h

	// add 1.0 for inclusive pixel calculation
	area0 := (a.Right - a.Left + 1) * (a.Bottom - a.Top + 1)
	area1 := (b.Right - b.Left + 1) * (b.Bottom - b.Top + 1)

	union := area0 + area1 - float32(intersection)

	if union <= 0 {
		return 0.0
	}

	return float32(intersection) / union
}
