package kserve

import "github.com/x448/float16"

// halfTable maps every FP16 bit pattern to its float32 value so binary FP16
// outputs decode with a single lookup per element
var halfTable = func() *[1 << 16]float32 {
	var t [1 << 16]float32
	for i := range t {
		t[i] = float16.Frombits(uint16(i)).Float32()
	}
	return &t
}()

// halfToFloat32 converts the bits of an IEEE 754 half precision value
func halfToFloat32(bits uint16) float32 {
	return halfTable[bits]
}
