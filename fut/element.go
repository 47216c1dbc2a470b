package fut

import "github.com/x448/float16"

// Element is the set of host types an array can hold.
// Float16 is covered by ~uint16.
type Element interface {
	~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64 | ~bool
}

// Float16 is the host type of f16 values. The bits are passed to C unchanged.
type Float16 = float16.Float16

// ToFloat16 converts f to the nearest half-precision value.
func ToFloat16(f float32) Float16 {
	return float16.Fromfloat32(f)
}

// Float16s converts a float32 slice to half precision.
func Float16s(fs []float32) []Float16 {
	out := make([]Float16, len(fs))
	for i, f := range fs {
		out[i] = float16.Fromfloat32(f)
	}
	return out
}

// Float32s widens a half-precision slice to float32.
func Float32s(hs []Float16) []float32 {
	out := make([]float32, len(hs))
	for i, h := range hs {
		out[i] = h.Float32()
	}
	return out
}
