package utils

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Default tolerances used for comparing accumulated floating point values
const (
	DefaultRelTol = 1e-5
	DefaultAbsTol = 1e-8
)

// IsClose reports whether |a-b| <= atol + rtol*|b|
func IsClose(a, b float64) bool {
	return IsCloseTol(a, b, DefaultRelTol, DefaultAbsTol)
}

// IsCloseTol is IsClose with explicit tolerances
func IsCloseTol(a, b, rtol, atol float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return false
	}
	return math.Abs(a-b) <= atol+rtol*math.Abs(b)
}

// Norm returns the Euclidean norm of v, zero for a nil vector
func Norm(v mat.Vector) float64 {
	if v == nil {
		return 0
	}
	return mat.Norm(v, 2)
}

// IsZero reports whether the norm of v is numerically zero
func IsZero(v mat.Vector) bool {
	return IsClose(Norm(v), 0)
}

// MinMax returns the minimum and maximum of a float64 slice
func MinMax(s []float64) (min, max float64) {
	if len(s) == 0 {
		return 0, 0
	}
	return floats.Min(s), floats.Max(s)
}

// MatrixMinMax extracts the minimum and maximum values from a matrix
func MatrixMinMax(m mat.Matrix) (min, max float64) {
	if m == nil {
		return 0, 0
	}

	r, c := m.Dims()
	if r == 0 || c == 0 {
		return 0, 0
	}

	min = m.At(0, 0)
	max = min
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			val := m.At(i, j)
			if val < min {
				min = val
			}
			if val > max {
				max = val
			}
		}
	}
	return min, max
}
