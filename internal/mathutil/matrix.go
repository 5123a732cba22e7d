package mathutil

import (
	"math"

	"golang.org/x/exp/constraints"
	"gonum.org/v1/gonum/mat"
)

// LogDense returns a new matrix holding SafeLog of every element of m.
func LogDense(m mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, _ int, v float64) float64 {
		return SafeLog(v)
	}, m)
	return out
}

// LogDenseT returns the transpose of LogDense(m) as a new dense matrix, so
// that row j holds the log weights of every edge entering state j.
func LogDenseT(m mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(c, r, nil)
	out.Apply(func(_, _ int, v float64) float64 {
		return SafeLog(v)
	}, m.T())
	return out
}

// NonNegative reports whether every element of m is finite and >= 0.
func NonNegative(m mat.Matrix) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				return false
			}
		}
	}
	return true
}

// ArgMax returns the index of the largest element of v. Ties resolve to the
// lowest index. It returns -1 for an empty slice.
func ArgMax[T constraints.Ordered](v []T) int {
	if len(v) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

// Clamp limits x to [lo, hi].
func Clamp[T constraints.Ordered](x, lo, hi T) T {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
