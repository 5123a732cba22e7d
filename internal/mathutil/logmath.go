package mathutil

import "math"

// LogZero represents log(0). Unlike a large negative floor, -Inf keeps
// zero-weight transitions excluded for the whole recursion.
var LogZero = math.Inf(-1)

// SafeLog returns log(x), mapping x == 0 to LogZero.
func SafeLog(x float64) float64 {
	if x == 0 {
		return LogZero
	}
	return math.Log(x)
}

// IsLogZero reports whether v represents log(0).
func IsLogZero(v float64) bool {
	return math.IsInf(v, -1)
}

// LogVec returns the element-wise SafeLog of v.
func LogVec(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = SafeLog(x)
	}
	return out
}
