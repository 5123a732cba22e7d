// Package decoder implements maximum-likelihood state path decoding over a
// dense transition matrix and a per-frame emission score matrix.
package decoder

import (
	"fmt"
	"math"

	"github.com/ieee0824/melody-go/errdefs"
	"github.com/ieee0824/melody-go/internal/mathutil"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Path is the decoded state sequence and its joint log score.
type Path struct {
	States  []int
	LogProb float64
}

// UnitInit returns an initial distribution of length n with all mass on state.
func UnitInit(n, state int) []float64 {
	p := make([]float64, n)
	p[state] = 1
	return p
}

// Viterbi returns the most likely state path through the trellis defined by
// trans (SxS, row-stochastic), emit (SxF, non-negative scores) and init
// (length S).
//
// The recursion runs in the log domain; zero weights become -Inf and stay
// excluded. Ties between predecessors, and between terminal states, resolve
// to the lowest state index.
func Viterbi(trans, emit mat.Matrix, init []float64) (*Path, error) {
	S, sc := trans.Dims()
	if S != sc {
		return nil, fmt.Errorf("%w: %w: transition matrix is %dx%d", errdefs.ErrDecode, errdefs.ErrDimensionMismatch, S, sc)
	}
	es, F := emit.Dims()
	if es != S {
		return nil, fmt.Errorf("%w: %w: emission matrix has %d states, transition matrix %d", errdefs.ErrDecode, errdefs.ErrDimensionMismatch, es, S)
	}
	if len(init) != S {
		return nil, fmt.Errorf("%w: %w: initial distribution has %d states, want %d", errdefs.ErrDecode, errdefs.ErrDimensionMismatch, len(init), S)
	}
	if F == 0 {
		return nil, fmt.Errorf("%w: %w: no frames", errdefs.ErrDecode, errdefs.ErrDimensionMismatch)
	}
	if !mathutil.NonNegative(trans) || !mathutil.NonNegative(emit) {
		return nil, fmt.Errorf("%w: %w: negative or non-finite weight", errdefs.ErrDecode, errdefs.ErrInvalidParameter)
	}
	for _, p := range init {
		if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
			return nil, fmt.Errorf("%w: %w: invalid initial probability %v", errdefs.ErrDecode, errdefs.ErrInvalidParameter, p)
		}
	}

	// Row j of logTransIn holds log T[., j]; row t of logEmit holds log P[., t].
	logTransIn := mathutil.LogDenseT(trans)
	logEmit := mathutil.LogDenseT(emit)

	// Double-buffered score vectors
	prev := make([]float64, S)
	curr := make([]float64, S)
	cand := make([]float64, S)

	floats.AddTo(prev, mathutil.LogVec(init), logEmit.RawRowView(0))
	if allLogZero(prev) {
		return nil, fmt.Errorf("%w: no state reachable at frame 0", errdefs.ErrDecode)
	}

	// Backpointer table: bp[t][j] = best predecessor of state j at frame t.
	bp := make([][]int32, F)
	store := make([]int32, F*S)
	for t := range bp {
		bp[t] = store[t*S : (t+1)*S]
	}

	for t := 1; t < F; t++ {
		emitT := logEmit.RawRowView(t)
		for j := 0; j < S; j++ {
			floats.AddTo(cand, prev, logTransIn.RawRowView(j))
			best := floats.MaxIdx(cand)
			bp[t][j] = int32(best)
			curr[j] = cand[best] + emitT[j]
		}
		if allLogZero(curr) {
			return nil, fmt.Errorf("%w: every path has zero probability at frame %d", errdefs.ErrDecode, t)
		}
		prev, curr = curr, prev
	}

	// Termination and backtrace
	last := mathutil.ArgMax(prev)
	path := make([]int, F)
	path[F-1] = last
	for t := F - 1; t > 0; t-- {
		path[t-1] = int(bp[t][path[t]])
	}

	return &Path{States: path, LogProb: prev[last]}, nil
}

func allLogZero(v []float64) bool {
	for _, x := range v {
		if !mathutil.IsLogZero(x) {
			return false
		}
	}
	return true
}
