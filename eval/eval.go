// Package eval scores transcribed notes against reference notes.
package eval

import (
	"fmt"
	"math"

	"github.com/ieee0824/melody-go/notes"
)

// Tolerance bounds when an estimated note counts as a match.
type Tolerance struct {
	Onset float64 // seconds
}

// DefaultTolerance is the usual 50 ms onset window.
func DefaultTolerance() Tolerance {
	return Tolerance{Onset: 0.05}
}

// Score is a note-level precision/recall summary.
type Score struct {
	Reference int     `json:"reference"`
	Estimated int     `json:"estimated"`
	Matched   int     `json:"matched"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

func (s Score) String() string {
	return fmt.Sprintf("P=%.3f R=%.3f F=%.3f (%d/%d ref, %d est)",
		s.Precision, s.Recall, s.F1, s.Matched, s.Reference, s.Estimated)
}

// Notes matches each reference note, in order, to the unmatched estimated
// note of the same pitch whose onset is closest and within tol.Onset.
// Both slices are expected to be ordered by onset.
func Notes(ref, est []notes.Event, tol Tolerance) Score {
	s := Score{Reference: len(ref), Estimated: len(est)}
	used := make([]bool, len(est))
	lo := 0
	for _, r := range ref {
		// est is onset-ordered, so everything before lo is too early for
		// this and every later reference note
		for lo < len(est) && est[lo].Onset < r.Onset-tol.Onset {
			lo++
		}
		best, bestDist := -1, math.Inf(1)
		for j := lo; j < len(est) && est[j].Onset <= r.Onset+tol.Onset; j++ {
			if used[j] || est[j].Pitch != r.Pitch {
				continue
			}
			if d := math.Abs(est[j].Onset - r.Onset); d < bestDist {
				best, bestDist = j, d
			}
		}
		if best >= 0 {
			used[best] = true
			s.Matched++
		}
	}
	if s.Estimated > 0 {
		s.Precision = float64(s.Matched) / float64(s.Estimated)
	}
	if s.Reference > 0 {
		s.Recall = float64(s.Matched) / float64(s.Reference)
	}
	if s.Precision+s.Recall > 0 {
		s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
	}
	return s
}

// Sum accumulates scores over several files and recomputes the ratios.
func Sum(scores ...Score) Score {
	var total Score
	for _, s := range scores {
		total.Reference += s.Reference
		total.Estimated += s.Estimated
		total.Matched += s.Matched
	}
	if total.Estimated > 0 {
		total.Precision = float64(total.Matched) / float64(total.Estimated)
	}
	if total.Reference > 0 {
		total.Recall = float64(total.Matched) / float64(total.Reference)
	}
	if total.Precision+total.Recall > 0 {
		total.F1 = 2 * total.Precision * total.Recall / (total.Precision + total.Recall)
	}
	return total
}
