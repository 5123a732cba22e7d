package model

import (
	"gonum.org/v1/gonum/mat"
)

// Transition builds the (2N+1)x(2N+1) row-stochastic transition matrix.
//
//   - silence stays silent with PStaySilence and otherwise enters any onset
//     with equal probability.
//   - an onset always moves to the sustain state of the same note.
//   - a sustain state keeps sounding with PStayNote; the remainder is split
//     evenly between silence and the N onsets (including its own, which
//     models a re-articulated note).
func Transition(r NoteRange, p TransitionParams) (*mat.Dense, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	n := r.Len()
	s := r.NumStates()
	t := mat.NewDense(s, s, nil)

	pOnset := (1 - p.PStaySilence) / float64(n)
	pLeave := (1 - p.PStayNote) / float64(n+1)

	// Silence row
	t.Set(int(Silence), int(Silence), p.PStaySilence)
	for k := 0; k < n; k++ {
		t.Set(int(Silence), int(OnsetOf(k)), pOnset)
	}

	for k := 0; k < n; k++ {
		onset := int(OnsetOf(k))
		sustain := int(SustainOf(k))

		// Onset -> own sustain, deterministic
		t.Set(onset, sustain, 1)

		// Sustain row
		row := t.RawRowView(sustain)
		row[int(Silence)] = pLeave
		row[sustain] = p.PStayNote
		for j := 0; j < n; j++ {
			row[int(OnsetOf(j))] = pLeave
		}
	}
	return t, nil
}
