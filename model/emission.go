package model

import (
	"fmt"
	"math"

	"github.com/ieee0824/melody-go/errdefs"
	"gonum.org/v1/gonum/mat"
)

// Unvoiced marks a frame without a pitch estimate in Observations.Pitch.
const Unvoiced = math.MinInt32

// Observations are the per-frame acoustic cues for one recording.
type Observations struct {
	Pitch  []int  // quantized MIDI pitch per frame, or Unvoiced
	Voiced []bool // voiced flag per frame
	Onsets []int  // frame indices of detected onsets
}

// Frames returns the frame count F.
func (o Observations) Frames() int { return len(o.Pitch) }

// Validate checks the arrays are non-empty and consistent.
func (o Observations) Validate() error {
	f := len(o.Pitch)
	if f == 0 {
		return fmt.Errorf("%w: no frames", errdefs.ErrDimensionMismatch)
	}
	if len(o.Voiced) != f {
		return fmt.Errorf("%w: %d voiced flags for %d pitch frames", errdefs.ErrDimensionMismatch, len(o.Voiced), f)
	}
	for _, t := range o.Onsets {
		if t < 0 || t >= f {
			return fmt.Errorf("%w: onset frame %d outside [0,%d)", errdefs.ErrDimensionMismatch, t, f)
		}
	}
	return nil
}

// Emission builds the (2N+1)xF emission score matrix.
//
// The three cues are scored independently per state and are not normalized
// per frame:
//
//	silence:  VoicedAcc if the frame is unvoiced, else 1-VoicedAcc
//	onset k:  OnsetAcc if the frame is a detected onset, else 1-OnsetAcc
//	sustain k: PitchAcc if pitch(k) equals the frame pitch,
//	           PitchAcc*Spread if it is one semitone away, else 1-PitchAcc
//
// Spread is applied to sustain states only; onset states rely on the onset
// detector alone.
func Emission(r NoteRange, obs Observations, p EmissionParams) (*mat.Dense, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := obs.Validate(); err != nil {
		return nil, err
	}

	n := r.Len()
	f := obs.Frames()
	e := mat.NewDense(r.NumStates(), f, nil)

	// Silence row
	silence := e.RawRowView(int(Silence))
	for t, voiced := range obs.Voiced {
		if voiced {
			silence[t] = 1 - p.VoicedAcc
		} else {
			silence[t] = p.VoicedAcc
		}
	}

	// Onset rows are identical; build one and copy it.
	onsetRow := make([]float64, f)
	for t := range onsetRow {
		onsetRow[t] = 1 - p.OnsetAcc
	}
	for _, t := range obs.Onsets {
		onsetRow[t] = p.OnsetAcc
	}
	for k := 0; k < n; k++ {
		copy(e.RawRowView(int(OnsetOf(k))), onsetRow)
	}

	// Sustain rows
	miss := 1 - p.PitchAcc
	near := p.PitchAcc * p.Spread
	for k := 0; k < n; k++ {
		row := e.RawRowView(int(SustainOf(k)))
		target := r.Pitch(k)
		for t, q := range obs.Pitch {
			row[t] = miss
			if q == Unvoiced {
				continue
			}
			switch d := target - q; {
			case d == 0:
				row[t] = p.PitchAcc
			case d == 1 || d == -1:
				row[t] = near
			}
		}
	}
	return e, nil
}
