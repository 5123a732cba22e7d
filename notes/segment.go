package notes

import (
	"fmt"
	"math"

	"github.com/ieee0824/melody-go/errdefs"
	"github.com/ieee0824/melody-go/model"
)

type phase int

const (
	phaseSilence phase = iota
	phaseOnset
	phaseSustain
)

// Segment converts a decoded state sequence into note events.
//
// A note opens on an onset state, is confirmed by a sustain state, and closes
// on silence or on the next onset (back-to-back notes). Frame i maps to time
// i*hopTime. Inputs a well-formed transition model never produces, such as
// silence right after an onset, leave the current phase unchanged.
func Segment(states []model.State, hopTime float64, midiMin int) ([]Event, error) {
	if !(hopTime > 0) || math.IsInf(hopTime, 0) {
		return nil, fmt.Errorf("%w: hop time %v must be positive", errdefs.ErrInvalidParameter, hopTime)
	}

	// One synthetic silence frame after the last real frame closes a note
	// that is still sounding at the end of the recording.
	seq := make([]model.State, len(states)+1)
	copy(seq, states)
	seq[len(states)] = model.Silence
	sentinel := len(states)

	var (
		out   []Event
		cur   Event
		state = phaseSilence
	)
	open := func(i int, s model.State) {
		cur = Event{
			Onset: float64(i) * hopTime,
			Pitch: s.NoteIndex() + midiMin,
		}
		state = phaseOnset
	}
	closeAt := func(i int) {
		cur.Offset = float64(i) * hopTime
		out = append(out, cur)
		state = phaseSilence
	}

	for i, s := range seq {
		switch state {
		case phaseSilence:
			if s.IsOnset() {
				open(i, s)
			}
		case phaseOnset:
			switch {
			case s.IsSustain():
				state = phaseSustain
			case i == sentinel:
				closeAt(i)
			}
		case phaseSustain:
			switch {
			case s.IsSilence():
				closeAt(i)
			case s.IsOnset():
				closeAt(i)
				open(i, s)
			}
		}
	}
	return out, nil
}
