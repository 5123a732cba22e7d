// Package model builds the note-level hidden Markov model used for melody
// transcription: a fixed transition matrix over silence, onset and sustain
// states, and a per-frame emission score matrix derived from acoustic cues.
//
// For a note range of N pitches there are 2N+1 states:
//
//	0       silence
//	2k+1    onset of note k
//	2k+2    sustain of note k
//
// where k = pitch - midiMin.
package model

// State identifies a node of the note model.
type State int

// Silence is the single silence state.
const Silence State = 0

// OnsetOf returns the onset state of note index k.
func OnsetOf(k int) State { return State(2*k + 1) }

// SustainOf returns the sustain state of note index k.
func SustainOf(k int) State { return State(2*k + 2) }

// IsSilence reports whether s is the silence state.
func (s State) IsSilence() bool { return s == Silence }

// IsOnset reports whether s is an onset state (odd).
func (s State) IsOnset() bool { return s > 0 && s%2 == 1 }

// IsSustain reports whether s is a sustain state (even, non-zero).
func (s State) IsSustain() bool { return s > 0 && s%2 == 0 }

// NoteIndex returns the note index k of an onset or sustain state, or -1 for
// silence.
func (s State) NoteIndex() int {
	if s <= 0 {
		return -1
	}
	return (int(s) - 1) / 2
}

// States converts a decoded index path into states.
func States(path []int) []State {
	out := make([]State, len(path))
	for i, p := range path {
		out[i] = State(p)
	}
	return out
}
