package model

import (
	"fmt"

	"github.com/ieee0824/melody-go/errdefs"
	"github.com/ieee0824/melody-go/pitch"
)

// NoteRange is an inclusive range of MIDI pitches [Min, Max].
type NoteRange struct {
	Min int
	Max int
}

// DefaultNoteRange is A2..E6, a comfortable span for voice and most
// melodic instruments.
var DefaultNoteRange = NoteRange{Min: 45, Max: 88}

// NewNoteRange returns a validated range.
func NewNoteRange(lo, hi int) (NoteRange, error) {
	r := NoteRange{Min: lo, Max: hi}
	if err := r.Validate(); err != nil {
		return NoteRange{}, err
	}
	return r, nil
}

// ParseNoteRange builds a range from pitch names such as "A2" and "E6".
func ParseNoteRange(lo, hi string) (NoteRange, error) {
	minPitch, err := pitch.ParseName(lo)
	if err != nil {
		return NoteRange{}, fmt.Errorf("%w: %w", errdefs.ErrInvalidRange, err)
	}
	maxPitch, err := pitch.ParseName(hi)
	if err != nil {
		return NoteRange{}, fmt.Errorf("%w: %w", errdefs.ErrInvalidRange, err)
	}
	return NewNoteRange(minPitch, maxPitch)
}

// Validate checks that the range holds at least one note.
func (r NoteRange) Validate() error {
	if r.Max < r.Min {
		return fmt.Errorf("%w: max %d < min %d", errdefs.ErrInvalidRange, r.Max, r.Min)
	}
	return nil
}

// Len returns the number of notes N.
func (r NoteRange) Len() int {
	if r.Max < r.Min {
		return 0
	}
	return r.Max - r.Min + 1
}

// NumStates returns 2N+1.
func (r NoteRange) NumStates() int { return 2*r.Len() + 1 }

// Contains reports whether midi lies in the range.
func (r NoteRange) Contains(midi int) bool {
	return midi >= r.Min && midi <= r.Max
}

// Pitch returns the MIDI pitch of note index k.
func (r NoteRange) Pitch(k int) int { return r.Min + k }

func (r NoteRange) String() string {
	return pitch.Name(r.Min) + ".." + pitch.Name(r.Max)
}
