// Package notes turns a decoded note-model state path into timed note events
// and maps them onto a beat grid.
package notes

import (
	"fmt"

	"github.com/ieee0824/melody-go/pitch"
)

// Event is a single sounding note.
type Event struct {
	Onset  float64 `json:"onset"`  // seconds
	Offset float64 `json:"offset"` // seconds, always > Onset
	Pitch  int     `json:"pitch"`  // MIDI note number
}

// Duration returns Offset-Onset in seconds.
func (e Event) Duration() float64 { return e.Offset - e.Onset }

// Name returns the pitch name of the event, e.g. "A3".
func (e Event) Name() string { return pitch.Name(e.Pitch) }

func (e Event) String() string {
	return fmt.Sprintf("%.3f-%.3f %s", e.Onset, e.Offset, e.Name())
}

// BeatEvent is an Event placed on a beat grid.
type BeatEvent struct {
	Event
	OnsetBeats    float64 `json:"onset_beats"`
	DurationBeats float64 `json:"duration_beats"`
}

// Names returns the pitch names of events in order.
func Names(events []Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Name()
	}
	return out
}
