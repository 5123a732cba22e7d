package notes

import (
	"fmt"
	"math"

	"github.com/ieee0824/melody-go/errdefs"
)

// ToBeats places events on a beat grid at the given tempo:
// beats = seconds / (60/bpm).
func ToBeats(events []Event, bpm float64) ([]BeatEvent, error) {
	if !(bpm > 0) || math.IsInf(bpm, 0) {
		return nil, fmt.Errorf("%w: tempo %v BPM must be positive", errdefs.ErrInvalidParameter, bpm)
	}
	beat := 60 / bpm
	out := make([]BeatEvent, len(events))
	for i, e := range events {
		on := e.Onset / beat
		off := e.Offset / beat
		out[i] = BeatEvent{
			Event:         e,
			OnsetBeats:    on,
			DurationBeats: off - on,
		}
	}
	return out, nil
}

// Events strips the beat positions.
func Events(beats []BeatEvent) []Event {
	out := make([]Event, len(beats))
	for i, b := range beats {
		out[i] = b.Event
	}
	return out
}
