// Package midifile writes transcribed notes as a Standard MIDI File and reads
// reference MIDI files back into timed note events.
package midifile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/ieee0824/melody-go/errdefs"
	"github.com/ieee0824/melody-go/notes"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// DefaultTempo is assumed for files without a tempo meta event.
const DefaultTempo = 120.0

// Options controls SMF encoding.
type Options struct {
	TicksPerQuarter uint16 // default 480
	Channel         uint8  // 0-15
	Velocity        uint8  // 1-127, default 100
	TrackName       string
}

// DefaultOptions returns the encoding used for transcriptions.
func DefaultOptions() Options {
	return Options{
		TicksPerQuarter: 480,
		Channel:         0,
		Velocity:        100,
		TrackName:       "melody",
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.TicksPerQuarter == 0 {
		o.TicksPerQuarter = d.TicksPerQuarter
	}
	if o.Velocity == 0 {
		o.Velocity = d.Velocity
	}
	return o
}

// Encode builds a single-track SMF holding a tempo event and one
// note-on/note-off pair per event. Events must be ordered and non-overlapping.
func Encode(events []notes.BeatEvent, bpm float64, opt Options) (*smf.SMF, error) {
	if !(bpm > 0) || math.IsInf(bpm, 0) {
		return nil, fmt.Errorf("midifile: %w: tempo %v BPM", errdefs.ErrInvalidParameter, bpm)
	}
	opt = opt.withDefaults()
	if opt.Channel > 15 {
		return nil, fmt.Errorf("midifile: %w: channel %d", errdefs.ErrInvalidParameter, opt.Channel)
	}
	if opt.Velocity > 127 {
		return nil, fmt.Errorf("midifile: %w: velocity %d", errdefs.ErrInvalidParameter, opt.Velocity)
	}

	tpq := float64(opt.TicksPerQuarter)
	toTicks := func(beats float64) uint32 {
		return uint32(math.Round(beats * tpq))
	}

	var tr smf.Track
	if opt.TrackName != "" {
		tr.Add(0, smf.MetaTrackSequenceName(opt.TrackName))
	}
	tr.Add(0, smf.MetaMeter(4, 4))
	tr.Add(0, smf.MetaTempo(bpm))

	var last uint32
	for i, e := range events {
		if e.Pitch < 0 || e.Pitch > 127 {
			return nil, fmt.Errorf("midifile: %w: event %d pitch %d outside 0-127", errdefs.ErrInvalidParameter, i, e.Pitch)
		}
		if e.OnsetBeats < 0 || e.DurationBeats < 0 {
			return nil, fmt.Errorf("midifile: %w: event %d has negative position", errdefs.ErrInvalidParameter, i)
		}
		on := toTicks(e.OnsetBeats)
		off := toTicks(e.OnsetBeats + e.DurationBeats)
		if on < last {
			return nil, fmt.Errorf("midifile: %w: event %d starts before the previous one ends", errdefs.ErrInvalidParameter, i)
		}
		key := uint8(e.Pitch)
		tr.Add(on-last, midi.NoteOn(opt.Channel, key, opt.Velocity))
		tr.Add(off-on, midi.NoteOff(opt.Channel, key))
		last = off
	}
	tr.Close(0)

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(opt.TicksPerQuarter)
	if err := s.Add(tr); err != nil {
		return nil, fmt.Errorf("midifile: add track: %w", err)
	}
	return s, nil
}

// Write encodes events and writes the SMF to w.
func Write(w io.Writer, events []notes.BeatEvent, bpm float64, opt Options) error {
	s, err := Encode(events, bpm, opt)
	if err != nil {
		return err
	}
	if _, err := s.WriteTo(w); err != nil {
		return fmt.Errorf("midifile: write: %w", err)
	}
	return nil
}

// WriteFile encodes events into the file at path.
func WriteFile(path string, events []notes.BeatEvent, bpm float64, opt Options) error {
	var buf bytes.Buffer
	if err := Write(&buf, events, bpm, opt); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("midifile: %w", err)
	}
	return nil
}

// ReadFile reads note events from the MIDI file at path.
func ReadFile(path string) ([]notes.Event, float64, error) {
	dat, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("midifile: %w", err)
	}
	events, bpm, err := Read(bytes.NewReader(dat))
	if err != nil {
		return nil, 0, fmt.Errorf("%w (%s)", err, path)
	}
	return events, bpm, nil
}

type tempoChange struct {
	tick uint64
	bpm  float64
}

type noteMsg struct {
	tick     uint64
	on       bool
	channel  uint8
	key      uint8
	sequence int
}

// Read parses an SMF and returns its notes in seconds, ordered by onset,
// together with the initial tempo. Tempo changes are honored.
func Read(r io.Reader) (events []notes.Event, bpm float64, err error) {
	// smf.ReadFrom can panic on malformed input
	// https://github.com/gomidi/midi/issues/20
	defer func() {
		if p := recover(); p != nil {
			events, bpm, err = nil, 0, fmt.Errorf("midifile: parse: %v", p)
		}
	}()

	s, err := smf.ReadFrom(r)
	if err != nil {
		return nil, 0, fmt.Errorf("midifile: parse: %w", err)
	}
	mt, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, 0, errors.New("midifile: SMPTE time format is not supported")
	}
	tpq := float64(mt)

	var tempos []tempoChange
	var msgs []noteMsg
	for _, track := range s.Tracks {
		var abs uint64
		for _, ev := range track {
			abs += uint64(ev.Delta)
			var t float64
			if ev.Message.GetMetaTempo(&t) {
				tempos = append(tempos, tempoChange{tick: abs, bpm: t})
				continue
			}
			m := midi.Message(ev.Message)
			var ch, key, vel uint8
			switch {
			case m.GetNoteStart(&ch, &key, &vel):
				msgs = append(msgs, noteMsg{tick: abs, on: true, channel: ch, key: key, sequence: len(msgs)})
			case m.GetNoteEnd(&ch, &key):
				msgs = append(msgs, noteMsg{tick: abs, on: false, channel: ch, key: key, sequence: len(msgs)})
			}
		}
	}

	sort.SliceStable(tempos, func(i, j int) bool { return tempos[i].tick < tempos[j].tick })
	if len(tempos) == 0 || tempos[0].tick > 0 {
		tempos = append([]tempoChange{{tick: 0, bpm: DefaultTempo}}, tempos...)
	}

	// note-offs sort before note-ons at the same tick so back-to-back
	// repeats of one key pair up correctly
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].tick != msgs[j].tick {
			return msgs[i].tick < msgs[j].tick
		}
		if msgs[i].on != msgs[j].on {
			return !msgs[i].on
		}
		return msgs[i].sequence < msgs[j].sequence
	})

	seconds := func(tick uint64) float64 {
		var sec float64
		for i, tc := range tempos {
			end := tick
			if i+1 < len(tempos) && tempos[i+1].tick < tick {
				end = tempos[i+1].tick
			}
			if end <= tc.tick {
				break
			}
			sec += float64(end-tc.tick) / tpq * 60 / tc.bpm
		}
		return sec
	}

	type openKey struct{ channel, key uint8 }
	open := make(map[openKey][]uint64)
	for _, m := range msgs {
		k := openKey{m.channel, m.key}
		if m.on {
			open[k] = append(open[k], m.tick)
			continue
		}
		starts := open[k]
		if len(starts) == 0 {
			continue
		}
		start := starts[0]
		open[k] = starts[1:]
		on, off := seconds(start), seconds(m.tick)
		if off <= on {
			continue
		}
		events = append(events, notes.Event{Onset: on, Offset: off, Pitch: int(m.key)})
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Onset < events[j].Onset })

	return events, tempos[0].bpm, nil
}
