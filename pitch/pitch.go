// Package pitch converts between frequencies, MIDI note numbers and
// scientific pitch names (C4 = 60, A4 = 440 Hz).
package pitch

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ReferenceHz is the frequency of A4 (MIDI 69).
const ReferenceHz = 440.0

var sharpNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var letterSemitone = map[byte]int{
	'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11,
}

// HzToMIDI returns the fractional MIDI note number of f. f must be > 0.
func HzToMIDI(f float64) float64 {
	return 12*math.Log2(f/ReferenceHz) + 69
}

// MIDIToHz returns the frequency of the (possibly fractional) note m.
func MIDIToHz(m float64) float64 {
	return ReferenceHz * math.Pow(2, (m-69)/12)
}

// Name returns the pitch name of a MIDI note, spelled with sharps (e.g. "C#4").
func Name(midi int) string {
	pc := ((midi % 12) + 12) % 12
	octave := floorDiv(midi, 12) - 1
	return sharpNames[pc] + strconv.Itoa(octave)
}

// ParseName parses a pitch name such as "A2", "C#4", "Bb3", "E♭5" or "C-1".
// Accidentals may be repeated ("F##3").
func ParseName(s string) (int, error) {
	name := strings.TrimSpace(s)
	if name == "" {
		return 0, fmt.Errorf("pitch: empty note name")
	}
	base, ok := letterSemitone[upper(name[0])]
	if !ok {
		return 0, fmt.Errorf("pitch: invalid note letter in %q", s)
	}
	rest := name[1:]
	offset := 0
accidentals:
	for rest != "" {
		switch {
		case strings.HasPrefix(rest, "#"):
			offset++
			rest = rest[1:]
		case strings.HasPrefix(rest, "♯"):
			offset++
			rest = rest[len("♯"):]
		case strings.HasPrefix(rest, "b"):
			offset--
			rest = rest[1:]
		case strings.HasPrefix(rest, "♭"):
			offset--
			rest = rest[len("♭"):]
		default:
			break accidentals
		}
	}
	if rest == "" {
		return 0, fmt.Errorf("pitch: missing octave in %q", s)
	}
	oct, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("pitch: invalid octave in %q: %w", s, err)
	}
	return (oct+1)*12 + base + offset, nil
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
