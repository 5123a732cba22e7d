// Package feature loads and prepares the frame-level features produced by an
// audio analysis front end: f0 track, voicing flags, onsets, tuning and tempo.
package feature

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/ieee0824/melody-go/errdefs"
	"github.com/ieee0824/melody-go/model"
	"gopkg.in/yaml.v3"
)

// Track holds the frame-level analysis of one monophonic recording as
// delivered by the audio front end (pYIN-style f0 tracker, onset detector,
// beat tracker).
type Track struct {
	SampleRate int       `json:"sample_rate" yaml:"sample_rate"`
	HopLength  int       `json:"hop_length" yaml:"hop_length"` // samples between frames
	F0         []float64 `json:"f0" yaml:"f0"`                 // Hz per frame; <= 0 means unvoiced
	Voiced     []bool    `json:"voiced,omitempty" yaml:"voiced,omitempty"`
	Tuning     *float64  `json:"tuning,omitempty" yaml:"tuning,omitempty"` // semitone fraction; estimated when nil
	Onsets     []int     `json:"onsets" yaml:"onsets"`                     // onset frame indices
	Tempo      float64   `json:"tempo,omitempty" yaml:"tempo,omitempty"`   // BPM; 0 = unknown
}

// Format selects the on-disk encoding of a Track.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath infers the format from a file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// Load reads a Track from path.
func Load(path string) (*Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("feature: open %q: %w", path, err)
	}
	defer f.Close()
	tr, err := Decode(f, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("feature: %q: %w", path, err)
	}
	return tr, nil
}

// Decode parses a Track from r. Unknown fields are rejected. A missing voiced
// array is derived from F0.
func Decode(r io.Reader, format Format) (*Track, error) {
	tr := &Track{}
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(tr); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(tr); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown feature format %q", format)
	}
	if tr.Voiced == nil {
		tr.Voiced = VoicedFromF0(tr.F0)
	}
	return tr, nil
}

// Encode writes tr to w.
func Encode(w io.Writer, tr *Track, format Format) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(tr)
	case FormatJSON:
		return json.NewEncoder(w).Encode(tr)
	}
	return fmt.Errorf("unknown feature format %q", format)
}

// Frames returns the frame count F.
func (t *Track) Frames() int { return len(t.F0) }

// HopTime returns the seconds between consecutive frames.
func (t *Track) HopTime() float64 {
	return float64(t.HopLength) / float64(t.SampleRate)
}

// Duration returns the analysed length in seconds.
func (t *Track) Duration() float64 {
	return float64(t.Frames()) * t.HopTime()
}

// Validate checks the track is internally consistent.
func (t *Track) Validate() error {
	if t.SampleRate <= 0 {
		return fmt.Errorf("%w: sample_rate %d must be positive", errdefs.ErrInvalidParameter, t.SampleRate)
	}
	if t.HopLength <= 0 {
		return fmt.Errorf("%w: hop_length %d must be positive", errdefs.ErrInvalidParameter, t.HopLength)
	}
	if math.IsNaN(t.Tempo) || math.IsInf(t.Tempo, 0) || t.Tempo < 0 {
		return fmt.Errorf("%w: tempo %v", errdefs.ErrInvalidParameter, t.Tempo)
	}
	if t.Tuning != nil && !(math.Abs(*t.Tuning) <= 0.5) {
		return fmt.Errorf("%w: tuning %v outside [-0.5, 0.5]", errdefs.ErrInvalidParameter, *t.Tuning)
	}
	f := t.Frames()
	if f == 0 {
		return fmt.Errorf("%w: no frames", errdefs.ErrDimensionMismatch)
	}
	if len(t.Voiced) != f {
		return fmt.Errorf("%w: %d voiced flags for %d f0 frames", errdefs.ErrDimensionMismatch, len(t.Voiced), f)
	}
	for _, o := range t.Onsets {
		if o < 0 || o >= f {
			return fmt.Errorf("%w: onset frame %d outside [0,%d)", errdefs.ErrDimensionMismatch, o, f)
		}
	}
	return nil
}

// Observations quantizes the pitch track with the given tuning offset and
// packages the cues for the emission model.
func (t *Track) Observations(tuning float64) model.Observations {
	return model.Observations{
		Pitch:  Quantize(t.F0, tuning),
		Voiced: t.Voiced,
		Onsets: t.Onsets,
	}
}

// VoicedFromF0 flags frames with a usable f0 estimate.
func VoicedFromF0(f0 []float64) []bool {
	v := make([]bool, len(f0))
	for i, f := range f0 {
		v[i] = isVoiced(f)
	}
	return v
}

func isVoiced(f float64) bool {
	return f > 0 && !math.IsInf(f, 1)
}
