package feature

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ieee0824/melody-go/errdefs"
	"github.com/ieee0824/melody-go/model"
	"github.com/ieee0824/melody-go/pitch"
)

const sampleJSON = `{
  "sample_rate": 22050,
  "hop_length": 256,
  "f0": [0, 220, 220, 233.08, 0],
  "voiced": [false, true, true, true, false],
  "tuning": 0.0,
  "onsets": [1, 3],
  "tempo": 96
}`

func TestDecodeJSON(t *testing.T) {
	tr, err := Decode(strings.NewReader(sampleJSON), FormatJSON)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if err := tr.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if tr.Frames() != 5 || tr.Tempo != 96 || tr.Tuning == nil {
		t.Errorf("unexpected track: %+v", tr)
	}
	if got, want := tr.HopTime(), 256.0/22050; math.Abs(got-want) > 1e-15 {
		t.Errorf("HopTime = %f, want %f", got, want)
	}
}

func TestDecodeYAMLDerivesVoiced(t *testing.T) {
	src := `
sample_rate: 16000
hop_length: 160
f0: [0, 440, 440]
onsets: [1]
`
	tr, err := Decode(strings.NewReader(src), FormatYAML)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if want := []bool{false, true, true}; !reflect.DeepEqual(tr.Voiced, want) {
		t.Errorf("Voiced = %v, want %v", tr.Voiced, want)
	}
	if tr.Tuning != nil {
		t.Errorf("Tuning = %v, want nil", *tr.Tuning)
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	if _, err := Decode(strings.NewReader(`{"sample_rate": 1, "pitch": []}`), FormatJSON); err == nil {
		t.Error("expected error for unknown JSON field")
	}
	if _, err := Decode(strings.NewReader("sample_rate: 1\npitch: []\n"), FormatYAML); err == nil {
		t.Error("expected error for unknown YAML field")
	}
}

func TestLoadAndEncodeRoundTrip(t *testing.T) {
	tuning := 0.1
	orig := &Track{
		SampleRate: 22050,
		HopLength:  512,
		F0:         []float64{0, 110, 110.5},
		Voiced:     []bool{false, true, true},
		Tuning:     &tuning,
		Onsets:     []int{1},
		Tempo:      120,
	}
	dir := t.TempDir()
	for _, name := range []string{"a.json", "a.yaml"} {
		var buf bytes.Buffer
		if err := Encode(&buf, orig, FormatFromPath(name)); err != nil {
			t.Fatalf("Encode %s: %v", name, err)
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			t.Fatal(err)
		}
		got, err := Load(path)
		if err != nil {
			t.Fatalf("Load %s: %v", name, err)
		}
		if !reflect.DeepEqual(got, orig) {
			t.Errorf("%s: round trip = %+v, want %+v", name, got, orig)
		}
	}
}

func TestValidate(t *testing.T) {
	base := func() *Track {
		return &Track{
			SampleRate: 22050,
			HopLength:  256,
			F0:         []float64{0, 220},
			Voiced:     []bool{false, true},
			Onsets:     []int{1},
		}
	}
	bigTuning := 0.7
	tests := []struct {
		name   string
		mutate func(*Track)
		want   error
	}{
		{"ok", func(*Track) {}, nil},
		{"no frames", func(tr *Track) { tr.F0, tr.Voiced = nil, nil }, errdefs.ErrDimensionMismatch},
		{"voiced mismatch", func(tr *Track) { tr.Voiced = []bool{true} }, errdefs.ErrDimensionMismatch},
		{"onset out of range", func(tr *Track) { tr.Onsets = []int{2} }, errdefs.ErrDimensionMismatch},
		{"zero sample rate", func(tr *Track) { tr.SampleRate = 0 }, errdefs.ErrInvalidParameter},
		{"zero hop", func(tr *Track) { tr.HopLength = 0 }, errdefs.ErrInvalidParameter},
		{"negative tempo", func(tr *Track) { tr.Tempo = -1 }, errdefs.ErrInvalidParameter},
		{"tuning too large", func(tr *Track) { tr.Tuning = &bigTuning }, errdefs.ErrInvalidParameter},
	}
	for _, tt := range tests {
		tr := base()
		tt.mutate(tr)
		err := tr.Validate()
		if tt.want == nil {
			if err != nil {
				t.Errorf("%s: unexpected error %v", tt.name, err)
			}
			continue
		}
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}
}

func TestQuantize(t *testing.T) {
	f0 := []float64{0, -1, math.NaN(), 440, pitch.MIDIToHz(60.4), pitch.MIDIToHz(60.6)}
	got := Quantize(f0, 0)
	want := []int{model.Unvoiced, model.Unvoiced, model.Unvoiced, 69, 60, 61}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Quantize(tuning=0) = %v, want %v", got, want)
	}
	// A +0.3 semitone sharp recording quantizes to the intended notes.
	got = Quantize([]float64{pitch.MIDIToHz(60.3), pitch.MIDIToHz(62.3)}, 0.3)
	if want := []int{60, 62}; !reflect.DeepEqual(got, want) {
		t.Errorf("Quantize(tuning=0.3) = %v, want %v", got, want)
	}
}

func TestEstimateTuning(t *testing.T) {
	if got := EstimateTuning([]float64{0, 0}); got != 0 {
		t.Errorf("EstimateTuning(unvoiced) = %f, want 0", got)
	}

	var f0 []float64
	for _, m := range []float64{57.205, 59.205, 60.205, 64.205, 62.205} {
		f0 = append(f0, pitch.MIDIToHz(m), 0)
	}
	f0 = append(f0, pitch.MIDIToHz(61.0)) // outlier
	got := EstimateTuning(f0)
	if math.Abs(got-0.2) > 1e-9 {
		t.Errorf("EstimateTuning = %f, want 0.20", got)
	}

	flat := []float64{pitch.MIDIToHz(59.655), pitch.MIDIToHz(61.655)}
	if got := EstimateTuning(flat); math.Abs(got-(-0.35)) > 1e-9 {
		t.Errorf("EstimateTuning(flat) = %f, want -0.35", got)
	}
}

func TestObservations(t *testing.T) {
	tr, err := Decode(strings.NewReader(sampleJSON), FormatJSON)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	obs := tr.Observations(0)
	if err := obs.Validate(); err != nil {
		t.Fatalf("Observations invalid: %v", err)
	}
	if want := []int{model.Unvoiced, 57, 57, 58, model.Unvoiced}; !reflect.DeepEqual(obs.Pitch, want) {
		t.Errorf("Pitch = %v, want %v", obs.Pitch, want)
	}
}
