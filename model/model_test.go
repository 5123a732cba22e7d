package model

import (
	"errors"
	"math"
	"testing"

	"github.com/ieee0824/melody-go/errdefs"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func TestStateHelpers(t *testing.T) {
	tests := []struct {
		s       State
		onset   bool
		sustain bool
		note    int
	}{
		{Silence, false, false, -1},
		{1, true, false, 0},
		{2, false, true, 0},
		{5, true, false, 2},
		{6, false, true, 2},
	}
	for _, tt := range tests {
		if got := tt.s.IsOnset(); got != tt.onset {
			t.Errorf("State(%d).IsOnset() = %v, want %v", tt.s, got, tt.onset)
		}
		if got := tt.s.IsSustain(); got != tt.sustain {
			t.Errorf("State(%d).IsSustain() = %v, want %v", tt.s, got, tt.sustain)
		}
		if got := tt.s.NoteIndex(); got != tt.note {
			t.Errorf("State(%d).NoteIndex() = %d, want %d", tt.s, got, tt.note)
		}
	}
	if OnsetOf(3) != 7 || SustainOf(3) != 8 {
		t.Errorf("OnsetOf(3), SustainOf(3) = %d, %d, want 7, 8", OnsetOf(3), SustainOf(3))
	}
}

func TestParseNoteRange(t *testing.T) {
	r, err := ParseNoteRange("A2", "E6")
	if err != nil {
		t.Fatalf("ParseNoteRange error: %v", err)
	}
	if r != DefaultNoteRange {
		t.Errorf("range = %+v, want %+v", r, DefaultNoteRange)
	}
	if r.Len() != 44 || r.NumStates() != 89 {
		t.Errorf("Len, NumStates = %d, %d, want 44, 89", r.Len(), r.NumStates())
	}
	if _, err := ParseNoteRange("E6", "A2"); !errors.Is(err, errdefs.ErrInvalidRange) {
		t.Errorf("inverted range: err = %v, want ErrInvalidRange", err)
	}
	if _, err := ParseNoteRange("X2", "E6"); !errors.Is(err, errdefs.ErrInvalidRange) {
		t.Errorf("bad name: err = %v, want ErrInvalidRange", err)
	}
}

func TestTransitionRowStochastic(t *testing.T) {
	ranges := []NoteRange{{60, 60}, {57, 59}, DefaultNoteRange}
	params := []TransitionParams{
		DefaultTransitionParams(),
		{PStaySilence: 0.99, PStayNote: 0.01},
		{PStaySilence: 0.5, PStayNote: 0.5},
	}
	for _, r := range ranges {
		for _, p := range params {
			tm, err := Transition(r, p)
			if err != nil {
				t.Fatalf("Transition(%v, %+v) error: %v", r, p, err)
			}
			rows, cols := tm.Dims()
			if rows != r.NumStates() || cols != r.NumStates() {
				t.Fatalf("dims = %dx%d, want %dx%d", rows, cols, r.NumStates(), r.NumStates())
			}
			for i := 0; i < rows; i++ {
				row := tm.RawRowView(i)
				if sum := floats.Sum(row); math.Abs(sum-1) > 1e-12 {
					t.Errorf("range %v params %+v: row %d sums to %.15f", r, p, i, sum)
				}
				if floats.Min(row) < 0 {
					t.Errorf("row %d has a negative entry", i)
				}
			}
		}
	}
}

func TestTransitionOnsetRows(t *testing.T) {
	r := NoteRange{Min: 57, Max: 61}
	tm, err := Transition(r, DefaultTransitionParams())
	if err != nil {
		t.Fatalf("Transition error: %v", err)
	}
	for k := 0; k < r.Len(); k++ {
		row := tm.RawRowView(int(OnsetOf(k)))
		nonZero := 0
		for j, v := range row {
			if v != 0 {
				nonZero++
				if j != int(SustainOf(k)) || v != 1 {
					t.Errorf("onset %d: edge to %d = %f, want only sustain %d = 1", k, j, v, SustainOf(k))
				}
			}
		}
		if nonZero != 1 {
			t.Errorf("onset %d has %d outgoing edges, want 1", k, nonZero)
		}
	}
}

func TestTransitionValues(t *testing.T) {
	r := NoteRange{Min: 60, Max: 61} // N = 2
	p := TransitionParams{PStaySilence: 0.4, PStayNote: 0.7}
	tm, err := Transition(r, p)
	if err != nil {
		t.Fatalf("Transition error: %v", err)
	}
	want := mat.NewDense(5, 5, []float64{
		0.4, 0.3, 0, 0.3, 0,
		0, 0, 1, 0, 0,
		0.1, 0.1, 0.7, 0.1, 0,
		0, 0, 0, 0, 1,
		0.1, 0.1, 0, 0.1, 0.7,
	})
	if !mat.EqualApprox(tm, want, 1e-12) {
		t.Errorf("T =\n%v\nwant\n%v", mat.Formatted(tm), mat.Formatted(want))
	}
}

func TestTransitionErrors(t *testing.T) {
	if _, err := Transition(NoteRange{Min: 61, Max: 60}, DefaultTransitionParams()); !errors.Is(err, errdefs.ErrInvalidRange) {
		t.Errorf("err = %v, want ErrInvalidRange", err)
	}
	bad := []TransitionParams{
		{PStaySilence: 0, PStayNote: 0.5},
		{PStaySilence: 0.5, PStayNote: 1},
		{PStaySilence: math.NaN(), PStayNote: 0.5},
		{PStaySilence: -0.1, PStayNote: 1.1},
	}
	for _, p := range bad {
		if _, err := Transition(DefaultNoteRange, p); !errors.Is(err, errdefs.ErrInvalidParameter) {
			t.Errorf("params %+v: err = %v, want ErrInvalidParameter", p, err)
		}
	}
}

func TestEmissionScores(t *testing.T) {
	r := NoteRange{Min: 60, Max: 62} // N = 3, S = 7
	p := EmissionParams{PitchAcc: 0.9, VoicedAcc: 0.8, OnsetAcc: 0.7, Spread: 0.5}
	obs := Observations{
		Pitch:  []int{Unvoiced, 60, 61, 64},
		Voiced: []bool{false, true, true, true},
		Onsets: []int{1},
	}
	e, err := Emission(r, obs, p)
	if err != nil {
		t.Fatalf("Emission error: %v", err)
	}
	rows, cols := e.Dims()
	if rows != 7 || cols != 4 {
		t.Fatalf("dims = %dx%d, want 7x4", rows, cols)
	}

	const eps = 1e-12
	check := func(s State, frame int, want float64) {
		t.Helper()
		if got := e.At(int(s), frame); math.Abs(got-want) > eps {
			t.Errorf("P[%d,%d] = %f, want %f", s, frame, got, want)
		}
	}

	// silence
	check(Silence, 0, 0.8)
	check(Silence, 1, 1-0.8)

	// onsets share a row
	for k := 0; k < 3; k++ {
		check(OnsetOf(k), 0, 1-0.7)
		check(OnsetOf(k), 1, 0.7)
	}

	// unvoiced frame: every sustain is a miss
	for k := 0; k < 3; k++ {
		check(SustainOf(k), 0, 1-0.9)
	}
	// frame 1 pitch 60: note 0 exact, note 1 near, note 2 miss
	check(SustainOf(0), 1, 0.9)
	check(SustainOf(1), 1, 0.9*0.5)
	check(SustainOf(2), 1, 1-0.9)
	// frame 2 pitch 61: notes 0 and 2 near
	check(SustainOf(0), 2, 0.45)
	check(SustainOf(1), 2, 0.9)
	check(SustainOf(2), 2, 0.45)
	// frame 3 pitch 64 is out of range: 62 is two semitones away
	check(SustainOf(2), 3, 1-0.9)

	if !mathNonNegative(e) {
		t.Error("emission matrix has negative entries")
	}
}

func TestEmissionErrors(t *testing.T) {
	p := DefaultEmissionParams()
	r := NoteRange{Min: 60, Max: 62}
	tests := []struct {
		name string
		obs  Observations
	}{
		{"empty", Observations{}},
		{"length mismatch", Observations{Pitch: []int{60, 60}, Voiced: []bool{true}}},
		{"onset out of range", Observations{Pitch: []int{60}, Voiced: []bool{true}, Onsets: []int{1}}},
		{"negative onset", Observations{Pitch: []int{60}, Voiced: []bool{true}, Onsets: []int{-1}}},
	}
	for _, tt := range tests {
		if _, err := Emission(r, tt.obs, p); !errors.Is(err, errdefs.ErrDimensionMismatch) {
			t.Errorf("%s: err = %v, want ErrDimensionMismatch", tt.name, err)
		}
	}

	obs := Observations{Pitch: []int{60}, Voiced: []bool{true}}
	bad := p
	bad.Spread = 1
	if _, err := Emission(r, obs, bad); !errors.Is(err, errdefs.ErrInvalidParameter) {
		t.Errorf("spread=1: err = %v, want ErrInvalidParameter", err)
	}
	if _, err := Emission(NoteRange{Min: 1, Max: 0}, obs, p); !errors.Is(err, errdefs.ErrInvalidRange) {
		t.Errorf("empty range: err = %v, want ErrInvalidRange", err)
	}
}

func mathNonNegative(m *mat.Dense) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if m.At(i, j) < 0 {
				return false
			}
		}
	}
	return true
}
