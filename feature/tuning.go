package feature

import (
	"math"

	"github.com/ieee0824/melody-go/internal/mathutil"
	"github.com/ieee0824/melody-go/model"
	"github.com/ieee0824/melody-go/pitch"
)

// TuningResolution is the histogram bin width, in semitones, used by
// EstimateTuning.
const TuningResolution = 0.01

// EstimateTuning returns the dominant deviation of the voiced f0 values from
// the equal-tempered grid, in [-0.5, 0.5) semitones. It builds a histogram of
// rounding residuals and returns the lower edge of the fullest bin. Tracks
// without voiced frames have zero tuning.
func EstimateTuning(f0 []float64) float64 {
	nbins := int(math.Ceil(1 / TuningResolution))
	counts := make([]int, nbins)
	n := 0
	for _, f := range f0 {
		if !isVoiced(f) {
			continue
		}
		m := pitch.HzToMIDI(f)
		r := m - math.Floor(m)
		if r >= 0.5 {
			r--
		}
		bin := mathutil.Clamp(int(math.Floor((r+0.5)/TuningResolution)), 0, nbins-1)
		counts[bin]++
		n++
	}
	if n == 0 {
		return 0
	}
	return -0.5 + float64(mathutil.ArgMax(counts))*TuningResolution
}

// Quantize converts f0 values in Hz into integer MIDI pitches after removing
// the tuning offset. Unvoiced frames become model.Unvoiced.
func Quantize(f0 []float64, tuning float64) []int {
	out := make([]int, len(f0))
	for i, f := range f0 {
		if !isVoiced(f) {
			out[i] = model.Unvoiced
			continue
		}
		out[i] = int(math.Round(pitch.HzToMIDI(f) - tuning))
	}
	return out
}
