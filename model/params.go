package model

import (
	"errors"
	"fmt"

	"github.com/ieee0824/melody-go/errdefs"
)

// TransitionParams holds the two self-loop probabilities of the note model.
type TransitionParams struct {
	PStaySilence float64 // probability of remaining silent
	PStayNote    float64 // probability of sustaining the current note
}

// DefaultTransitionParams returns the parameters used for general melody
// transcription.
func DefaultTransitionParams() TransitionParams {
	return TransitionParams{
		PStaySilence: 0.2,
		PStayNote:    0.9,
	}
}

// Validate checks both probabilities lie in (0,1).
func (p TransitionParams) Validate() error {
	return errors.Join(
		checkUnit("p_stay_silence", p.PStaySilence),
		checkUnit("p_stay_note", p.PStayNote),
	)
}

// EmissionParams weights the three acoustic cues.
type EmissionParams struct {
	PitchAcc  float64 // confidence in the quantized pitch estimate
	VoicedAcc float64 // confidence in the voiced/unvoiced flag
	OnsetAcc  float64 // confidence in the onset detector
	Spread    float64 // discount for a pitch one semitone off
}

// DefaultEmissionParams returns the weights used for general melody
// transcription.
func DefaultEmissionParams() EmissionParams {
	return EmissionParams{
		PitchAcc:  0.99,
		VoicedAcc: 0.9,
		OnsetAcc:  0.8,
		Spread:    0.6,
	}
}

// Validate checks every weight lies in (0,1).
func (p EmissionParams) Validate() error {
	return errors.Join(
		checkUnit("pitch_acc", p.PitchAcc),
		checkUnit("voiced_acc", p.VoicedAcc),
		checkUnit("onset_acc", p.OnsetAcc),
		checkUnit("spread", p.Spread),
	)
}

func checkUnit(name string, v float64) error {
	if errdefs.InUnitInterval(v) {
		return nil
	}
	return fmt.Errorf("%w: %s = %v is outside (0,1)", errdefs.ErrInvalidParameter, name, v)
}
