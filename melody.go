// Package melody transcribes the frame-level pitch, voicing and onset
// features of a monophonic recording into timed MIDI note events.
//
// A Transcriber builds a note HMM over a pitch range (one silence state plus
// an onset and a sustain state per note), scores every frame against it,
// decodes the most likely state path with Viterbi and segments the path into
// notes placed on the track's beat grid.
package melody

import (
	"context"
	"fmt"
	"time"

	"github.com/ieee0824/melody-go/decoder"
	"github.com/ieee0824/melody-go/errdefs"
	"github.com/ieee0824/melody-go/feature"
	"github.com/ieee0824/melody-go/internal/observe"
	"github.com/ieee0824/melody-go/model"
	"github.com/ieee0824/melody-go/notes"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gonum.org/v1/gonum/mat"
)

// Transcriber runs the note pipeline. It is immutable after construction
// and safe for concurrent use.
type Transcriber struct {
	Range      model.NoteRange
	Transition model.TransitionParams
	Emission   model.EmissionParams
	metrics    *observe.Metrics
}

// Option configures a Transcriber.
type Option func(*Transcriber)

// WithNoteRange sets the MIDI range the model covers.
func WithNoteRange(r model.NoteRange) Option {
	return func(t *Transcriber) {
		t.Range = r
	}
}

// WithTransitionParams sets the self-loop probabilities.
func WithTransitionParams(p model.TransitionParams) Option {
	return func(t *Transcriber) {
		t.Transition = p
	}
}

// WithEmissionParams sets the cue reliabilities.
func WithEmissionParams(p model.EmissionParams) Option {
	return func(t *Transcriber) {
		t.Emission = p
	}
}

// WithMetrics records pipeline metrics on m instead of the package default.
func WithMetrics(m *observe.Metrics) Option {
	return func(t *Transcriber) {
		t.metrics = m
	}
}

// NewTranscriber creates a Transcriber with the default A2..E6 range and
// parameters, then applies opts. Every invalid setting is reported.
func NewTranscriber(opts ...Option) (*Transcriber, error) {
	t := &Transcriber{
		Range:      model.DefaultNoteRange,
		Transition: model.DefaultTransitionParams(),
		Emission:   model.DefaultEmissionParams(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.metrics == nil {
		t.metrics = observe.DefaultMetrics()
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks the range and all model parameters.
func (t *Transcriber) Validate() error {
	if err := t.Range.Validate(); err != nil {
		return err
	}
	if err := t.Transition.Validate(); err != nil {
		return err
	}
	return t.Emission.Validate()
}

// Result is the outcome of one transcription.
type Result struct {
	Notes   []notes.BeatEvent `json:"notes"`
	States  []model.State     `json:"-"`
	LogProb float64           `json:"log_prob"`
	Tempo   float64           `json:"tempo"`    // BPM
	Tuning  float64           `json:"tuning"`   // semitones
	HopTime float64           `json:"hop_time"` // seconds
}

// Names returns the pitch names of the notes, e.g. ["A3", "C#4"].
func (r *Result) Names() []string {
	return notes.Names(r.Events())
}

// Events returns the notes without beat positions.
func (r *Result) Events() []notes.Event {
	return notes.Events(r.Notes)
}

// TranscribeFile loads a JSON or YAML feature track and transcribes it.
func (t *Transcriber) TranscribeFile(ctx context.Context, path string) (*Result, error) {
	tr, err := feature.Load(path)
	if err != nil {
		return nil, err
	}
	res, err := t.Transcribe(ctx, tr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return res, nil
}

// Transcribe runs the full pipeline on a feature track. A track without a
// tuning estimate gets one from its f0 values. The track must carry a tempo.
func (t *Transcriber) Transcribe(ctx context.Context, tr *feature.Track) (res *Result, err error) {
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "melody.Transcribe",
		trace.WithAttributes(attribute.String("range", t.Range.String())),
	)
	defer func() {
		frames, n := 0, 0
		if tr != nil {
			frames = tr.Frames()
		}
		if res != nil {
			n = len(res.Notes)
		}
		t.metrics.RecordTranscription(ctx, errdefs.Class(err), time.Since(start).Seconds(), frames, n)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if tr == nil {
		return nil, fmt.Errorf("%w: nil feature track", errdefs.ErrInvalidParameter)
	}
	if tr.Voiced == nil {
		cp := *tr
		cp.Voiced = feature.VoicedFromF0(tr.F0)
		tr = &cp
	}
	if err := tr.Validate(); err != nil {
		return nil, err
	}
	if !(tr.Tempo > 0) {
		return nil, fmt.Errorf("%w: feature track has no tempo", errdefs.ErrInvalidParameter)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := observe.Logger(ctx)
	span.SetAttributes(attribute.Int("frames", tr.Frames()))

	var tuning float64
	stage(ctx, t.metrics, observe.StageTuning, func() {
		if tr.Tuning != nil {
			tuning = *tr.Tuning
		} else {
			tuning = feature.EstimateTuning(tr.F0)
		}
	})
	log.Debug("tuning", "semitones", tuning, "estimated", tr.Tuning == nil)

	var emit, trans *mat.Dense
	if err := stageErr(ctx, t.metrics, observe.StageEmission, func() (err error) {
		emit, err = model.Emission(t.Range, tr.Observations(tuning), t.Emission)
		return err
	}); err != nil {
		return nil, err
	}
	if err := stageErr(ctx, t.metrics, observe.StageTransition, func() (err error) {
		trans, err = model.Transition(t.Range, t.Transition)
		return err
	}); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var path *decoder.Path
	if err := stageErr(ctx, t.metrics, observe.StageDecode, func() (err error) {
		path, err = decoder.Viterbi(trans, emit, decoder.UnitInit(t.Range.NumStates(), int(model.Silence)))
		return err
	}); err != nil {
		return nil, err
	}
	log.Debug("decoded", "frames", len(path.States), "log_prob", path.LogProb)

	states := model.States(path.States)
	var beats []notes.BeatEvent
	if err := stageErr(ctx, t.metrics, observe.StageSegment, func() error {
		events, err := notes.Segment(states, tr.HopTime(), t.Range.Min)
		if err != nil {
			return err
		}
		beats, err = notes.ToBeats(events, tr.Tempo)
		return err
	}); err != nil {
		return nil, err
	}

	log.Info("transcribed",
		"frames", tr.Frames(),
		"notes", len(beats),
		"tempo", tr.Tempo,
		"tuning", tuning,
		"elapsed", time.Since(start),
	)
	return &Result{
		Notes:   beats,
		States:  states,
		LogProb: path.LogProb,
		Tempo:   tr.Tempo,
		Tuning:  tuning,
		HopTime: tr.HopTime(),
	}, nil
}

func stage(ctx context.Context, m *observe.Metrics, name string, fn func()) {
	_ = stageErr(ctx, m, name, func() error { fn(); return nil })
}

func stageErr(ctx context.Context, m *observe.Metrics, name string, fn func() error) error {
	_, span := observe.StartSpan(ctx, "melody."+name)
	defer span.End()
	start := time.Now()
	err := fn()
	m.RecordStage(ctx, name, time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
