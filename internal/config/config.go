// Package config provides the YAML configuration schema and loader for the
// melody CLI and server.
package config

import (
	"time"

	"github.com/ieee0824/melody-go"
	"github.com/ieee0824/melody-go/midifile"
	"github.com/ieee0824/melody-go/model"
	"github.com/ieee0824/melody-go/pitch"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the top-level configuration.
type Config struct {
	LogLevel LogLevel     `yaml:"log_level"`
	Model    ModelConfig  `yaml:"model"`
	MIDI     MIDIConfig   `yaml:"midi"`
	Server   ServerConfig `yaml:"server"`
}

// ModelConfig holds the note range and HMM parameters.
type ModelConfig struct {
	// NoteMin and NoteMax are pitch names such as "A2" and "E6".
	NoteMin string `yaml:"note_min"`
	NoteMax string `yaml:"note_max"`

	PStaySilence float64 `yaml:"p_stay_silence"`
	PStayNote    float64 `yaml:"p_stay_note"`
	PitchAcc     float64 `yaml:"pitch_acc"`
	VoicedAcc    float64 `yaml:"voiced_acc"`
	OnsetAcc     float64 `yaml:"onset_acc"`
	Spread       float64 `yaml:"spread"`
}

// MIDIConfig controls the written note files.
type MIDIConfig struct {
	TicksPerQuarter uint16 `yaml:"ticks_per_quarter"`
	Channel         uint8  `yaml:"channel"`
	Velocity        uint8  `yaml:"velocity"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	ListenAddr     string   `yaml:"listen_addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	// MaxBodyBytes caps the size of an uploaded feature track.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// ReloadInterval is how often the config file is polled for changes.
	// Zero disables reloading.
	ReloadInterval time.Duration `yaml:"reload_interval"`
}

// Defaults returns the configuration used when no file is given. Fields
// missing from a config file keep these values.
func Defaults() *Config {
	tp := model.DefaultTransitionParams()
	ep := model.DefaultEmissionParams()
	mo := midifile.DefaultOptions()
	return &Config{
		LogLevel: LogInfo,
		Model: ModelConfig{
			NoteMin:      pitch.Name(model.DefaultNoteRange.Min),
			NoteMax:      pitch.Name(model.DefaultNoteRange.Max),
			PStaySilence: tp.PStaySilence,
			PStayNote:    tp.PStayNote,
			PitchAcc:     ep.PitchAcc,
			VoicedAcc:    ep.VoicedAcc,
			OnsetAcc:     ep.OnsetAcc,
			Spread:       ep.Spread,
		},
		MIDI: MIDIConfig{
			TicksPerQuarter: mo.TicksPerQuarter,
			Channel:         mo.Channel,
			Velocity:        mo.Velocity,
		},
		Server: ServerConfig{
			ListenAddr:     ":8080",
			MaxBodyBytes:   32 << 20,
			ReloadInterval: 5 * time.Second,
		},
	}
}

// NoteRange parses the configured range.
func (m ModelConfig) NoteRange() (model.NoteRange, error) {
	return model.ParseNoteRange(m.NoteMin, m.NoteMax)
}

// TransitionParams returns the configured self-loop probabilities.
func (m ModelConfig) TransitionParams() model.TransitionParams {
	return model.TransitionParams{PStaySilence: m.PStaySilence, PStayNote: m.PStayNote}
}

// EmissionParams returns the configured cue weights.
func (m ModelConfig) EmissionParams() model.EmissionParams {
	return model.EmissionParams{
		PitchAcc:  m.PitchAcc,
		VoicedAcc: m.VoicedAcc,
		OnsetAcc:  m.OnsetAcc,
		Spread:    m.Spread,
	}
}

// Options returns the SMF encoding options.
func (m MIDIConfig) Options() midifile.Options {
	return midifile.Options{
		TicksPerQuarter: m.TicksPerQuarter,
		Channel:         m.Channel,
		Velocity:        m.Velocity,
		TrackName:       midifile.DefaultOptions().TrackName,
	}
}

// Transcriber builds a transcriber from the model section. extra options
// are applied after the configured ones.
func (c *Config) Transcriber(extra ...melody.Option) (*melody.Transcriber, error) {
	r, err := c.Model.NoteRange()
	if err != nil {
		return nil, err
	}
	opts := []melody.Option{
		melody.WithNoteRange(r),
		melody.WithTransitionParams(c.Model.TransitionParams()),
		melody.WithEmissionParams(c.Model.EmissionParams()),
	}
	return melody.NewTranscriber(append(opts, extra...)...)
}
