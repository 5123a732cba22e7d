package config_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ieee0824/melody-go/errdefs"
	"github.com/ieee0824/melody-go/internal/config"
	"github.com/ieee0824/melody-go/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullYAML = `
log_level: debug
model:
  note_min: C3
  note_max: C#5
  p_stay_silence: 0.3
  p_stay_note: 0.85
  pitch_acc: 0.95
  voiced_acc: 0.8
  onset_acc: 0.7
  spread: 0.5
midi:
  ticks_per_quarter: 960
  channel: 2
  velocity: 90
server:
  listen_addr: 127.0.0.1:9000
  allowed_origins: ["https://example.com"]
  max_body_bytes: 1048576
  reload_interval: 2s
`

func TestLoadFromReaderFull(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(fullYAML))
	require.NoError(t, err)

	assert.Equal(t, config.LogDebug, cfg.LogLevel)
	r, err := cfg.Model.NoteRange()
	require.NoError(t, err)
	assert.Equal(t, model.NoteRange{Min: 48, Max: 73}, r)
	assert.Equal(t, model.TransitionParams{PStaySilence: 0.3, PStayNote: 0.85}, cfg.Model.TransitionParams())
	assert.Equal(t, model.EmissionParams{PitchAcc: 0.95, VoicedAcc: 0.8, OnsetAcc: 0.7, Spread: 0.5}, cfg.Model.EmissionParams())

	opt := cfg.MIDI.Options()
	assert.Equal(t, uint16(960), opt.TicksPerQuarter)
	assert.Equal(t, uint8(2), opt.Channel)
	assert.Equal(t, uint8(90), opt.Velocity)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.ListenAddr)
	assert.Equal(t, []string{"https://example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, int64(1<<20), cfg.Server.MaxBodyBytes)
	assert.Equal(t, 2*time.Second, cfg.Server.ReloadInterval)
}

func TestLoadFromReaderDefaults(t *testing.T) {
	for _, doc := range []string{"", "model:\n  spread: 0.4\n"} {
		cfg, err := config.LoadFromReader(strings.NewReader(doc))
		require.NoError(t, err)
		r, err := cfg.Model.NoteRange()
		require.NoError(t, err)
		assert.Equal(t, model.DefaultNoteRange, r)
		assert.Equal(t, 0.9, cfg.Model.PStayNote)
		assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	}
}

func TestLoadFromReaderUnknownField(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader("model:\n  beam: 3\n"))
	assert.Error(t, err)
}

func TestValidateCollectsAll(t *testing.T) {
	cfg := config.Defaults()
	cfg.LogLevel = "loud"
	cfg.Model.NoteMin = "E6"
	cfg.Model.NoteMax = "A2"
	cfg.Model.PStayNote = 1
	cfg.Model.Spread = 0
	cfg.MIDI.Velocity = 0
	cfg.Server.ListenAddr = ""

	err := config.Validate(cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errdefs.ErrInvalidRange))
	assert.True(t, errors.Is(err, errdefs.ErrInvalidParameter))
	for _, want := range []string{"log_level", "p_stay_note", "spread", "velocity", "listen_addr"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidateDefaults(t *testing.T) {
	assert.NoError(t, config.Validate(config.Defaults()))
}

func TestTranscriber(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(fullYAML))
	require.NoError(t, err)
	tc, err := cfg.Transcriber()
	require.NoError(t, err)
	assert.Equal(t, model.NoteRange{Min: 48, Max: 73}, tc.Range)
	assert.Equal(t, 0.85, tc.Transition.PStayNote)
	assert.Equal(t, 0.5, tc.Emission.Spread)

	cfg.Model.NoteMin = "H2"
	_, err = cfg.Transcriber()
	assert.True(t, errors.Is(err, errdefs.ErrInvalidRange))
}
