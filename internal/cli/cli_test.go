package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ieee0824/melody-go/feature"
	"github.com/ieee0824/melody-go/midifile"
	"github.com/ieee0824/melody-go/notes"
	"github.com/ieee0824/melody-go/pitch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hop = 256.0 / 22050

// writeTrack stores a track with one A3 note from frame 10 to 30 of 40.
func writeTrack(t *testing.T, dir, name string, tempo float64) string {
	t.Helper()
	zero := 0.0
	tr := &feature.Track{SampleRate: 22050, HopLength: 256, Tempo: tempo, Tuning: &zero, Onsets: []int{10}}
	for i := 0; i < 40; i++ {
		f := 0.0
		if i >= 10 && i < 30 {
			f = pitch.MIDIToHz(57)
		}
		tr.F0 = append(tr.F0, f)
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, feature.Encode(f, tr, feature.FormatFromPath(path)))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestTranscribeJSON(t *testing.T) {
	dir := t.TempDir()
	in := writeTrack(t, dir, "take1.json", 120)
	outDir := t.TempDir()

	_, err := run(t, "transcribe", "--format", "json", "-o", outDir, in)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(outDir, "take1.json"))
	require.NoError(t, err)
	var res struct {
		Notes []notes.BeatEvent `json:"notes"`
		Tempo float64           `json:"tempo"`
	}
	require.NoError(t, json.Unmarshal(data, &res))
	require.Len(t, res.Notes, 1)
	assert.Equal(t, 57, res.Notes[0].Pitch)
	assert.InDelta(t, 10*hop, res.Notes[0].Onset, 1e-9)
	assert.Equal(t, 120.0, res.Tempo)

	leftovers, _ := filepath.Glob(filepath.Join(outDir, ".melody-*"))
	assert.Empty(t, leftovers)
}

func TestTranscribeMIDIBatch(t *testing.T) {
	dir := t.TempDir()
	a := writeTrack(t, dir, "a.json", 100)
	b := writeTrack(t, dir, "b.yaml", 140)
	outDir := t.TempDir()

	_, err := run(t, "transcribe", "-j", "2", "-o", outDir, a, b)
	require.NoError(t, err)

	for name, bpm := range map[string]float64{"a.mid": 100, "b.mid": 140} {
		events, gotBPM, err := midifile.ReadFile(filepath.Join(outDir, name))
		require.NoError(t, err, name)
		assert.InDelta(t, bpm, gotBPM, 1e-3, name)
		require.Len(t, events, 1, name)
		assert.Equal(t, 57, events[0].Pitch, name)
	}
}

func TestTranscribeTextStdout(t *testing.T) {
	in := writeTrack(t, t.TempDir(), "take.json", 120)
	out, err := run(t, "transcribe", "--format", "text", "-o", "-", in)
	require.NoError(t, err)
	assert.Contains(t, out, "\tA3\t57\n")
}

func TestTranscribeTempoFallback(t *testing.T) {
	in := writeTrack(t, t.TempDir(), "notempo.json", 0)

	_, err := run(t, "transcribe", "--format", "text", "-o", "-", in)
	assert.Error(t, err)

	out, err := run(t, "transcribe", "--format", "text", "-o", "-", "--tempo", "90", in)
	require.NoError(t, err)
	assert.Contains(t, out, "A3")
}

func TestTranscribeErrors(t *testing.T) {
	in := writeTrack(t, t.TempDir(), "take.json", 120)
	_, err := run(t, "transcribe", "--format", "wav", in)
	assert.ErrorContains(t, err, "unknown format")

	_, err = run(t, "transcribe", "--format", "midi", "-o", "-", in)
	assert.Error(t, err)

	_, err = run(t, "transcribe", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = run(t, "transcribe")
	assert.Error(t, err)
}

func TestConfigFlag(t *testing.T) {
	dir := t.TempDir()
	in := writeTrack(t, dir, "take.json", 120)

	cfgPath := filepath.Join(dir, "melody.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("model:\n  note_min: C4\n  note_max: C5\n"), 0o644))
	out, err := run(t, "--config", cfgPath, "transcribe", "--format", "text", "-o", "-", in)
	require.NoError(t, err)
	assert.NotContains(t, out, "A3")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("model:\n  p_stay_note: 1.5\n"), 0o644))
	_, err = run(t, "--config", bad, "transcribe", in)
	assert.Error(t, err)
}

func writeReference(t *testing.T, dir string) string {
	t.Helper()
	beats, err := notes.ToBeats([]notes.Event{{Onset: 10 * hop, Offset: 30 * hop, Pitch: 57}}, 120)
	require.NoError(t, err)
	path := filepath.Join(dir, "ref.mid")
	require.NoError(t, midifile.WriteFile(path, beats, 120, midifile.DefaultOptions()))
	return path
}

func TestInspect(t *testing.T) {
	ref := writeReference(t, t.TempDir())

	out, err := run(t, "inspect", ref)
	require.NoError(t, err)
	assert.Contains(t, out, "tempo: 120.00 BPM")
	assert.Contains(t, out, "notes: 1")
	assert.Contains(t, out, "A3")

	out, err = run(t, "inspect", "--against", ref, ref)
	require.NoError(t, err)
	assert.Contains(t, out, "F=1.000")
}

func TestTune(t *testing.T) {
	dir := t.TempDir()
	writeTrack(t, dir, "take.json", 120)
	writeReference(t, dir)
	manifest := filepath.Join(dir, "manifest.tsv")
	require.NoError(t, os.WriteFile(manifest, []byte("# features\treference\ntake.json\tref.mid\nbroken line\n"), 0o644))

	out, err := run(t, "tune", "-m", manifest,
		"--p-stay-silence", "0.2",
		"--p-stay-note", "0.9",
		"--onset-acc", "0.8",
		"--spread", "0.4,0.6",
		"-j", "2",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "PStaySilence")
	assert.Contains(t, out, "100.0%")

	_, err = run(t, "tune")
	assert.Error(t, err, "manifest flag is required")
}
