package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"github.com/ieee0824/melody-go"
	"github.com/ieee0824/melody-go/feature"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type transcribeOpts struct {
	outDir string
	format string
	jobs   int
	tempo  float64
}

func newTranscribeCmd(a *app) *cobra.Command {
	o := &transcribeOpts{}
	cmd := &cobra.Command{
		Use:   "transcribe [flags] FEATURES...",
		Short: "Transcribe feature tracks into note files",
		Long: `Transcribe reads JSON or YAML feature tracks and writes one note file per
input into the output directory, named after the input file.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.transcribe(cmd, o, args)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.outDir, "out", "o", ".", `output directory, or "-" for stdout (json and text only)`)
	f.StringVarP(&o.format, "format", "f", "midi", "output format: midi, json or text")
	f.IntVarP(&o.jobs, "jobs", "j", runtime.NumCPU(), "files transcribed in parallel")
	f.Float64Var(&o.tempo, "tempo", 0, "tempo in BPM for tracks that carry none")
	return cmd
}

func (a *app) transcribe(cmd *cobra.Command, o *transcribeOpts, paths []string) error {
	w, ok := writers[o.format]
	if !ok {
		return fmt.Errorf("unknown format %q; valid: midi, json, text", o.format)
	}
	if o.outDir == "-" && o.format == "midi" {
		return fmt.Errorf("midi output needs a directory")
	}
	tc, err := a.cfg.Transcriber()
	if err != nil {
		return err
	}
	midiOpts := a.cfg.MIDI.Options()

	results := make([]*melody.Result, len(paths))
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(max(o.jobs, 1))
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			res, err := transcribeFile(ctx, tc, path, o.tempo)
			if err != nil {
				return err
			}
			results[i] = res
			if o.outDir == "-" {
				return nil
			}
			out := filepath.Join(o.outDir, outputName(path, w.ext))
			if err := writeAtomic(out, func(f *os.File) error { return w.write(f, res, midiOpts) }); err != nil {
				return err
			}
			slog.Info("wrote", "input", path, "output", out, "notes", len(res.Notes))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if o.outDir == "-" {
		for _, res := range results {
			if err := w.write(cmd.OutOrStdout(), res, midiOpts); err != nil {
				return err
			}
		}
	}
	return nil
}

func transcribeFile(ctx context.Context, tc *melody.Transcriber, path string, tempo float64) (*melody.Result, error) {
	tr, err := feature.Load(path)
	if err != nil {
		return nil, err
	}
	if tr.Tempo == 0 && tempo > 0 {
		tr.Tempo = tempo
	}
	res, err := tc.Transcribe(ctx, tr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return res, nil
}

func outputName(input, ext string) string {
	base := filepath.Base(input)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ext
}

// writeAtomic writes through a uniquely named temporary file in the target
// directory and renames it into place.
func writeAtomic(path string, fn func(*os.File) error) error {
	tmp := filepath.Join(filepath.Dir(path), ".melody-"+uuid.NewString()+".tmp")
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
