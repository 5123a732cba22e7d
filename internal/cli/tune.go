package cli

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/ieee0824/melody-go"
	"github.com/ieee0824/melody-go/eval"
	"github.com/ieee0824/melody-go/feature"
	"github.com/ieee0824/melody-go/midifile"
	"github.com/ieee0824/melody-go/model"
	"github.com/ieee0824/melody-go/notes"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type testCase struct {
	name     string
	track    *feature.Track
	expected []notes.Event
}

type paramSet struct {
	PStaySilence float64
	PStayNote    float64
	OnsetAcc     float64
	Spread       float64
}

type tuneResult struct {
	params paramSet
	score  eval.Score
}

type tuneOpts struct {
	manifest     string
	pStaySilence []float64
	pStayNote    []float64
	onsetAcc     []float64
	spread       []float64
	jobs         int
	top          int
	tolerance    float64
}

func newTuneCmd(a *app) *cobra.Command {
	o := &tuneOpts{}
	cmd := &cobra.Command{
		Use:   "tune --manifest M",
		Short: "Grid search model parameters against reference MIDI files",
		Long: `Tune transcribes every feature track listed in a manifest with each
parameter combination and ranks the combinations by note-level F-measure
against the reference MIDI files.

The manifest is tab separated, one "features<TAB>reference.mid" pair per
line; relative paths are resolved against the manifest directory. Lines
starting with # are ignored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.tune(cmd, o)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.manifest, "manifest", "m", "", "manifest TSV path")
	f.Float64SliceVar(&o.pStaySilence, "p-stay-silence", []float64{0.1, 0.2, 0.4}, "silence self-loop probabilities")
	f.Float64SliceVar(&o.pStayNote, "p-stay-note", []float64{0.8, 0.9, 0.95}, "note self-loop probabilities")
	f.Float64SliceVar(&o.onsetAcc, "onset-acc", []float64{0.7, 0.8, 0.9}, "onset detector reliabilities")
	f.Float64SliceVar(&o.spread, "spread", []float64{0.4, 0.6, 0.8}, "neighbouring-semitone discounts")
	f.IntVarP(&o.jobs, "jobs", "j", runtime.NumCPU(), "parallel workers")
	f.IntVar(&o.top, "top", 10, "rows to print (0 = all)")
	f.Float64Var(&o.tolerance, "onset-tolerance", eval.DefaultTolerance().Onset, "onset tolerance in seconds")
	_ = cmd.MarkFlagRequired("manifest")
	return cmd
}

func (a *app) tune(cmd *cobra.Command, o *tuneOpts) error {
	r, err := a.cfg.Model.NoteRange()
	if err != nil {
		return err
	}
	tests, err := loadManifest(o.manifest)
	if err != nil {
		return err
	}
	if len(tests) == 0 {
		return fmt.Errorf("manifest %s lists no usable files", o.manifest)
	}

	var grid []paramSet
	for _, ps := range o.pStaySilence {
		for _, pn := range o.pStayNote {
			for _, oa := range o.onsetAcc {
				for _, sp := range o.spread {
					grid = append(grid, paramSet{PStaySilence: ps, PStayNote: pn, OnsetAcc: oa, Spread: sp})
				}
			}
		}
	}
	slog.Info("running grid", "combinations", len(grid), "files", len(tests), "workers", o.jobs)

	results := make([]tuneResult, len(grid))
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(max(o.jobs, 1))
	for gi, ps := range grid {
		gi, ps := gi, ps
		g.Go(func() error {
			ep := a.cfg.Model.EmissionParams()
			ep.OnsetAcc, ep.Spread = ps.OnsetAcc, ps.Spread
			tc, err := melody.NewTranscriber(
				melody.WithNoteRange(r),
				melody.WithTransitionParams(model.TransitionParams{PStaySilence: ps.PStaySilence, PStayNote: ps.PStayNote}),
				melody.WithEmissionParams(ep),
			)
			if err != nil {
				return fmt.Errorf("params %+v: %w", ps, err)
			}
			scores := make([]eval.Score, 0, len(tests))
			for _, t := range tests {
				res, err := tc.Transcribe(ctx, t.track)
				if err != nil {
					return fmt.Errorf("%s: %w", t.name, err)
				}
				scores = append(scores, eval.Notes(t.expected, res.Events(), eval.Tolerance{Onset: o.tolerance}))
			}
			results[gi] = tuneResult{params: ps, score: eval.Sum(scores...)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// best F-measure first, then the stickier note model
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].score.F1 != results[j].score.F1 {
			return results[i].score.F1 > results[j].score.F1
		}
		return results[i].params.PStayNote > results[j].params.PStayNote
	})
	if o.top > 0 && o.top < len(results) {
		results = results[:o.top]
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-12s %-12s %-10s %-8s %8s %8s %8s %9s\n",
		"PStaySilence", "PStayNote", "OnsetAcc", "Spread", "Matched", "Ref", "Est", "F1")
	fmt.Fprintln(out, strings.Repeat("-", 82))
	for _, res := range results {
		fmt.Fprintf(out, "%-12.3f %-12.3f %-10.3f %-8.3f %8d %8d %8d %8.1f%%\n",
			res.params.PStaySilence, res.params.PStayNote, res.params.OnsetAcc, res.params.Spread,
			res.score.Matched, res.score.Reference, res.score.Estimated, res.score.F1*100)
	}
	return nil
}

func loadManifest(path string) ([]testCase, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	dir := filepath.Dir(path)
	resolve := func(p string) string {
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}

	var cases []testCase
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			slog.Warn("skipping manifest line", "line", line)
			continue
		}
		featPath, refPath := resolve(strings.TrimSpace(parts[0])), resolve(strings.TrimSpace(parts[1]))

		tr, err := feature.Load(featPath)
		if err != nil {
			slog.Warn("skipping manifest entry", "features", featPath, "err", err)
			continue
		}
		ref, bpm, err := midifile.ReadFile(refPath)
		if err != nil {
			slog.Warn("skipping manifest entry", "reference", refPath, "err", err)
			continue
		}
		if tr.Tempo == 0 {
			tr.Tempo = bpm
		}
		cases = append(cases, testCase{name: featPath, track: tr, expected: ref})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return cases, nil
}
