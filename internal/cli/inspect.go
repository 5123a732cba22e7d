package cli

import (
	"fmt"

	"github.com/ieee0824/melody-go/eval"
	"github.com/ieee0824/melody-go/midifile"
	"github.com/spf13/cobra"
)

func newInspectCmd(_ *app) *cobra.Command {
	var against string
	var tol float64
	cmd := &cobra.Command{
		Use:   "inspect FILE.mid",
		Short: "List the notes of a MIDI file",
		Long: `Inspect prints the tempo and the notes of a Standard MIDI File with pitch
names. With --against it also scores the file against a reference file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			events, bpm, err := midifile.ReadFile(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "tempo: %.2f BPM\nnotes: %d\n", bpm, len(events))
			for _, e := range events {
				fmt.Fprintf(out, "%8.3f %8.3f  %-4s %3d\n", e.Onset, e.Offset, e.Name(), e.Pitch)
			}
			if against == "" {
				return nil
			}
			ref, _, err := midifile.ReadFile(against)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, eval.Notes(ref, events, eval.Tolerance{Onset: tol}))
			return nil
		},
	}
	cmd.Flags().StringVar(&against, "against", "", "reference MIDI file to score against")
	cmd.Flags().Float64Var(&tol, "onset-tolerance", eval.DefaultTolerance().Onset, "onset tolerance in seconds")
	return cmd
}
