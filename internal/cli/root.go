// Package cli implements the melody command line.
package cli

import (
	"context"
	"log/slog"

	"github.com/ieee0824/melody-go/internal/config"
	"github.com/ieee0824/melody-go/internal/observe"
	"github.com/spf13/cobra"
)

// app carries the state shared by all subcommands of one invocation.
type app struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

// NewRootCmd builds the melody command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "melody",
		Short: "Monophonic melody transcription",
		Long: `melody turns frame-level pitch, voicing and onset features of a
monophonic recording into MIDI notes with a note HMM and Viterbi decoding.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error (overrides the config)")

	root.AddCommand(
		newTranscribeCmd(a),
		newServeCmd(a),
		newTuneCmd(a),
		newInspectCmd(a),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context) int {
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg := config.Defaults()
	if a.configPath != "" {
		var err error
		if cfg, err = config.Load(a.configPath); err != nil {
			return err
		}
	}
	a.cfg = cfg

	level := string(cfg.LogLevel)
	if a.logLevel != "" {
		level = a.logLevel
	}
	slog.SetDefault(observe.NewLogger(cmd.ErrOrStderr(), level))
	return nil
}
