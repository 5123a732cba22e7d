package cli

import (
	"fmt"
	"log/slog"

	"github.com/ieee0824/melody-go/internal/config"
	"github.com/ieee0824/melody-go/internal/observe"
	"github.com/ieee0824/melody-go/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the transcription HTTP API",
		Long: `Serve exposes POST /v1/transcribe and /v1/transcribe.mid together with
health, readiness and Prometheus metrics endpoints. When started with
--config, the file is polled and model changes are applied without restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = a.cfg.Server.ListenAddr
			}
			return a.serve(cmd, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.listen_addr)")
	return cmd
}

func (a *app) serve(cmd *cobra.Command, addr string) error {
	ctx := cmd.Context()
	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "melody"})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := shutdown(ctx); err != nil {
			slog.Warn("telemetry shutdown", "err", err)
		}
	}()

	srv, err := server.New(a.cfg, server.WithMetrics(observe.DefaultMetrics()))
	if err != nil {
		return err
	}

	if a.configPath != "" && a.cfg.Server.ReloadInterval > 0 {
		w, err := config.NewWatcher(a.configPath, func(_, next *config.Config) {
			if err := srv.Apply(next); err != nil {
				slog.Error("config reload rejected", "err", err)
				return
			}
			if a.logLevel == "" {
				slog.SetDefault(observe.NewLogger(cmd.ErrOrStderr(), string(next.LogLevel)))
			}
			slog.Info("transcriber reloaded", "range", srv.Transcriber().Range.String())
		}, config.WithInterval(a.cfg.Server.ReloadInterval))
		if err != nil {
			return err
		}
		defer w.Stop()
	}

	slog.Info("melody starting",
		"addr", addr,
		"range", srv.Transcriber().Range.String(),
		"config", a.configPath,
	)
	return srv.ListenAndServe(ctx, addr)
}
