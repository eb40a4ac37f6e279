package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/telekom/catfact-mailer/pkg/api"
	"github.com/telekom/catfact-mailer/pkg/audit"
	"github.com/telekom/catfact-mailer/pkg/catfacts"
	"github.com/telekom/catfact-mailer/pkg/runner"
	"github.com/telekom/catfact-mailer/pkg/scheduler"
	"github.com/telekom/catfact-mailer/pkg/telemetry"
	"github.com/telekom/catfact-mailer/pkg/version"
)

func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the daily dispatcher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			_, shutdownTracing, err := telemetry.Init(ctx,
				telemetry.OptionsFromConfig(a.cfg.Tracing, version.Version, a.log))
			if err != nil {
				return fmt.Errorf("error setting up tracing: %w", err)
			}
			defer func() {
				if terr := shutdownTracing(context.Background()); terr != nil {
					a.log.Warnw("Failed to flush traces", "error", terr)
				}
			}()

			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := st.Close(); cerr != nil {
					a.log.Warnw("Failed to close store", "error", cerr)
				}
			}()

			recorder, err := audit.NewFromConfig(a.cfg.Audit, a.zlog)
			if err != nil {
				return fmt.Errorf("error setting up audit: %w", err)
			}
			defer func() { _ = recorder.Close() }()

			dispatcher, err := a.newDispatcher(st, recorder)
			if err != nil {
				return err
			}

			opts, err := scheduler.OptionsFromConfig(a.cfg)
			if err != nil {
				return err
			}
			sched, err := scheduler.New(dispatcher, opts, a.log)
			if err != nil {
				return err
			}

			server := api.NewServer(a.zlog, a.cfg, a.rt.flags.Debug)
			defer server.Close()
			controller := catfacts.NewController(st, recorder, sched, a.log, server.WriteRateLimit())
			if err := server.RegisterAll([]api.APIController{controller}); err != nil {
				return fmt.Errorf("error registering controllers: %w", err)
			}

			name, err := runner.FirstToFinish(ctx,
				runner.Unit{Name: "http", Run: server.Listen},
				runner.Unit{Name: "scheduler", Run: sched.Run},
			)
			if ctx.Err() != nil {
				a.log.Infow("Shutdown requested, all units stopped", "first", name)
				return nil
			}
			if err != nil {
				return fmt.Errorf("%s stopped: %w", name, err)
			}
			a.log.Infow("Unit exited, shutting down", "unit", name)
			return nil
		},
	}
}
