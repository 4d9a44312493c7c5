package commands

import (
	"context"
	"log/slog"
	"time"

	"cptracker-backend/lib/serviceutil"
	"cptracker-backend/lib/telemetry"
	"cptracker-backend/services/refresh"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var serveRunNow bool

func init() {
	serveCmd.Flags().BoolVar(&serveRunNow, "run-now", false, "Start a refresh run immediately instead of waiting for the timer.")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve [--run-now]",
	Short: "Runs the refresh scheduler and the admin endpoints until interrupted.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withApp(ctx, func(a *app) error {
			registry := prometheus.NewRegistry()
			registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			scheduler, err := a.scheduler(registry)
			if err != nil {
				return err
			}
			telemetry.InstrumentPerfStats(ctx, 0)

			err = scheduler.Start(ctx)
			if err != nil {
				return err
			}
			if serveRunNow {
				scheduler.Trigger(ctx)
			}

			serverErr := make(chan error, 1)
			if a.config.Admin.Addr != "" {
				server := serviceutil.NewHttpServer(
					a.config.Admin.Addr,
					refresh.NewAdminHandler(scheduler, registry),
				)
				go func() {
					serverErr <- serviceutil.ServeHttp(ctx, server, 5*time.Second)
				}()
			}

			select {
			case <-ctx.Done():
				slog.Info("shutting down, waiting for the active entity")
			case err = <-serverErr:
				slog.Error("admin listener stopped", "err", err)
			}

			grace := a.config.Schedule.Refresh().EntityTimeout + 30*time.Second
			stopCtx, cancel := context.WithTimeout(context.Background(), grace)
			defer cancel()
			stopErr := scheduler.Stop(stopCtx)
			if err != nil {
				return err
			}
			return stopErr
		})
	},
}
