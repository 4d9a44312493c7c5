package commands

import (
	"fmt"
	"time"

	"cptracker-backend/services/refresh"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var refreshEntity string

func init() {
	refreshCmd.Flags().StringVar(&refreshEntity, "entity", "", "Refresh only this entity, whether or not it is due.")
	rootCmd.AddCommand(refreshCmd)
}

var refreshCmd = &cobra.Command{
	Use:   "refresh [--entity <id>]",
	Short: "Runs one refresh pass in the foreground.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withApp(ctx, func(a *app) error {
			scheduler, err := a.scheduler(nil)
			if err != nil {
				return err
			}

			var summary refresh.RunSummary
			if refreshEntity != "" {
				summary, err = scheduler.RefreshEntity(ctx, refreshEntity)
			} else {
				summary, err = scheduler.RunNow(ctx)
			}
			if err != nil {
				return err
			}
			printSummary(summary)
			return nil
		})
	},
}

func printSummary(summary refresh.RunSummary) {
	t := newTable()
	t.SetTitle(fmt.Sprintf("run %s", summary.ID))
	t.AppendRows([]table.Row{
		{"entities", summary.Entities},
		{"not due", summary.Skipped},
		{"sources succeeded", summary.Succeeded},
		{"sources failed", summary.Failed},
		{"persist errors", summary.PersistErrors},
		{"took", summary.FinishedAt.Sub(summary.StartedAt).Round(10 * time.Millisecond)},
	})
	t.Render()

	if len(summary.Failures) == 0 {
		return
	}
	failures := newTable()
	failures.AppendHeader(table.Row{"entity", "source", "kind", "error"})
	for _, f := range summary.Failures {
		failures.AppendRow(table.Row{f.EntityId, f.Source, f.Kind, f.Message})
	}
	failures.Render()
}
