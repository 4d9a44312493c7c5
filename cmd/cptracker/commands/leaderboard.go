package commands

import (
	"fmt"
	"strings"

	"cptracker-backend/lib/model"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var leaderboardSources []string

func init() {
	leaderboardCmd.Flags().StringSliceVar(&leaderboardSources, "source", nil, "Only score these sources (repeatable or comma separated).")
	rootCmd.AddCommand(leaderboardCmd)
}

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard [--source <source>...]",
	Short: "Prints the current standings from stored profiles.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := parseSources(leaderboardSources)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		return withApp(ctx, func(a *app) error {
			standings, err := a.ranking().Leaderboard(ctx, filter...)
			if err != nil {
				return err
			}

			columns := filter
			if len(columns) == 0 {
				columns = model.Sources
			}

			header := table.Row{"#", "id", "name", "score"}
			for _, source := range columns {
				header = append(header, string(source))
			}

			t := newTable()
			t.AppendHeader(header)
			for _, s := range standings {
				row := table.Row{s.Rank, s.ID, s.Name, formatScore(s.Score)}
				for _, source := range columns {
					value, ok := s.Breakdown[source]
					if !ok {
						row = append(row, "-")
						continue
					}
					row = append(row, formatScore(value))
				}
				t.AppendRow(row)
			}
			t.Render()
			return nil
		})
	},
}

func formatScore(score float64) string {
	text := fmt.Sprintf("%.2f", score)
	text = strings.TrimRight(text, "0")
	return strings.TrimSuffix(text, ".")
}
