package commands

import (
	"encoding/json"
	"fmt"

	"cptracker-backend/lib/scrapers"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape <source> <handle>",
	Short: "Fetches one handle from one source and prints the profile, nothing is stored.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := parseSource(args[0])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		return withApp(ctx, func(a *app) error {
			adapters, err := a.adapters()
			if err != nil {
				return err
			}
			adapter, ok := scrapers.ByKind(adapters)[source]
			if !ok {
				return fmt.Errorf("source '%s' is disabled in the config", source)
			}

			profile, err := adapter.Fetch(ctx, args[1])
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(profile, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		})
	},
}
