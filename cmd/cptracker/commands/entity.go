package commands

import (
	"fmt"
	"strings"
	"time"

	"cptracker-backend/lib/handles"
	"cptracker-backend/lib/model"
	"cptracker-backend/services/refresh"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	entityAddHandles []string
	entityAddUrls    []string
	entitySetUrlFrom string
)

func init() {
	entityAddCmd.Flags().StringArrayVar(&entityAddHandles, "handle", nil, "A handle as <source>=<handle>, repeatable.")
	entityAddCmd.Flags().StringArrayVar(&entityAddUrls, "url", nil, "A profile url, the source is detected from the host, repeatable.")
	entitySetUrlCmd.Flags().StringVar(&entitySetUrlFrom, "source", "", "The source the url belongs to, detected from the host when empty.")

	entityCmd.AddCommand(entityAddCmd, entityShowCmd, entitySetHandleCmd, entitySetUrlCmd, entityRmCmd)
	rootCmd.AddCommand(entityCmd)
}

var entityCmd = &cobra.Command{
	Use:   "entity",
	Short: "Manages the tracked roster.",
}

// detectUrl picks the source for a profile url, `explicit` wins when set.
func detectUrl(profileUrl, explicit string) (model.SourceKind, error) {
	if explicit != "" {
		return parseSource(explicit)
	}
	source, _ := handles.Detect(profileUrl)
	if source == "" {
		return "", fmt.Errorf("could not tell which source '%s' belongs to, pass --source", profileUrl)
	}
	return source, nil
}

var entityAddCmd = &cobra.Command{
	Use:   "add <id> <name> [--handle <source>=<handle>...] [--url <profile url>...]",
	Short: "Adds an entity to the roster.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		entity := model.Entity{
			ID:          strings.TrimSpace(args[0]),
			Name:        strings.TrimSpace(args[1]),
			Handles:     map[model.SourceKind]string{},
			ProfileURLs: map[model.SourceKind]string{},
		}
		for _, pair := range entityAddHandles {
			name, handle, ok := strings.Cut(pair, "=")
			if !ok {
				return fmt.Errorf("handle '%s' is not in the form <source>=<handle>", pair)
			}
			source, err := parseSource(name)
			if err != nil {
				return err
			}
			entity.Handles[source] = strings.TrimSpace(handle)
		}
		for _, profileUrl := range entityAddUrls {
			source, err := detectUrl(profileUrl, "")
			if err != nil {
				return err
			}
			entity.ProfileURLs[source] = profileUrl
		}

		ctx := cmd.Context()
		return withApp(ctx, func(a *app) error {
			return a.store.Create(ctx, entity)
		})
	},
}

var entityShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Prints an entity's handles, profiles and recent errors.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withApp(ctx, func(a *app) error {
			entity, err := a.store.FindByKey(ctx, args[0])
			if err != nil {
				return err
			}

			refreshed := "never"
			if !entity.LastRefreshedAt.IsZero() {
				refreshed = entity.LastRefreshedAt.In(a.time.Location()).Format(time.DateTime)
			}
			fmt.Printf("%s (%s), last refreshed %s\n", entity.ID, entity.Name, refreshed)

			t := newTable()
			t.AppendHeader(table.Row{"source", "handle", "rating", "max", "solved", "contests", "updated"})
			for _, source := range model.Sources {
				handle := refresh.HandleFor(entity, source)
				profile, ok := entity.Profiles[source]
				if handle == "" && !ok {
					continue
				}
				if !ok {
					t.AppendRow(table.Row{source, handle, "-", "-", "-", "-", "-"})
					continue
				}
				t.AppendRow(table.Row{
					source, handle,
					profile.Rating, profile.MaxRating, profile.Solved, profile.Contests,
					profile.LastUpdated.In(a.time.Location()).Format(time.DateTime),
				})
			}
			t.Render()

			if len(entity.Errors) == 0 {
				return nil
			}
			errs := newTable()
			errs.AppendHeader(table.Row{"time", "source", "kind", "error"})
			for _, e := range entity.Errors {
				errs.AppendRow(table.Row{e.Time.In(a.time.Location()).Format(time.DateTime), e.Source, e.Kind, e.Message})
			}
			errs.Render()
			return nil
		})
	},
}

var entitySetHandleCmd = &cobra.Command{
	Use:   "set-handle <id> <source> <handle>",
	Short: "Sets or clears (with an empty handle) one source's handle.",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := parseSource(args[1])
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		return withApp(ctx, func(a *app) error {
			return a.store.SetHandle(ctx, args[0], source, strings.TrimSpace(args[2]))
		})
	},
}

var entitySetUrlCmd = &cobra.Command{
	Use:   "set-url <id> <profile url> [--source <source>]",
	Short: "Stores a profile url the handle is resolved from when no handle is set.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := detectUrl(args[1], entitySetUrlFrom)
		if err != nil {
			return err
		}
		if handles.Resolve(args[1], source) == "" {
			return fmt.Errorf("no %s handle can be read from '%s'", source, args[1])
		}
		ctx := cmd.Context()
		return withApp(ctx, func(a *app) error {
			return a.store.SetProfileURL(ctx, args[0], source, args[1])
		})
	},
}

var entityRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Removes an entity and its error log.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withApp(ctx, func(a *app) error {
			return a.store.Delete(ctx, args[0])
		})
	},
}
