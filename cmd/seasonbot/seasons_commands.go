package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"seasonbot/internal/catalog"
	"seasonbot/internal/delivery"
)

type seasonSummary struct {
	Key       string    `json:"key"`
	Title     string    `json:"title"`
	Files     int       `json:"files"`
	Link      string    `json:"link,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type seasonFile struct {
	Part    int    `json:"part"`
	FileRef string `json:"file_ref"`
	Caption string `json:"caption,omitempty"`
}

type seasonDetail struct {
	seasonSummary
	Items []seasonFile `json:"items"`
}

func newSeasonsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seasons",
		Short: "Inspect and edit the season catalog",
	}
	cmd.AddCommand(newSeasonsListCommand(ctx))
	cmd.AddCommand(newSeasonsShowCommand(ctx))
	cmd.AddCommand(newSeasonsDeleteCommand(ctx))
	cmd.AddCommand(newSeasonsCaptionCommand(ctx))
	return cmd
}

func (c *commandContext) deepLink(key string) string {
	if c.config == nil || c.config.Bot.Username == "" {
		return ""
	}
	return catalog.DeepLink(c.config.Bot.Username, key)
}

func newSeasonsListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List seasons in creation order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(c context.Context, store catalog.Store) error {
				seasons, err := store.ListSeasons(c)
				if err != nil {
					return err
				}
				summaries := make([]seasonSummary, 0, len(seasons))
				for _, s := range seasons {
					summaries = append(summaries, seasonSummary{
						Key:       s.Key,
						Title:     s.Title,
						Files:     s.FileCount,
						Link:      ctx.deepLink(s.Key),
						CreatedAt: s.CreatedAt,
					})
				}
				if asJSON {
					return writeJSON(cmd, summaries)
				}
				out := cmd.OutOrStdout()
				if len(summaries) == 0 {
					fmt.Fprintln(out, "No seasons")
					return nil
				}
				rows := make([][]string, 0, len(summaries))
				for i, s := range summaries {
					rows = append(rows, []string{
						strconv.Itoa(i + 1),
						s.Key,
						s.Title,
						strconv.Itoa(s.Files),
						s.CreatedAt.Local().Format("2006-01-02 15:04"),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"#", "Key", "Title", "Files", "Created"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newSeasonsShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <season>",
		Short: "Show a season's files in delivery order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := catalog.KeyFromInput(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(cmd, func(c context.Context, store catalog.Store) error {
				season, err := store.GetSeason(c, key)
				if err != nil {
					return err
				}
				detail := seasonDetail{
					seasonSummary: seasonSummary{
						Key:       season.Key,
						Title:     season.Title,
						Files:     len(season.Files),
						Link:      ctx.deepLink(season.Key),
						CreatedAt: season.CreatedAt,
					},
					Items: make([]seasonFile, 0, len(season.Files)),
				}
				for _, f := range season.Files {
					detail.Items = append(detail.Items, seasonFile{Part: f.Sequence, FileRef: f.FileRef, Caption: f.Caption})
				}
				if asJSON {
					return writeJSON(cmd, detail)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s (%s)\n", detail.Title, detail.Key)
				if detail.Link != "" {
					fmt.Fprintf(out, "Link: %s\n", detail.Link)
				}
				if len(season.Files) == 0 {
					fmt.Fprintln(out, "No files")
					return nil
				}
				label := delivery.DefaultLabel
				if ctx.config != nil && ctx.config.Delivery.PartLabel != "" {
					label = ctx.config.Delivery.PartLabel
				}
				rows := make([][]string, 0, len(season.Files))
				for _, f := range season.Files {
					rows = append(rows, []string{strconv.Itoa(f.Sequence), f.FileRef, delivery.Caption(label, f)})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Part", "File", "Caption"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newSeasonsDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <season>",
		Short: "Delete a season and all of its files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := catalog.KeyFromInput(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(cmd, func(c context.Context, store catalog.Store) error {
				if err := store.DeleteSeason(c, key); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", key)
				return nil
			})
		},
	}
}

func newSeasonsCaptionCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "caption <season> <part> <text>",
		Short: "Replace the caption of one part (parts start at 1)",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := catalog.KeyFromInput(args[0])
			if err != nil {
				return err
			}
			part, err := strconv.Atoi(args[1])
			if err != nil || part < 1 {
				return fmt.Errorf("part must be a positive number, got %q", args[1])
			}
			caption := strings.TrimSpace(strings.Join(args[2:], " "))
			return ctx.withStore(cmd, func(c context.Context, store catalog.Store) error {
				ok, err := store.UpdateFileCaption(c, key, part-1, caption)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%s has no part %d", key, part)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s part %d\n", key, part)
				return nil
			})
		},
	}
}
