package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"seasonbot/internal/catalog"
)

func newChannelsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channels",
		Short: "Manage the forced-subscription channel list",
	}
	cmd.AddCommand(newChannelsListCommand(ctx))
	cmd.AddCommand(newChannelsAddCommand(ctx))
	cmd.AddCommand(newChannelsRemoveCommand(ctx))
	return cmd
}

func newChannelsListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List required channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(c context.Context, store catalog.Store) error {
				channels, err := store.ListChannels(c)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, channels)
				}
				out := cmd.OutOrStdout()
				if len(channels) == 0 {
					fmt.Fprintln(out, "No required channels")
					return nil
				}
				rows := make([][]string, 0, len(channels))
				for i, ch := range channels {
					link, _ := catalog.ChannelURL(ch.ChannelID)
					rows = append(rows, []string{strconv.Itoa(i + 1), ch.ChannelID, ch.Name, link})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"#", "Channel", "Name", "Link"},
					rows,
					[]columnAlignment{alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newChannelsAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <channel-id> [name]",
		Short: "Require membership in a channel (@handle or numeric id)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(strings.Join(args[1:], " "))
			return ctx.withStore(cmd, func(c context.Context, store catalog.Store) error {
				ch, err := store.AddChannel(c, args[0], name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", ch.ChannelID, ch.Name)
				if _, public := catalog.ChannelURL(ch.ChannelID); !public {
					fmt.Fprintln(cmd.OutOrStdout(), "Numeric channel ids get no join button; users must find the channel themselves.")
				}
				return nil
			})
		},
	}
}

func newChannelsRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <channel-id>",
		Short: "Stop requiring membership in a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(c context.Context, store catalog.Store) error {
				if err := store.RemoveChannel(c, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
				return nil
			})
		},
	}
}
