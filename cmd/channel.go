package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// channelCmd groups destination registry subcommands.
var channelCmd = &cobra.Command{
	Use:   "channel",
	Short: "Manage the announcement channel of each server",
}

var channelSetCmd = &cobra.Command{
	Use:   "set <group> <channel-id>",
	Short: "Set the announcement channel for a server",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		channelID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil || channelID <= 0 {
			return fmt.Errorf("invalid channel id %q", args[1])
		}
		store, err := openStore(GetConfig())
		if err != nil {
			return err
		}
		defer store.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.SetTarget(ctx, args[0], channelID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Announcement channel for %s has been set to %d\n", args[0], channelID)
		return nil
	},
}

var channelClearCmd = &cobra.Command{
	Use:   "clear <group>",
	Short: "Stop announcements for a server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(GetConfig())
		if err != nil {
			return err
		}
		defer store.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.ClearTarget(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Announcement channel for %s has been cleared\n", args[0])
		return nil
	},
}

var channelListCmd = &cobra.Command{
	Use:   "list",
	Short: "List servers and their announcement channels",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(GetConfig())
		if err != nil {
			return err
		}
		defer store.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		dests, err := store.Destinations(ctx)
		if err != nil {
			return err
		}
		for _, d := range dests {
			if d.HasTarget() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", d.Group, d.ChannelID)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t-\n", d.Group)
			}
		}
		return nil
	},
}

func init() {
	channelCmd.AddCommand(channelSetCmd, channelClearCmd, channelListCmd)
	rootCmd.AddCommand(channelCmd)
}
