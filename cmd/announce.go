package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// announceCmd re-sends the most recently seen post to every destination.
var announceCmd = &cobra.Command{
	Use:   "announce",
	Short: "Force announce the most recently seen post",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		announcer, err := newAnnouncer(cfg, store, true)
		if err != nil {
			return err
		}

		rep, err := announcer.ForceAnnounce(context.Background())
		if err != nil {
			return fmt.Errorf("could not complete announce: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "delivered: %d/%d\n", rep.Delivered, rep.Attempted)
		for _, f := range rep.Failures {
			fmt.Fprintf(cmd.OutOrStdout(), "  failed: %s (#%d): %v\n", f.Group, f.ChannelID, f.Err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(announceCmd)
}
