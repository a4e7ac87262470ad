package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// checkCmd runs one poll-and-dispatch cycle outside the regular cadence.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Force an immediate poll and announce new posts",
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

		rep, err := announcer.Tick(context.Background())
		if err != nil {
			return fmt.Errorf("could not complete check: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "observed: %d posts (%d sources failed, %d items skipped)\n", rep.Observed, rep.FetchFailures, rep.ParseFailures)
		if rep.SeedDeferred {
			fmt.Fprintln(out, "seen set is empty and some sources failed: seeding deferred")
		} else if rep.ColdStart && len(rep.New) == 0 {
			fmt.Fprintln(out, "seen set was empty: seeded without announcing")
		}
		fmt.Fprintf(out, "new: %v\n", rep.New)
		fmt.Fprintf(out, "delivered: %d/%d\n", rep.Dispatch.Delivered, rep.Dispatch.Attempted)
		for _, f := range rep.Dispatch.Failures {
			fmt.Fprintf(out, "  failed: post %d -> %s (#%d): %v\n", f.PostID, f.Group, f.ChannelID, f.Err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
