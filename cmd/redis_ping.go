package cmd

import (
	"context"
	"fmt"
	"time"

	"plug-herald/internal/redisclient"
	"plug-herald/internal/storage"

	"github.com/spf13/cobra"
)

// pingCmd checks the Redis connection and reports the announcer state kept there.
var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Ping Redis and show the stored seen set and destination counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		rdb := redisclient.New(cfg.Redis)
		store := storage.NewRedisStore(rdb, cfg.Redis.KeyPrefix)
		defer store.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		res, err := rdb.Ping(ctx).Result()
		if err != nil {
			return fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
		}
		seen, dests, err := store.Counts(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, res)
		fmt.Fprintf(out, "prefix: %s\nseen posts: %d\ndestinations: %d\n", cfg.Redis.KeyPrefix, seen, dests)
		return nil
	},
}

func init() {
	redisCmd.AddCommand(pingCmd)
}
