package cmd

import "github.com/spf13/cobra"

// redisCmd groups commands that inspect the Redis storage backend.
var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Inspect the Redis storage backend",
}

func init() {
	rootCmd.AddCommand(redisCmd)
}
