package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var debugParseCmd = &cobra.Command{
	Use:   "debug-parse <html_path>",
	Short: "Debug: parse a saved post list page and print the extracted posts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		page, err := newParser(GetConfig()).Parse(f)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "posts: %d\n", len(page.Posts))
		for _, p := range page.Posts {
			fmt.Fprintf(out, "  %d\t%s\t%s\t%s\n", p.ID, p.Timestamp.Format(time.RFC3339), p.Author.Name, p.Title)
		}
		fmt.Fprintf(out, "skipped: %d\n", len(page.Failures))
		for _, e := range page.Failures {
			fmt.Fprintf(out, "  %v\n", e)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(debugParseCmd)
}
