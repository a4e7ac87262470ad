package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"plug-herald/internal/announce"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var lastFormat string

// lastCmd shows the notification of the most recently seen post.
var lastCmd = &cobra.Command{
	Use:   "last",
	Short: "Show the most recently seen post as it would be announced",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		announcer, err := newAnnouncer(cfg, store, false)
		if err != nil {
			return err
		}

		n, err := announcer.Latest(context.Background())
		if err != nil {
			return fmt.Errorf("could not complete last: %w", err)
		}
		return writeNotification(cmd.OutOrStdout(), n, lastFormat)
	},
}

func writeNotification(w io.Writer, n announce.Notification, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(n)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(n)
	case "text", "":
		fmt.Fprintln(w, n.Title)
		if n.IsPlaceholder() {
			return nil
		}
		fmt.Fprintln(w, n.URL)
		fmt.Fprintf(w, "by %s (%s) at %s\n", n.Author.Name, n.Author.URL, n.Timestamp.Format(time.RFC3339))
		if n.ThumbnailURL != "" {
			fmt.Fprintf(w, "thumbnail: %s\n", n.ThumbnailURL)
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, n.Description)
		return nil
	default:
		return fmt.Errorf("unknown format %q (want text, json or yaml)", format)
	}
}

func init() {
	lastCmd.Flags().StringVar(&lastFormat, "format", "text", "output format: text, json or yaml")
	rootCmd.AddCommand(lastCmd)
}
