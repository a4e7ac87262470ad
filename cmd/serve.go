package cmd

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"plug-herald/worker"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll the sources and announce new posts until stopped",
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
		slog.Info("starting announcer", "sources", len(announcer.Sources), "interval", announcer.Interval, "storage", cfg.Storage.Driver)

		mgr := worker.NewManager(announcer)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Signal handling for systemd
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			s := <-sigc
			log.Printf("received signal: %s, shutting down", s)
			cancel()
		}()

		return mgr.Start(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
