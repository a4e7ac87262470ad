package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"plug-herald/internal/ai"
	"plug-herald/internal/announce"
	"plug-herald/internal/config"
	"plug-herald/internal/dedup"
	"plug-herald/internal/discord"
	"plug-herald/internal/plug"
	"plug-herald/internal/redisclient"
	"plug-herald/internal/reltime"
	"plug-herald/internal/storage"
	"plug-herald/worker"

	"golang.org/x/time/rate"
)

// openStore opens the configured persistence backend.
func openStore(cfg config.Config) (storage.Store, error) {
	switch cfg.Storage.Driver {
	case "redis":
		return storage.NewRedisStore(redisclient.New(cfg.Redis), cfg.Redis.KeyPrefix), nil
	case "sqlite":
		s, err := storage.OpenSQLite(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "memory":
		slog.Warn("using in-memory storage, state is lost on exit")
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func newParser(cfg config.Config) plug.Parser {
	return &plug.FrameParser{
		Origin:      cfg.Plug.Origin,
		PostURLBase: cfg.Plug.PostURLBase,
		Resolver:    reltime.New(cfg.Location()),
	}
}

func sources(cfg config.Config) []plug.Source {
	out := make([]plug.Source, 0, len(cfg.Plug.Sources))
	for _, s := range cfg.Plug.Sources {
		out = append(out, plug.Source{Name: s.Name, URL: strings.TrimSpace(s.URL)})
	}
	return out
}

// newAnnouncer wires the pipeline. Delivery needs a Discord token; commands
// that only render can pass requireToken=false.
func newAnnouncer(cfg config.Config, store storage.Store, requireToken bool) (*worker.Announcer, error) {
	if requireToken && strings.TrimSpace(cfg.Discord.Token) == "" {
		return nil, errors.New("discord.token is required to deliver announcements")
	}
	fetchTimeout, pollInterval, discordTimeout, lockTTL := cfg.Durations()

	messenger, err := discord.New(cfg.Discord.BaseURL, cfg.Discord.Token, discordTimeout)
	if err != nil {
		return nil, err
	}
	dispatcher := &announce.Dispatcher{
		Messenger:      messenger,
		Registry:       store,
		MaxDescription: cfg.Announce.MaxDescription,
	}
	if cfg.Discord.RatePerSecond > 0 {
		dispatcher.Limiter = rate.NewLimiter(rate.Limit(cfg.Discord.RatePerSecond), 1)
	}
	if cfg.OpenAI.APIKey != "" {
		condenser, err := ai.NewOpenAI(ai.Config{APIKey: cfg.OpenAI.APIKey, Model: cfg.OpenAI.Model, BaseURL: cfg.OpenAI.BaseURL})
		if err != nil {
			return nil, err
		}
		dispatcher.Condenser = condenser
	}

	a := &worker.Announcer{
		Fetcher:    plug.NewFetcher(fetchTimeout, cfg.Plug.UserAgent),
		Parser:     newParser(cfg),
		Sources:    sources(cfg),
		Tracker:    dedup.NewTracker(store, cfg.Announce.BacklogOnFirstRun),
		Dispatcher: dispatcher,
		LockTTL:    lockTTL,
		Interval:   pollInterval,
	}
	if l, ok := store.(storage.Locker); ok {
		a.Locker = l
	}
	return a, nil
}
