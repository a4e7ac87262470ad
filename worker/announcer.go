package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"plug-herald/internal/announce"
	"plug-herald/internal/dedup"
	"plug-herald/internal/feed"
	"plug-herald/internal/model"
	"plug-herald/internal/plug"
	"plug-herald/internal/storage"
)

// ErrPostNotFound is returned by manual actions when the most recently seen
// post cannot be resolved from the sources.
var ErrPostNotFound = errors.New("announcer: could not find the latest post")

const (
	tickLockName    = "tick"
	detachedTimeout = 5 * time.Second
	// maxSeedDeferrals bounds how many ticks seeding waits for every source
	// to answer before it seeds from those that did.
	maxSeedDeferrals = 3
)

// Fetcher retrieves raw pages for the configured sources.
type Fetcher interface {
	FetchAll(ctx context.Context, sources []plug.Source) []plug.Result
}

// TickReport summarizes one tick.
type TickReport struct {
	Observed      int
	New           []int64
	ColdStart     bool
	// SeedDeferred is set when an empty seen set was left empty because
	// some sources failed.
	SeedDeferred  bool
	FetchFailures int
	ParseFailures int
	Dispatch      announce.Report
}

// Announcer polls the sources, diffs against the seen set and announces new
// posts. At most one tick, scheduled or manual, runs at a time.
type Announcer struct {
	Fetcher    Fetcher
	Parser     plug.Parser
	Sources    []plug.Source
	Tracker    *dedup.Tracker
	Dispatcher *announce.Dispatcher
	// Locker, when set, also excludes ticks running in other processes.
	Locker  storage.Locker
	LockTTL time.Duration
	// Interval is the pause between the end of one tick and the next.
	Interval time.Duration
	// OnPhase observes phase transitions.
	OnPhase func(Phase)

	mu            sync.Mutex
	posts         map[int64]model.Post // posts of the last non-empty collection, guarded by mu
	seedDeferrals int                  // guarded by mu
	phase         atomic.Int32
}

// Phase returns the current phase.
func (a *Announcer) Phase() Phase {
	return Phase(a.phase.Load())
}

func (a *Announcer) setPhase(p Phase) {
	a.phase.Store(int32(p))
	slog.Debug("announcer: phase", "phase", p.String())
	if a.OnPhase != nil {
		a.OnPhase(p)
	}
}

// Start runs a tick immediately and then again Interval after each tick
// finishes, until ctx is cancelled.
func (a *Announcer) Start(ctx context.Context) error {
	if a.Interval <= 0 {
		a.Interval = 60 * time.Second
	}
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			a.setPhase(PhaseCancelled)
			return nil
		case <-timer.C:
		}
		rep, err := a.Tick(ctx)
		if err != nil {
			if ctx.Err() == nil {
				slog.Error("announcer: tick failed", "error", err)
			}
		} else {
			slog.Info("announcer: tick completed",
				"observed", rep.Observed, "new", len(rep.New), "cold_start", rep.ColdStart,
				"delivered", rep.Dispatch.Delivered, "failed", len(rep.Dispatch.Failures))
		}
		timer.Reset(a.Interval)
	}
}

// Tick runs one full Fetch, Parse, Diff, Dispatch, Persist cycle.
func (a *Announcer) Tick(ctx context.Context) (TickReport, error) {
	lctx, release, err := a.lock(ctx)
	if err != nil {
		return TickReport{}, err
	}
	defer release()
	return a.tick(lctx)
}

// ForceAnnounce delivers the most recently seen post to every destination.
func (a *Announcer) ForceAnnounce(ctx context.Context) (announce.Report, error) {
	lctx, release, err := a.lock(ctx)
	if err != nil {
		return announce.Report{}, err
	}
	defer release()
	p, ok, err := a.latest(lctx)
	if err != nil {
		return announce.Report{}, err
	}
	if !ok {
		return announce.Report{}, ErrPostNotFound
	}
	rep, err := a.Dispatcher.DispatchOne(lctx, p)
	if err == nil {
		err = lockLost(lctx)
	}
	return rep, err
}

// Latest returns the notification for the most recently seen post, or the
// placeholder when nothing has been seen yet.
func (a *Announcer) Latest(ctx context.Context) (announce.Notification, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok, err := a.latest(ctx)
	if err != nil {
		return announce.Notification{}, err
	}
	if !ok {
		return announce.Placeholder(), nil
	}
	return a.Dispatcher.Render(ctx, p), nil
}

// latest resolves the highest seen id, collecting from the sources when the
// cache does not hold it. Callers hold a.mu.
func (a *Announcer) latest(ctx context.Context) (model.Post, bool, error) {
	id, ok, err := a.Tracker.Latest(ctx)
	if err != nil {
		return model.Post{}, false, err
	}
	if !ok {
		return model.Post{}, false, nil
	}
	if p, ok := a.posts[id]; ok {
		return p, true, nil
	}
	snap, _ := a.collect(ctx)
	a.remember(snap)
	a.setPhase(PhaseIdle)
	if p, ok := snap.Posts[id]; ok {
		return p, true, nil
	}
	return model.Post{}, false, fmt.Errorf("%w: id %d", ErrPostNotFound, id)
}

// lock takes the in-process mutex and, when configured, the shared lock.
// The returned context is cancelled with storage.ErrLockLost if the shared
// lock is lost before release.
func (a *Announcer) lock(ctx context.Context) (context.Context, func(), error) {
	a.mu.Lock()
	if a.Locker == nil {
		return ctx, a.mu.Unlock, nil
	}
	ttl := a.LockTTL
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	lease, err := a.Locker.AcquireLock(ctx, tickLockName, ttl)
	if err != nil {
		a.mu.Unlock()
		return nil, nil, fmt.Errorf("announcer: acquire tick lock: %w", err)
	}
	lctx, cancel := context.WithCancelCause(ctx)
	stop := make(chan struct{})
	watched := make(chan struct{})
	go func() {
		defer close(watched)
		select {
		case <-lease.Lost():
			slog.Error("announcer: tick lock lost, abandoning remaining deliveries")
			cancel(storage.ErrLockLost)
		case <-stop:
		}
	}()
	return lctx, func() {
		close(stop)
		<-watched
		rctx, rcancel := detached(ctx)
		defer rcancel()
		if err := lease.Release(rctx); err != nil {
			slog.Warn("announcer: release tick lock", "error", err)
		}
		cancel(nil)
		a.mu.Unlock()
	}, nil
}

// lockLost reports storage.ErrLockLost if ctx was cancelled by a lost lock.
func lockLost(ctx context.Context) error {
	if errors.Is(context.Cause(ctx), storage.ErrLockLost) {
		return fmt.Errorf("announcer: %w", storage.ErrLockLost)
	}
	return nil
}

func (a *Announcer) tick(ctx context.Context) (TickReport, error) {
	defer a.setPhase(PhaseIdle)

	snap, rep := a.collect(ctx)
	a.remember(snap)

	a.setPhase(PhaseDiffing)
	delta, err := a.Tracker.Diff(ctx, snap.IDs)
	if err != nil {
		return rep, err
	}
	rep.New = delta.New
	rep.ColdStart = delta.ColdStart
	if delta.ColdStart && rep.FetchFailures > 0 && a.seedDeferrals < maxSeedDeferrals {
		// an empty seen set is seeded from a complete view, waiting at most
		// maxSeedDeferrals ticks for failed sources
		a.seedDeferrals++
		rep.New = nil
		rep.SeedDeferred = true
		slog.Warn("announcer: empty seen set and some sources failed, seeding deferred",
			"failed_sources", rep.FetchFailures, "attempt", a.seedDeferrals, "max", maxSeedDeferrals)
		return rep, nil
	}
	a.seedDeferrals = 0
	if delta.ColdStart && len(delta.New) == 0 && len(snap.IDs) > 0 {
		slog.Info("announcer: empty seen set, seeding without announcing", "ids", len(snap.IDs))
	}

	if len(delta.New) > 0 {
		a.setPhase(PhaseDispatching)
		slog.Info("announcer: new posts found", "ids", delta.New)
		drep, err := a.Dispatcher.Dispatch(ctx, snap.Resolve(delta.New))
		rep.Dispatch = drep
		if err != nil {
			return rep, err
		}
	}

	// the seen set is recorded even if ctx was cancelled during dispatch
	a.setPhase(PhasePersisting)
	pctx, cancel := detached(ctx)
	defer cancel()
	if err := a.Tracker.Commit(pctx, snap.IDs); err != nil {
		return rep, err
	}
	return rep, lockLost(ctx)
}

// collect fetches and parses every source into one snapshot.
func (a *Announcer) collect(ctx context.Context) (feed.Snapshot, TickReport) {
	var rep TickReport
	a.setPhase(PhaseFetching)
	results := a.Fetcher.FetchAll(ctx, a.Sources)

	a.setPhase(PhaseParsing)
	pages := make([][]model.Post, 0, len(results))
	for _, res := range results {
		if res.Err != nil {
			rep.FetchFailures++
			continue
		}
		page, err := a.Parser.Parse(bytes.NewReader(res.Body))
		if err != nil {
			rep.FetchFailures++
			slog.Warn("announcer: unreadable page", "source", res.Source.Name, "error", err)
			continue
		}
		for _, f := range page.Failures {
			slog.Warn("announcer: skipped item", "source", res.Source.Name, "error", f)
		}
		rep.ParseFailures += len(page.Failures)
		pages = append(pages, page.Posts)
	}
	snap := feed.Aggregate(pages...)
	rep.Observed = len(snap.IDs)
	return snap, rep
}

// remember keeps the snapshot's posts for manual actions. An empty
// collection (every source failed) keeps the previous posts.
func (a *Announcer) remember(snap feed.Snapshot) {
	if snap.Empty() {
		return
	}
	a.posts = snap.Posts
}

// detached returns a short-lived context that survives cancellation of ctx.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), detachedTimeout)
}
