// Package dedup computes which observed post ids are new relative to the
// persisted seen set and records the union back.
package dedup

import (
	"context"
	"fmt"
	"sort"
)

// SeenStore persists the seen set. SeenIDs returns ids descending without
// duplicates; AddSeen only ever adds.
type SeenStore interface {
	SeenIDs(ctx context.Context) ([]int64, error)
	AddSeen(ctx context.Context, ids []int64) error
}

// Delta is the outcome of comparing one tick with the seen set.
type Delta struct {
	// New holds the ids to announce, ascending.
	New []int64
	// ColdStart is set when the seen set was empty before this tick.
	ColdStart bool
}

// Tracker diffs ticks against a SeenStore.
type Tracker struct {
	store SeenStore
	// announceBacklog makes the first tick on an empty seen set announce
	// everything it observed instead of seeding silently.
	announceBacklog bool
}

func NewTracker(store SeenStore, announceBacklog bool) *Tracker {
	return &Tracker{store: store, announceBacklog: announceBacklog}
}

// Diff returns the ids of tickIDs that are not in the seen set.
func (t *Tracker) Diff(ctx context.Context, tickIDs []int64) (Delta, error) {
	seen, err := t.store.SeenIDs(ctx)
	if err != nil {
		return Delta{}, fmt.Errorf("dedup: read seen set: %w", err)
	}
	d := Delta{ColdStart: len(seen) == 0}
	if d.ColdStart && !t.announceBacklog {
		return d, nil
	}
	d.New = Diff(seen, tickIDs)
	return d, nil
}

// Commit records tickIDs as seen.
func (t *Tracker) Commit(ctx context.Context, tickIDs []int64) error {
	if len(tickIDs) == 0 {
		return nil
	}
	if err := t.store.AddSeen(ctx, tickIDs); err != nil {
		return fmt.Errorf("dedup: persist seen set: %w", err)
	}
	return nil
}

// Latest returns the highest seen id.
func (t *Tracker) Latest(ctx context.Context) (int64, bool, error) {
	seen, err := t.store.SeenIDs(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("dedup: read seen set: %w", err)
	}
	if len(seen) == 0 {
		return 0, false, nil
	}
	return seen[0], true, nil
}

// Diff returns tick - seen, deduplicated and ascending.
func Diff(seen, tick []int64) []int64 {
	known := make(map[int64]struct{}, len(seen))
	for _, id := range seen {
		known[id] = struct{}{}
	}
	var out []int64
	for _, id := range tick {
		if _, ok := known[id]; ok {
			continue
		}
		known[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Merge returns seen ∪ tick, deduplicated and descending.
func Merge(seen, tick []int64) []int64 {
	set := make(map[int64]struct{}, len(seen)+len(tick))
	out := make([]int64, 0, len(seen)+len(tick))
	for _, ids := range [][]int64{seen, tick} {
		for _, id := range ids {
			if _, ok := set[id]; ok {
				continue
			}
			set[id] = struct{}{}
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] > out[j] })
	return out
}
