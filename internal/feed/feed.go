// Package feed merges the posts parsed from every source during one tick.
package feed

import (
	"sort"

	"plug-herald/internal/model"
)

// Snapshot is what one tick observed across all sources.
type Snapshot struct {
	// IDs is deduplicated and ascending.
	IDs   []int64
	Posts map[int64]model.Post
}

// Aggregate merges per-source post lists. When the same id shows up on
// several sources the last occurrence wins; ids are the dedup key, so the
// content is only a refresh.
func Aggregate(pages ...[]model.Post) Snapshot {
	s := Snapshot{Posts: map[int64]model.Post{}}
	for _, posts := range pages {
		for _, p := range posts {
			if _, ok := s.Posts[p.ID]; !ok {
				s.IDs = append(s.IDs, p.ID)
			}
			s.Posts[p.ID] = p
		}
	}
	sort.Slice(s.IDs, func(i, j int) bool { return s.IDs[i] < s.IDs[j] })
	return s
}

// Resolve returns the posts for ids in the given order, skipping ids the
// snapshot does not know.
func (s Snapshot) Resolve(ids []int64) []model.Post {
	out := make([]model.Post, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.Posts[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Empty reports whether nothing was observed.
func (s Snapshot) Empty() bool {
	return len(s.IDs) == 0
}
