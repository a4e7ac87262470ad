package storage

import (
	"context"
	"sort"
	"sync"

	"plug-herald/internal/dedup"
	"plug-herald/internal/model"
)

// MemoryStore keeps state in process memory. It backs dry runs and tests.
type MemoryStore struct {
	mu      sync.Mutex
	seen    []int64 // descending
	targets map[string]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{targets: map[string]int64{}}
}

func (s *MemoryStore) SeenIDs(ctx context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.seen...), nil
}

func (s *MemoryStore) AddSeen(ctx context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = dedup.Merge(s.seen, ids)
	return nil
}

func (s *MemoryStore) SetTarget(ctx context.Context, group string, channelID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets[group] = channelID
	return nil
}

func (s *MemoryStore) ClearTarget(ctx context.Context, group string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets[group] = 0
	return nil
}

func (s *MemoryStore) Destinations(ctx context.Context) ([]model.Destination, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Destination, 0, len(s.targets))
	for g, ch := range s.targets {
		out = append(out, model.Destination{Group: g, ChannelID: ch})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Group < out[j].Group })
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
