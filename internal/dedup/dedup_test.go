package dedup

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type sliceStore struct {
	ids     []int64
	readErr error
}

func (s *sliceStore) SeenIDs(ctx context.Context) ([]int64, error) {
	if s.readErr != nil {
		return nil, s.readErr
	}
	return append([]int64(nil), s.ids...), nil
}

func (s *sliceStore) AddSeen(ctx context.Context, ids []int64) error {
	s.ids = Merge(s.ids, ids)
	return nil
}

func TestDiffAndCommitScenario(t *testing.T) {
	ctx := context.Background()
	store := &sliceStore{ids: []int64{101, 100}}
	tr := NewTracker(store, false)

	tick := []int64{101, 102, 103}
	d, err := tr.Diff(ctx, tick)
	if err != nil {
		t.Fatalf("Diff error: %v", err)
	}
	if d.ColdStart {
		t.Errorf("unexpected cold start")
	}
	if want := []int64{102, 103}; !reflect.DeepEqual(d.New, want) {
		t.Errorf("new = %v, want %v", d.New, want)
	}
	if err := tr.Commit(ctx, tick); err != nil {
		t.Fatalf("Commit error: %v", err)
	}
	if want := []int64{103, 102, 101, 100}; !reflect.DeepEqual(store.ids, want) {
		t.Errorf("seen = %v, want %v", store.ids, want)
	}

	// unchanged content on the next tick is not new again
	d, err = tr.Diff(ctx, tick)
	if err != nil {
		t.Fatalf("Diff error: %v", err)
	}
	if len(d.New) != 0 {
		t.Errorf("second tick new = %v, want none", d.New)
	}
}

func TestColdStartSeedsSilently(t *testing.T) {
	ctx := context.Background()
	store := &sliceStore{}
	tr := NewTracker(store, false)
	d, err := tr.Diff(ctx, []int64{5, 3, 4})
	if err != nil {
		t.Fatalf("Diff error: %v", err)
	}
	if !d.ColdStart || len(d.New) != 0 {
		t.Fatalf("delta = %+v, want cold start with no new ids", d)
	}
	if err := tr.Commit(ctx, []int64{5, 3, 4}); err != nil {
		t.Fatalf("Commit error: %v", err)
	}
	latest, ok, err := tr.Latest(ctx)
	if err != nil || !ok || latest != 5 {
		t.Fatalf("Latest = %d %v %v", latest, ok, err)
	}
}

func TestColdStartBacklog(t *testing.T) {
	tr := NewTracker(&sliceStore{}, true)
	d, err := tr.Diff(context.Background(), []int64{5, 3, 4})
	if err != nil {
		t.Fatalf("Diff error: %v", err)
	}
	if want := []int64{3, 4, 5}; !reflect.DeepEqual(d.New, want) {
		t.Fatalf("new = %v, want %v", d.New, want)
	}
}

func TestDiffReadError(t *testing.T) {
	boom := errors.New("boom")
	tr := NewTracker(&sliceStore{readErr: boom}, false)
	if _, err := tr.Diff(context.Background(), []int64{1}); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped boom", err)
	}
}

func TestMergeNeverDrops(t *testing.T) {
	got := Merge([]int64{9, 7, 7, 1}, []int64{8, 1, 10})
	if want := []int64{10, 9, 8, 7, 1}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Merge = %v, want %v", got, want)
	}
}

func TestDiffDedupsTick(t *testing.T) {
	got := Diff([]int64{1}, []int64{3, 2, 3, 1})
	if want := []int64{2, 3}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Diff = %v, want %v", got, want)
	}
}
