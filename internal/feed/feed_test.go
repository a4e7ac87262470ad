package feed

import (
	"testing"

	"plug-herald/internal/model"
)

func TestAggregateDedupsAndSorts(t *testing.T) {
	notices := []model.Post{{ID: 103, Title: "c"}, {ID: 101, Title: "a"}}
	patches := []model.Post{{ID: 102, Title: "b"}, {ID: 101, Title: "a refreshed"}}

	s := Aggregate(notices, nil, patches)
	want := []int64{101, 102, 103}
	if len(s.IDs) != len(want) {
		t.Fatalf("ids = %v, want %v", s.IDs, want)
	}
	for i := range want {
		if s.IDs[i] != want[i] {
			t.Fatalf("ids = %v, want %v", s.IDs, want)
		}
	}
	if len(s.Posts) != 3 {
		t.Fatalf("posts = %d, want 3", len(s.Posts))
	}
	if s.Posts[101].Title != "a refreshed" {
		t.Errorf("post 101 title = %q", s.Posts[101].Title)
	}
}

func TestResolveKeepsOrder(t *testing.T) {
	s := Aggregate([]model.Post{{ID: 1}, {ID: 2}, {ID: 3}})
	got := s.Resolve([]int64{3, 9, 1})
	if len(got) != 2 || got[0].ID != 3 || got[1].ID != 1 {
		t.Fatalf("Resolve = %+v", got)
	}
}

func TestAggregateEmpty(t *testing.T) {
	if s := Aggregate(); !s.Empty() || s.Posts == nil {
		t.Fatalf("expected empty snapshot with non-nil map, got %+v", s)
	}
}
