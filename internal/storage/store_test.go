package storage

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"plug-herald/internal/model"
)

// exerciseStore runs the behaviour shared by every backend.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	ids, err := s.SeenIDs(ctx)
	if err != nil {
		t.Fatalf("SeenIDs on empty store: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected empty seen set, got %v", ids)
	}

	if err := s.AddSeen(ctx, []int64{101, 100}); err != nil {
		t.Fatalf("AddSeen: %v", err)
	}
	if err := s.AddSeen(ctx, []int64{101, 102, 103}); err != nil {
		t.Fatalf("AddSeen: %v", err)
	}
	ids, err = s.SeenIDs(ctx)
	if err != nil {
		t.Fatalf("SeenIDs: %v", err)
	}
	if want := []int64{103, 102, 101, 100}; !reflect.DeepEqual(ids, want) {
		t.Fatalf("seen = %v, want %v", ids, want)
	}
	if err := s.AddSeen(ctx, nil); err != nil {
		t.Fatalf("AddSeen(nil): %v", err)
	}

	if err := s.SetTarget(ctx, "guild-b", 222); err != nil {
		t.Fatalf("SetTarget: %v", err)
	}
	if err := s.SetTarget(ctx, "guild-a", 111); err != nil {
		t.Fatalf("SetTarget: %v", err)
	}
	if err := s.SetTarget(ctx, "guild-a", 112); err != nil {
		t.Fatalf("SetTarget overwrite: %v", err)
	}
	if err := s.ClearTarget(ctx, "guild-b"); err != nil {
		t.Fatalf("ClearTarget: %v", err)
	}
	dests, err := s.Destinations(ctx)
	if err != nil {
		t.Fatalf("Destinations: %v", err)
	}
	want := []model.Destination{{Group: "guild-a", ChannelID: 112}, {Group: "guild-b"}}
	if !reflect.DeepEqual(dests, want) {
		t.Fatalf("destinations = %+v, want %+v", dests, want)
	}
	if dests[1].HasTarget() {
		t.Errorf("cleared group should have no target")
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "herald.db")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	exerciseStore(t, s)
}

func TestSQLiteStorePersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "herald.db")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := s.AddSeen(context.Background(), []int64{7, 9}); err != nil {
		t.Fatalf("AddSeen: %v", err)
	}
	_ = s.Close()

	s, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	ids, err := s.SeenIDs(context.Background())
	if err != nil {
		t.Fatalf("SeenIDs: %v", err)
	}
	if want := []int64{9, 7}; !reflect.DeepEqual(ids, want) {
		t.Fatalf("seen = %v, want %v", ids, want)
	}
}

func TestOpenSQLiteRequiresPath(t *testing.T) {
	if _, err := OpenSQLite("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
