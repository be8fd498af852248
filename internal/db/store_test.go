package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "desk.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveLoadView(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	if _, err := s.LoadView(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	at := time.Unix(1_700_000_000, 0)
	snap := Snapshot{
		ViewID:    "v1",
		Kind:      "borrow",
		Attrs:     map[string]string{"api-readers-url": "/api/readers/"},
		State:     []byte(`{"BookIDs":[3,5]}`),
		UpdatedAt: at,
	}
	if err := s.SaveView(ctx, snap); err != nil {
		t.Fatalf("save: %v", err)
	}

	snap.State = []byte(`{"BookIDs":[5]}`)
	if err := s.SaveView(ctx, snap); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, err := s.LoadView(ctx, "v1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Kind != "borrow" || got.Attrs["api-readers-url"] != "/api/readers/" {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
	if string(got.State) != `{"BookIDs":[5]}` {
		t.Fatalf("state not replaced: %s", got.State)
	}
	if !got.UpdatedAt.Equal(at) {
		t.Fatalf("updated_at: %s", got.UpdatedAt)
	}

	if err := s.DeleteView(ctx, "v1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.LoadView(ctx, "v1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestPurgeViews(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	now := time.Now()

	for id, age := range map[string]time.Duration{"old": 3 * time.Hour, "fresh": time.Minute} {
		snap := Snapshot{ViewID: id, Kind: "return", State: []byte("{}"), UpdatedAt: now.Add(-age)}
		if err := s.SaveView(ctx, snap); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	n, err := s.PurgeViews(ctx, now.Add(-2*time.Hour))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 1 {
		t.Fatalf("purged %d, want 1", n)
	}
	if _, err := s.LoadView(ctx, "fresh"); err != nil {
		t.Fatalf("fresh view purged: %v", err)
	}
}

func TestReportedReaders(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	now := time.Now()

	first, err := s.MarkReported(ctx, 4, now)
	if err != nil || !first {
		t.Fatalf("first mark: %v %v", first, err)
	}
	again, err := s.MarkReported(ctx, 4, now)
	if err != nil || again {
		t.Fatalf("second mark should be a no-op: %v %v", again, err)
	}
	if _, err := s.MarkReported(ctx, 9, now); err != nil {
		t.Fatalf("mark 9: %v", err)
	}

	if err := s.KeepReported(ctx, []int{9}); err != nil {
		t.Fatalf("keep: %v", err)
	}
	if ok, _ := s.MarkReported(ctx, 4, now); !ok {
		t.Fatal("reader 4 should be reportable again")
	}
	if ok, _ := s.MarkReported(ctx, 9, now); ok {
		t.Fatal("reader 9 should still be reported")
	}

	if err := s.KeepReported(ctx, nil); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if ok, _ := s.MarkReported(ctx, 9, now); !ok {
		t.Fatal("reader 9 should be reportable after clear")
	}
}

func TestOpenEmptyPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}
