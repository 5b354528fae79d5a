package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	started := time.Date(2024, 5, 12, 9, 30, 0, 0, time.UTC)
	sess := Session{
		ID:            "abc",
		StartedAt:     started,
		EndedAt:       started.Add(90 * time.Second),
		Termination:   "stop requested",
		Clicks:        3,
		Typing:        2,
		KeyPresses:    1,
		AudioCommands: 1,
		JoinTimeouts:  []string{"log writer"},
		LogPath:       "data/observer_log.jsonl",
	}
	if err := s.Record(ctx, sess); err != nil {
		t.Fatalf("record: %v", err)
	}

	got, err := s.Get(ctx, "abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.StartedAt.Equal(sess.StartedAt) || got.Duration() != 90*time.Second {
		t.Fatalf("unexpected times %+v", got)
	}
	if got.Events() != 7 {
		t.Fatalf("expected 7 events, got %d", got.Events())
	}
	if len(got.JoinTimeouts) != 1 || got.JoinTimeouts[0] != "log writer" {
		t.Fatalf("unexpected join timeouts %v", got.JoinTimeouts)
	}
}

func TestGetMissingSession(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListNewestFirstWithLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"first", "second", "third"} {
		start := base.Add(time.Duration(i) * time.Hour)
		if err := s.Record(ctx, Session{ID: id, StartedAt: start, EndedAt: start.Add(time.Minute), Termination: "stop requested"}); err != nil {
			t.Fatalf("record %s: %v", id, err)
		}
	}

	all, err := s.List(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].ID != "third" || all[2].ID != "first" {
		t.Fatalf("unexpected order %+v", all)
	}
	limited, err := s.List(ctx, 2)
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("expected two sessions, got %d", len(limited))
	}
}

func TestRecordReplacesExistingRow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	if err := s.Record(ctx, Session{ID: "x", StartedAt: now, EndedAt: now, Termination: "a"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.Record(ctx, Session{ID: "x", StartedAt: now, EndedAt: now, Termination: "b", Clicks: 4}); err != nil {
		t.Fatalf("record replace: %v", err)
	}
	all, err := s.List(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 || all[0].Termination != "b" || all[0].Clicks != 4 {
		t.Fatalf("expected replaced row, got %+v", all)
	}
}

func TestOpenPersistsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	now := time.Now().UTC()
	if err := s.Record(context.Background(), Session{ID: "persist", StartedAt: now, EndedAt: now, Termination: "done"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	s.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if _, err := reopened.Get(context.Background(), "persist"); err != nil {
		t.Fatalf("expected persisted session: %v", err)
	}
}

func TestRecordRequiresID(t *testing.T) {
	s := openTestStore(t)
	if err := s.Record(context.Background(), Session{}); err == nil {
		t.Fatalf("expected error for empty id")
	}
}
