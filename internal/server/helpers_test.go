package server

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"digitalis/internal/auth"
	"digitalis/internal/catalog"
	"digitalis/internal/hub"
	"digitalis/internal/models"
	"digitalis/internal/sequencer"
)

func newTestCatalog(t *testing.T) *catalog.Store {
	t.Helper()
	s, err := catalog.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	_, f, _, _ := runtime.Caller(0)
	dir := filepath.Join(filepath.Dir(f), "..", "..", "migrations")
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("migrations dir: %v", err)
	}
	if err := s.Migrate(dir); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// newTestServer wires a full stack: in-memory catalog, running sequencer,
// hub fed by the sequencer's transitions.
func newTestServer(t *testing.T) (*Server, *catalog.Store, *sequencer.Sequencer) {
	t.Helper()
	store := newTestCatalog(t)

	var h *hub.Hub
	seq := sequencer.New(store, sequencer.WithObserver(func(tr models.Transition) {
		h.Publish(tr)
	}))
	h = hub.New(seq.Snapshot())
	seq.Start(context.Background())
	t.Cleanup(seq.Stop)

	srv := NewServer(store, WithSequencer(seq), WithHub(h))
	return srv, store, seq
}

func newTestGuard(t *testing.T, token string) *auth.Guard {
	t.Helper()
	g, err := auth.NewGuard(token)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func seedTrack(t *testing.T, store *catalog.Store, title, artist, album string, durationMs int64) int64 {
	t.Helper()
	id, err := store.UpsertTrack(&models.Track{
		Title:      title,
		Artist:     artist,
		Album:      album,
		DurationMs: durationMs,
		Path:       artist + "/" + album + "/" + title + ".mp3",
	}, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	return id
}
