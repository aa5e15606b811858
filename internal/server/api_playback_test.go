package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"digitalis/internal/models"
)

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-Client-ID", "test-client")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func getStatus(t *testing.T, srv *Server) models.Snapshot {
	t.Helper()
	w := doJSON(t, srv, http.MethodGet, "/api/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status returned %d: %s", w.Code, w.Body.String())
	}
	var snap models.Snapshot
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatal(err)
	}
	return snap
}

func TestEnqueueAndPlay(t *testing.T) {
	srv, store, _ := newTestServer(t)
	id := seedTrack(t, store, "song", "artist", "album", 180_000)

	w := doJSON(t, srv, http.MethodPost, "/api/queue", map[string]any{"track_id": id})
	if w.Code != http.StatusOK {
		t.Fatalf("enqueue returned %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, srv, http.MethodPost, "/api/play", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("play returned %d: %s", w.Code, w.Body.String())
	}

	snap := getStatus(t, srv)
	if snap.State.Status != models.StatusPlaying {
		t.Fatalf("status = %s, want playing", snap.State.Status)
	}
	if len(snap.State.Queue) != 1 || snap.State.Queue[0].TrackID != id {
		t.Fatalf("queue = %+v", snap.State.Queue)
	}
	if snap.Version == 0 {
		t.Fatal("version not bumped")
	}
}

func TestPlayEmptyQueueRejected(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/play", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("play on empty queue returned %d, want 400", w.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["error"] == "" {
		t.Fatal("rejection carries no reason")
	}
}

func TestEnqueueUnknownTrackRejected(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/queue", map[string]any{"track_id": 999})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("enqueue unknown track returned %d, want 400", w.Code)
	}
}

func TestVolumeOutOfRangeRejected(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/volume", map[string]any{"volume": 150})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("volume 150 returned %d, want 400", w.Code)
	}

	w = doJSON(t, srv, http.MethodPost, "/api/volume", map[string]any{"volume": 40})
	if w.Code != http.StatusOK {
		t.Fatalf("volume 40 returned %d: %s", w.Code, w.Body.String())
	}
	if snap := getStatus(t, srv); snap.State.Volume != 40 {
		t.Fatalf("volume = %d, want 40", snap.State.Volume)
	}
}

func TestSeekAndPauseFlow(t *testing.T) {
	srv, store, _ := newTestServer(t)
	id := seedTrack(t, store, "song", "artist", "album", 180_000)

	doJSON(t, srv, http.MethodPost, "/api/queue", map[string]any{"track_id": id})
	doJSON(t, srv, http.MethodPost, "/api/play", nil)

	w := doJSON(t, srv, http.MethodPost, "/api/seek", map[string]any{"position_ms": 30_000})
	if w.Code != http.StatusOK {
		t.Fatalf("seek returned %d: %s", w.Code, w.Body.String())
	}
	if snap := getStatus(t, srv); snap.State.ElapsedMs != 30_000 {
		t.Fatalf("elapsed = %d, want 30000", snap.State.ElapsedMs)
	}

	w = doJSON(t, srv, http.MethodPost, "/api/pause", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("pause returned %d", w.Code)
	}
	if snap := getStatus(t, srv); snap.State.Status != models.StatusPaused {
		t.Fatalf("status = %s, want paused", snap.State.Status)
	}
}

func TestQueueOperations(t *testing.T) {
	srv, store, _ := newTestServer(t)
	var ids []int64
	for i := 0; i < 3; i++ {
		ids = append(ids, seedTrack(t, store, fmt.Sprintf("song-%d", i), "artist", "album", 60_000))
	}
	for _, id := range ids {
		doJSON(t, srv, http.MethodPost, "/api/queue", map[string]any{"track_id": id})
	}

	w := doJSON(t, srv, http.MethodGet, "/api/queue", nil)
	var q QueueResponse
	if err := json.NewDecoder(w.Body).Decode(&q); err != nil {
		t.Fatal(err)
	}
	if len(q.Queue) != 3 {
		t.Fatalf("queue length = %d, want 3", len(q.Queue))
	}

	w = doJSON(t, srv, http.MethodPost, "/api/queue/reorder", map[string]any{"from": 0, "to": 2})
	if w.Code != http.StatusOK {
		t.Fatalf("reorder returned %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, srv, http.MethodDelete, "/api/queue/1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("remove returned %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, srv, http.MethodGet, "/api/queue", nil)
	if err := json.NewDecoder(w.Body).Decode(&q); err != nil {
		t.Fatal(err)
	}
	if len(q.Queue) != 2 {
		t.Fatalf("queue length after remove = %d, want 2", len(q.Queue))
	}
	if q.Queue[len(q.Queue)-1].TrackID != ids[0] {
		t.Fatalf("reordered tail = %+v, want track %d last", q.Queue, ids[0])
	}

	w = doJSON(t, srv, http.MethodDelete, "/api/queue/notanumber", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad index returned %d, want 400", w.Code)
	}
}

func TestNextAndPrevious(t *testing.T) {
	srv, store, _ := newTestServer(t)
	a := seedTrack(t, store, "a", "artist", "album", 60_000)
	b := seedTrack(t, store, "b", "artist", "album", 60_000)

	doJSON(t, srv, http.MethodPost, "/api/queue", map[string]any{"track_id": a})
	doJSON(t, srv, http.MethodPost, "/api/queue", map[string]any{"track_id": b})
	doJSON(t, srv, http.MethodPost, "/api/play", nil)

	w := doJSON(t, srv, http.MethodPost, "/api/next", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("next returned %d", w.Code)
	}
	if snap := getStatus(t, srv); snap.State.CurrentIndex != 1 {
		t.Fatalf("current index = %d, want 1", snap.State.CurrentIndex)
	}

	w = doJSON(t, srv, http.MethodPost, "/api/previous", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("previous returned %d", w.Code)
	}
	if snap := getStatus(t, srv); snap.State.CurrentIndex != 0 {
		t.Fatalf("current index = %d, want 0", snap.State.CurrentIndex)
	}
}
