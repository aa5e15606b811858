package sequencer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"digitalis/internal/models"
)

type fakeCatalog struct {
	tracks map[int64]*models.Track
}

func (c *fakeCatalog) Resolve(id int64) (*models.Track, error) {
	t, ok := c.tracks[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return t, nil
}

func newTestCatalog() *fakeCatalog {
	return &fakeCatalog{tracks: map[int64]*models.Track{
		1: {ID: 1, Title: "a", DurationMs: 180_000},
		2: {ID: 2, Title: "b", DurationMs: 200_000},
	}}
}

func newTestSequencer(t *testing.T, opts ...Option) *Sequencer {
	t.Helper()
	s := New(newTestCatalog(), opts...)
	s.Start(context.Background())
	t.Cleanup(s.Stop)
	return s
}

func submit(t *testing.T, s *Sequencer, cmd models.Command) uint64 {
	t.Helper()
	if cmd.ClientID == "" {
		cmd.ClientID = "test-client"
	}
	seq, err := s.Submit(context.Background(), cmd)
	if err != nil {
		t.Fatalf("submitting %s: %v", cmd.Type, err)
	}
	return seq
}

func TestSequenceNumbersStrictlyIncrease(t *testing.T) {
	s := newTestSequencer(t)

	var last uint64
	for i := 0; i < 5; i++ {
		seq := submit(t, s, models.Command{Type: models.CmdEnqueue, TrackID: 1})
		if seq <= last {
			t.Fatalf("seq %d not greater than %d", seq, last)
		}
		last = seq
	}
}

func TestVersionOnlyBumpsOnObservableChange(t *testing.T) {
	s := newTestSequencer(t)

	submit(t, s, models.Command{Type: models.CmdEnqueue, TrackID: 1})
	submit(t, s, models.Command{Type: models.CmdPlay})
	v := s.Snapshot().Version

	// Pause twice: the duplicate is a no-op and must not mint a version.
	submit(t, s, models.Command{Type: models.CmdPause})
	submit(t, s, models.Command{Type: models.CmdPause})

	snap := s.Snapshot()
	if snap.Version != v+1 {
		t.Fatalf("version = %d, want %d", snap.Version, v+1)
	}
	if snap.State.Status != models.StatusPaused {
		t.Fatalf("status = %s, want paused", snap.State.Status)
	}
}

func TestRejectionLeavesStateUntouched(t *testing.T) {
	s := newTestSequencer(t)

	before := s.Snapshot()
	_, err := s.Submit(context.Background(), models.Command{Type: models.CmdPlay, ClientID: "c1"})
	reason, ok := models.IsRejected(err)
	if !ok {
		t.Fatalf("expected rejection, got %v", err)
	}
	if reason != "empty queue" {
		t.Fatalf("reason = %q", reason)
	}
	after := s.Snapshot()
	if after.Version != before.Version || !after.State.Equal(before.State) {
		t.Fatal("rejected command mutated state")
	}
}

func TestEnqueueUnknownTrackRejectedAtAdmission(t *testing.T) {
	s := newTestSequencer(t)

	_, err := s.Submit(context.Background(), models.Command{Type: models.CmdEnqueue, TrackID: 99, ClientID: "c1"})
	if _, ok := models.IsRejected(err); !ok {
		t.Fatalf("expected rejection, got %v", err)
	}
	if len(s.Snapshot().State.Queue) != 0 {
		t.Fatal("unknown track entered the queue")
	}
}

func TestVolumeOutOfRangeRejectedAtAdmission(t *testing.T) {
	s := newTestSequencer(t)

	_, err := s.Submit(context.Background(), models.Command{Type: models.CmdSetVolume, Volume: 150, ClientID: "c1"})
	if _, ok := models.IsRejected(err); !ok {
		t.Fatalf("expected rejection, got %v", err)
	}
}

func TestClientTransportTickRejectedAtAdmission(t *testing.T) {
	s := newTestSequencer(t)

	submit(t, s, models.Command{Type: models.CmdEnqueue, TrackID: 1})
	submit(t, s, models.Command{Type: models.CmdPlay})
	before := s.Snapshot()

	// Only the backend may move the transport; a tick carrying a client
	// identity is refused before it reaches the worker.
	_, err := s.Submit(context.Background(), models.Command{
		Type: models.CmdTransportTick, PositionMs: 999_999, ClientID: "c1",
	})
	if _, ok := models.IsRejected(err); !ok {
		t.Fatalf("expected rejection, got %v", err)
	}
	after := s.Snapshot()
	if after.Version != before.Version || after.State.ElapsedMs != before.State.ElapsedMs {
		t.Fatal("client tick moved the transport")
	}

	// The backend's own ticks still flow.
	if _, err := s.Submit(context.Background(), models.Command{
		Type: models.CmdTransportTick, PositionMs: 1000,
	}); err != nil {
		t.Fatalf("internal tick: %v", err)
	}
	if got := s.Snapshot().State.ElapsedMs; got != 1000 {
		t.Fatalf("elapsed = %d, want 1000", got)
	}
}

func TestConcurrentCommandsSerialize(t *testing.T) {
	s := newTestSequencer(t)

	submit(t, s, models.Command{Type: models.CmdEnqueue, TrackID: 1})
	submit(t, s, models.Command{Type: models.CmdPlay})

	// Pause from one client and SetVolume from another, concurrently. Both
	// must succeed regardless of arrival order.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if _, err := s.Submit(context.Background(), models.Command{Type: models.CmdPause, ClientID: "x"}); err != nil {
			t.Errorf("pause: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		if _, err := s.Submit(context.Background(), models.Command{Type: models.CmdSetVolume, Volume: 50, ClientID: "y"}); err != nil {
			t.Errorf("volume: %v", err)
		}
	}()
	wg.Wait()

	snap := s.Snapshot()
	if snap.State.Status != models.StatusPaused {
		t.Fatalf("status = %s, want paused", snap.State.Status)
	}
	if snap.State.Volume != 50 {
		t.Fatalf("volume = %d, want 50", snap.State.Volume)
	}
}

func TestObserversSeeStrictlyIncreasingVersions(t *testing.T) {
	var mu sync.Mutex
	var versions []uint64
	s := New(newTestCatalog(), WithObserver(func(tr models.Transition) {
		mu.Lock()
		versions = append(versions, tr.Version)
		mu.Unlock()
	}))
	s.Start(context.Background())
	defer s.Stop()

	for i := 0; i < 3; i++ {
		submitCmd := models.Command{Type: models.CmdEnqueue, TrackID: 1, ClientID: "c"}
		if _, err := s.Submit(context.Background(), submitCmd); err != nil {
			t.Fatal(err)
		}
	}
	submitCmd := models.Command{Type: models.CmdPlay, ClientID: "c"}
	if _, err := s.Submit(context.Background(), submitCmd); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(versions) != 4 {
		t.Fatalf("got %d transitions, want 4", len(versions))
	}
	for i, v := range versions {
		if v != uint64(i+1) {
			t.Fatalf("versions %v not contiguous from 1", versions)
		}
	}
}

func TestOverloadRejectsInsteadOfQueueing(t *testing.T) {
	s := New(newTestCatalog(), WithRateLimit(1, 1))
	s.Start(context.Background())
	defer s.Stop()

	// Burst of 1: the second immediate submission must be shed.
	if _, err := s.Submit(context.Background(), models.Command{Type: models.CmdSetVolume, Volume: 10, ClientID: "c"}); err != nil {
		t.Fatal(err)
	}
	_, err := s.Submit(context.Background(), models.Command{Type: models.CmdSetVolume, Volume: 20, ClientID: "c"})
	if !errors.Is(err, models.ErrOverloaded) {
		t.Fatalf("expected ErrOverloaded, got %v", err)
	}
}

func TestInternalCommandsBypassRateLimit(t *testing.T) {
	s := New(newTestCatalog(), WithRateLimit(1, 1))
	s.Start(context.Background())
	defer s.Stop()

	submitCmd := models.Command{Type: models.CmdEnqueue, TrackID: 1, ClientID: "c"}
	if _, err := s.Submit(context.Background(), submitCmd); err != nil {
		t.Fatal(err)
	}
	// Internal ticks keep flowing even with the client budget exhausted.
	for i := 0; i < 10; i++ {
		if _, err := s.Submit(context.Background(), models.Command{Type: models.CmdTransportTick}); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}
}

func TestStopDrainsAndRefusesNewWork(t *testing.T) {
	s := New(newTestCatalog())
	s.Start(context.Background())

	submitCmd := models.Command{Type: models.CmdEnqueue, TrackID: 1, ClientID: "c"}
	if _, err := s.Submit(context.Background(), submitCmd); err != nil {
		t.Fatal(err)
	}
	s.Stop()

	_, err := s.Submit(context.Background(), models.Command{Type: models.CmdPlay, ClientID: "c"})
	if !errors.Is(err, models.ErrShuttingDown) {
		t.Fatalf("expected ErrShuttingDown, got %v", err)
	}
}

func TestSubmitHonorsContext(t *testing.T) {
	s := newTestSequencer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	<-ctx.Done()

	_, err := s.Submit(ctx, models.Command{Type: models.CmdSetVolume, Volume: 10, ClientID: "c"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
