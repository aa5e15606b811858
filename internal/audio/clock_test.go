package audio

import (
	"context"
	"testing"
	"time"

	"digitalis/internal/models"
)

func collectEvents(t *testing.T, c *Clock, n int, timeout time.Duration) []Event {
	t.Helper()
	events := make([]Event, 0, n)
	deadline := time.After(timeout)
	for len(events) < n {
		select {
		case e := <-c.Events():
			events = append(events, e)
		case <-deadline:
			t.Fatalf("got %d events, want %d", len(events), n)
		}
	}
	return events
}

func TestClockEmitsPositionTicks(t *testing.T) {
	c := NewClock(WithTickInterval(5 * time.Millisecond))
	track := &models.Track{ID: 1, DurationMs: 60_000}
	h, err := c.Load(context.Background(), track)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Play(h, 0); err != nil {
		t.Fatal(err)
	}
	defer c.Stop()

	events := collectEvents(t, c, 3, time.Second)
	var last int64 = -1
	for _, e := range events {
		if e.Type != EventPositionTick {
			t.Fatalf("unexpected event %s", e.Type)
		}
		if e.ElapsedMs <= last {
			t.Fatalf("ticks not increasing: %d then %d", last, e.ElapsedMs)
		}
		last = e.ElapsedMs
	}
}

func TestClockEndsTrackAtDuration(t *testing.T) {
	c := NewClock(WithTickInterval(5 * time.Millisecond))
	track := &models.Track{ID: 1, DurationMs: 20}
	h, _ := c.Load(context.Background(), track)
	if err := c.Play(h, 0); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(time.Second)
	for {
		select {
		case e := <-c.Events():
			if e.Type == EventTrackEnded {
				if e.ElapsedMs != 20 {
					t.Fatalf("ended at %d, want 20", e.ElapsedMs)
				}
				return
			}
		case <-deadline:
			t.Fatal("no track-ended event")
		}
	}
}

func TestClockPauseStopsTicks(t *testing.T) {
	c := NewClock(WithTickInterval(5 * time.Millisecond))
	track := &models.Track{ID: 1, DurationMs: 60_000}
	h, _ := c.Load(context.Background(), track)
	if err := c.Play(h, 0); err != nil {
		t.Fatal(err)
	}
	collectEvents(t, c, 1, time.Second)
	if err := c.Pause(); err != nil {
		t.Fatal(err)
	}

	// Drain anything in flight, then expect silence.
	time.Sleep(20 * time.Millisecond)
	for {
		select {
		case <-c.Events():
		default:
			goto drained
		}
	}
drained:
	select {
	case e := <-c.Events():
		t.Fatalf("tick after pause: %+v", e)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestClockPlayFromOffset(t *testing.T) {
	c := NewClock(WithTickInterval(5 * time.Millisecond))
	track := &models.Track{ID: 1, DurationMs: 600_000}
	h, _ := c.Load(context.Background(), track)
	if err := c.Play(h, 42_000); err != nil {
		t.Fatal(err)
	}
	defer c.Stop()

	events := collectEvents(t, c, 1, time.Second)
	if events[0].ElapsedMs < 42_000 {
		t.Fatalf("tick at %d, want >= 42000", events[0].ElapsedMs)
	}
}
