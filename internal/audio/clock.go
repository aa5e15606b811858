package audio

import (
	"context"
	"sync"
	"time"

	"digitalis/internal/models"
)

const DefaultTickInterval = time.Second

// Clock is a backend that simulates transport with a wall-clock ticker: it
// produces position ticks while "playing" and a track-ended event when the
// track's known duration elapses. It moves no audio; decoding and output
// belong to a real backend behind the same interface.
type Clock struct {
	interval time.Duration
	events   chan Event

	mu     sync.Mutex
	cancel context.CancelFunc
}

type ClockOption func(*Clock)

func WithTickInterval(d time.Duration) ClockOption {
	return func(c *Clock) { c.interval = d }
}

func NewClock(opts ...ClockOption) *Clock {
	c := &Clock{
		interval: DefaultTickInterval,
		events:   make(chan Event, 16),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Clock) Load(ctx context.Context, track *models.Track) (*Handle, error) {
	return &Handle{Track: track}, nil
}

func (c *Clock) Play(h *Handle, fromMs int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.tickLoop(ctx, h, fromMs)
	return nil
}

func (c *Clock) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	return nil
}

func (c *Clock) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	return nil
}

func (c *Clock) Events() <-chan Event {
	return c.events
}

func (c *Clock) stopLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Clock) tickLoop(ctx context.Context, h *Handle, fromMs int64) {
	start := time.Now()
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			elapsed := fromMs + time.Since(start).Milliseconds()
			if d := h.Track.DurationMs; d > 0 && elapsed >= d {
				c.emit(ctx, Event{Type: EventTrackEnded, ElapsedMs: d})
				return
			}
			c.emit(ctx, Event{Type: EventPositionTick, ElapsedMs: elapsed})
		}
	}
}

func (c *Clock) emit(ctx context.Context, e Event) {
	select {
	case c.events <- e:
	case <-ctx.Done():
	}
}
