// Package hub fans state transitions out to connected clients. It keeps the
// registry of live connections, computes the field-level diff for every
// applied command, retains a bounded diff backlog so reconnecting clients
// can catch up cheaply, and falls back to full snapshots when they cannot.
package hub

import (
	"log"
	"sync"

	"github.com/google/uuid"

	"digitalis/internal/models"
)

const (
	DefaultBacklog    = 64
	DefaultSendBuffer = 32
)

type Hub struct {
	backlog    int
	sendBuffer int

	mu       sync.Mutex
	clients  map[string]*Client
	history  []models.Diff // ascending, contiguous ToVersions
	snapshot models.Snapshot
	watchers map[chan models.Snapshot]struct{}
}

type Option func(*Hub)

// WithBacklog sets how many diffs are retained for catch-up. A client whose
// acknowledged version lags further than this gets a snapshot instead.
func WithBacklog(n int) Option {
	return func(h *Hub) { h.backlog = n }
}

// WithSendBuffer bounds each client's outbound queue. A client that cannot
// drain it is forcibly disconnected rather than allowed to stall the session.
func WithSendBuffer(n int) Option {
	return func(h *Hub) { h.sendBuffer = n }
}

func New(initial models.Snapshot, opts ...Option) *Hub {
	h := &Hub{
		backlog:    DefaultBacklog,
		sendBuffer: DefaultSendBuffer,
		clients:    make(map[string]*Client),
		snapshot:   initial,
		watchers:   make(map[chan models.Snapshot]struct{}),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Publish ingests one transition from the sequencer. Called synchronously on
// the sequencer worker, so transitions arrive in strict version order.
func (h *Hub) Publish(t models.Transition) {
	d := models.ComputeDiff(t.Prev, t.Next, t.Version-1, t.Version, t.Events)

	h.mu.Lock()
	defer h.mu.Unlock()

	h.snapshot = models.Snapshot{Version: t.Version, State: t.Next.Clone()}
	h.history = append(h.history, d)
	if len(h.history) > h.backlog {
		h.history = h.history[len(h.history)-h.backlog:]
	}

	for _, c := range h.clients {
		if !c.subscribed {
			continue
		}
		// A client whose acknowledged version has fallen further behind
		// than the backlog could ever replay gets one snapshot as a resync
		// point instead of a diff it can no longer chain onto.
		if c.acked > 0 && t.Version-c.acked > uint64(h.backlog) {
			snap := h.snapshot
			h.sendLocked(c, Frame{Type: FrameSnapshot, Snapshot: &snap})
			c.acked = snap.Version
			continue
		}
		h.sendLocked(c, Frame{Type: FrameDiff, Diff: &d})
	}

	for ch := range h.watchers {
		select {
		case ch <- h.snapshot:
		default:
		}
	}
}

// Register admits a new connection. lastAcked is the version the client
// already holds (0 for a fresh client). Catch-up frames, either the missing
// diffs in order or one full snapshot, are queued before any live diff so
// delivery stays in version order.
func (h *Hub) Register(lastAcked uint64, subscribed bool) *Client {
	c := &Client{
		ID:         uuid.NewString(),
		frames:     make(chan Frame, h.sendBuffer),
		acked:      lastAcked,
		subscribed: subscribed,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c

	h.sendLocked(c, Frame{Type: FrameHello, ConnID: c.ID, Version: h.snapshot.Version})
	if !subscribed || lastAcked == h.snapshot.Version {
		return c
	}
	if diffs, ok := h.catchUpLocked(lastAcked); ok {
		for i := range diffs {
			h.sendLocked(c, Frame{Type: FrameDiff, Diff: &diffs[i]})
		}
	} else {
		snap := h.snapshot
		h.sendLocked(c, Frame{Type: FrameSnapshot, Snapshot: &snap})
	}
	return c
}

// catchUpLocked returns the retained diffs from lastAcked to the current
// version, or ok=false when the backlog no longer covers the gap.
func (h *Hub) catchUpLocked(lastAcked uint64) ([]models.Diff, bool) {
	if lastAcked == 0 {
		return nil, false
	}
	for i, d := range h.history {
		if d.FromVersion == lastAcked {
			return h.history[i:], true
		}
	}
	return nil, false
}

func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(id)
}

// SetSubscribed toggles diff delivery for a connection. Takes effect before
// the next Publish: an unsubscribed session never receives another diff.
func (h *Hub) SetSubscribed(id string, subscribed bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		c.subscribed = subscribed
	}
}

// Ack records the latest version a client reports having applied. Publish
// compares it against the backlog to decide when the client is too stale for
// diffs and needs a snapshot resync.
func (h *Hub) Ack(id string, version uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok && version > c.acked {
		c.acked = version
	}
}

// Reject queues a command-rejection frame for the originating client only.
func (h *Hub) Reject(id string, seq uint64, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		h.sendLocked(c, Frame{Type: FrameRejected, Seq: seq, Reason: reason})
	}
}

// Snapshot returns the hub's view of the current state.
func (h *Hub) Snapshot() models.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshot
}

// ClientCount reports the number of live connections.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Watch subscribes to full snapshots after every change, for consumers that
// do not track versions (the SSE endpoint). Delivery is lossy: a slow
// watcher misses intermediate snapshots, never gets stale ones out of order.
func (h *Hub) Watch() chan models.Snapshot {
	ch := make(chan models.Snapshot, 1)
	h.mu.Lock()
	h.watchers[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unwatch(ch chan models.Snapshot) {
	h.mu.Lock()
	_, exists := h.watchers[ch]
	delete(h.watchers, ch)
	h.mu.Unlock()
	if exists {
		close(ch)
	}
}

func (h *Hub) sendLocked(c *Client, f Frame) {
	if c.closed {
		return
	}
	select {
	case c.frames <- f:
	default:
		log.Printf("disconnecting slow client %s (outbound queue full)", c.ID)
		h.dropLocked(c.ID)
	}
}

func (h *Hub) dropLocked(id string) {
	c, ok := h.clients[id]
	if !ok {
		return
	}
	delete(h.clients, id)
	c.closed = true
	close(c.frames)
}
