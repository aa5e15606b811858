package models

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

// ErrOverloaded is returned when the sequencer cannot admit a command.
// Callers may retry after backing off.
var ErrOverloaded = errors.New("sequencer overloaded")

// ErrShuttingDown is returned for commands submitted during shutdown drain.
var ErrShuttingDown = errors.New("shutting down")

// RejectedError reports a command that was refused without mutating state.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return "command rejected: " + e.Reason
}

// Reject builds a RejectedError with a formatted reason.
func Reject(format string, args ...any) error {
	return &RejectedError{Reason: fmt.Sprintf(format, args...)}
}

// IsRejected reports whether err is a command rejection and returns its reason.
func IsRejected(err error) (string, bool) {
	var re *RejectedError
	if errors.As(err, &re) {
		return re.Reason, true
	}
	return "", false
}

// Track is a catalog entry. Immutable once indexed; the catalog store is
// the sole owner, everything else references tracks by ID.
type Track struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album"`
	DurationMs int64  `json:"duration_ms"` // 0 when unknown
	Path       string `json:"path"`        // relative to the music root
}

type Status string

const (
	StatusStopped Status = "stopped"
	StatusPlaying Status = "playing"
	StatusPaused  Status = "paused"
)

// NoCurrent marks a PlaybackState with no current queue entry.
const NoCurrent = -1

// QueueEntry references a catalog track from the session queue. Title and
// duration are resolved from the catalog at admission so the session state
// machine never performs lookups of its own.
type QueueEntry struct {
	EntryID    int64  `json:"entry_id"`
	TrackID    int64  `json:"track_id"`
	Title      string `json:"title"`
	DurationMs int64  `json:"duration_ms"`
}

// PlaybackState is the session's single source of truth. Exactly one exists
// per server process; it is mutated only by the session state machine under
// the sequencer's serialization.
type PlaybackState struct {
	Status       Status       `json:"status"`
	Queue        []QueueEntry `json:"queue"`
	CurrentIndex int          `json:"current_index"` // NoCurrent when stopped
	ElapsedMs    int64        `json:"elapsed_ms"`
	Volume       int          `json:"volume"` // 0..100
}

// NewPlaybackState returns the boot state: stopped, empty queue, full volume.
func NewPlaybackState() PlaybackState {
	return PlaybackState{
		Status:       StatusStopped,
		Queue:        []QueueEntry{},
		CurrentIndex: NoCurrent,
		Volume:       100,
	}
}

// Current returns the current queue entry, or nil if there is none.
func (s *PlaybackState) Current() *QueueEntry {
	if s.CurrentIndex == NoCurrent || s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Queue) {
		return nil
	}
	return &s.Queue[s.CurrentIndex]
}

// Clone returns a deep copy; the queue slice is never shared.
func (s PlaybackState) Clone() PlaybackState {
	out := s
	out.Queue = make([]QueueEntry, len(s.Queue))
	copy(out.Queue, s.Queue)
	return out
}

// Equal reports whether two states are observably identical.
func (s PlaybackState) Equal(other PlaybackState) bool {
	if s.Status != other.Status || s.CurrentIndex != other.CurrentIndex ||
		s.ElapsedMs != other.ElapsedMs || s.Volume != other.Volume ||
		len(s.Queue) != len(other.Queue) {
		return false
	}
	for i := range s.Queue {
		if s.Queue[i] != other.Queue[i] {
			return false
		}
	}
	return true
}
