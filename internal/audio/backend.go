// Package audio defines the narrow interface the session consumes from an
// audio output, and the bridge that keeps the two in sync. The backend never
// mutates playback state; everything it observes comes back into the
// sequencer as synthetic commands.
package audio

import (
	"context"

	"digitalis/internal/models"
)

type EventType string

const (
	EventPositionTick EventType = "position_tick"
	EventTrackEnded   EventType = "track_ended"
)

// Event is emitted by a backend while a handle is playing.
type Event struct {
	Type      EventType
	ElapsedMs int64
}

// Handle is a loaded track ready for playback.
type Handle struct {
	Track *models.Track
}

// Backend is the playback device. Implementations decode and emit audio (or
// simulate it); they report progress through Events and otherwise only obey
// commands.
type Backend interface {
	Load(ctx context.Context, track *models.Track) (*Handle, error)
	Play(h *Handle, fromMs int64) error
	Pause() error
	Stop() error
	Events() <-chan Event
}
