package models

type EventType string

const (
	EventTrackStarted  EventType = "track_started"
	EventTrackEnded    EventType = "track_ended"
	EventPaused        EventType = "paused"
	EventResumed       EventType = "resumed"
	EventStopped       EventType = "stopped"
	EventSeeked        EventType = "seeked"
	EventQueueChanged  EventType = "queue_changed"
	EventVolumeChanged EventType = "volume_changed"
)

// Event describes an observable side of a state transition. Events let
// consumers that only care about edges (the audio bridge, logging) react
// without diffing full states.
type Event struct {
	Type       EventType `json:"type"`
	TrackID    int64     `json:"track_id,omitempty"`
	EntryID    int64     `json:"entry_id,omitempty"`
	PositionMs int64     `json:"position_ms,omitempty"` // Seeked, Resumed
	Volume     int       `json:"volume,omitempty"`      // VolumeChanged
}

// Transition is one applied command: the states either side of it, the
// events it produced, and the version the new state carries. The sequencer
// publishes exactly one Transition per observable state change, in version
// order.
type Transition struct {
	Seq     uint64
	Version uint64
	Prev    PlaybackState
	Next    PlaybackState
	Events  []Event
	Command Command
}
