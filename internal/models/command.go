package models

type CommandType string

const (
	CmdPlay          CommandType = "play"
	CmdPause         CommandType = "pause"
	CmdStop          CommandType = "stop"
	CmdSeek          CommandType = "seek"
	CmdSetVolume     CommandType = "set_volume"
	CmdEnqueue       CommandType = "enqueue"
	CmdRemove        CommandType = "remove"
	CmdReorder       CommandType = "reorder"
	CmdSkip          CommandType = "skip"
	CmdTransportTick CommandType = "transport_tick"
)

type SkipDirection string

const (
	SkipForward  SkipDirection = "forward"
	SkipBackward SkipDirection = "backward"
)

// Command is the tagged variant all state mutations travel as. Clients and
// the audio bridge both submit Commands; nothing mutates PlaybackState
// directly.
type Command struct {
	Type CommandType `json:"type"`

	PositionMs int64         `json:"position_ms,omitempty"` // Seek, TransportTick
	Volume     int           `json:"volume,omitempty"`      // SetVolume
	TrackID    int64         `json:"track_id,omitempty"`    // Enqueue
	At         *int          `json:"at,omitempty"`          // Enqueue insertion point; nil appends
	Index      int           `json:"index,omitempty"`       // Remove
	From       int           `json:"from,omitempty"`        // Reorder
	To         int           `json:"to,omitempty"`          // Reorder
	Direction  SkipDirection `json:"direction,omitempty"`   // Skip

	// Track is resolved from the catalog at admission for Enqueue commands.
	Track *Track `json:"-"`

	// ClientID identifies the submitting connection; empty for commands the
	// server generates internally (transport ticks, end-of-track skips).
	ClientID string `json:"-"`

	// Seq is assigned by the sequencer at admission.
	Seq uint64 `json:"-"`
}

// Internal reports whether the command was generated by the server itself.
func (c Command) Internal() bool {
	return c.ClientID == ""
}
