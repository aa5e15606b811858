package hub

import "digitalis/internal/models"

// Frame types pushed to clients over the sync connection.
const (
	FrameHello    = "hello"
	FrameSnapshot = "snapshot"
	FrameDiff     = "diff"
	FrameRejected = "rejected"
)

// Frame is one outbound sync message. Exactly one of the payload fields is
// set, according to Type.
type Frame struct {
	Type string `json:"type"`

	ConnID  string `json:"conn_id,omitempty"` // hello
	Version uint64 `json:"version,omitempty"` // hello

	Snapshot *models.Snapshot `json:"snapshot,omitempty"`
	Diff     *models.Diff     `json:"diff,omitempty"`

	Seq    uint64 `json:"seq,omitempty"`    // rejected
	Reason string `json:"reason,omitempty"` // rejected
}

// Client is one live connection's delivery queue. The hub is the only
// writer; the connection handler is the only reader. The channel closes when
// the hub drops the client, whether on Unregister or for falling behind.
type Client struct {
	ID string

	frames     chan Frame
	acked      uint64 // guarded by the hub mutex
	subscribed bool   // guarded by the hub mutex
	closed     bool   // guarded by the hub mutex
}

// Frames is the ordered stream of outbound messages for this connection.
func (c *Client) Frames() <-chan Frame {
	return c.frames
}
