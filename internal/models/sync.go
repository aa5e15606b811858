package models

import "fmt"

// Snapshot is a complete copy of the session state tagged with its version.
// New or stale clients are brought up to date with one of these instead of a
// chain of diffs.
type Snapshot struct {
	Version uint64        `json:"version"`
	State   PlaybackState `json:"state"`
}

// Diff describes which top-level fields of PlaybackState changed between two
// consecutive versions. Nil fields are unchanged. A client holding the state
// at FromVersion reconstructs the state at ToVersion by applying the diff.
type Diff struct {
	FromVersion uint64 `json:"from_version"`
	ToVersion   uint64 `json:"to_version"`

	Status       *Status       `json:"status,omitempty"`
	Queue        *[]QueueEntry `json:"queue,omitempty"`
	CurrentIndex *int          `json:"current_index,omitempty"`
	ElapsedMs    *int64        `json:"elapsed_ms,omitempty"`
	Volume       *int          `json:"volume,omitempty"`

	Events []Event `json:"events,omitempty"`
}

// ComputeDiff builds the minimal field-level diff between two states.
func ComputeDiff(prev, next PlaybackState, fromVersion, toVersion uint64, events []Event) Diff {
	d := Diff{FromVersion: fromVersion, ToVersion: toVersion, Events: events}
	if prev.Status != next.Status {
		st := next.Status
		d.Status = &st
	}
	if !queuesEqual(prev.Queue, next.Queue) {
		q := make([]QueueEntry, len(next.Queue))
		copy(q, next.Queue)
		d.Queue = &q
	}
	if prev.CurrentIndex != next.CurrentIndex {
		idx := next.CurrentIndex
		d.CurrentIndex = &idx
	}
	if prev.ElapsedMs != next.ElapsedMs {
		e := next.ElapsedMs
		d.ElapsedMs = &e
	}
	if prev.Volume != next.Volume {
		v := next.Volume
		d.Volume = &v
	}
	return d
}

// Apply folds a diff into the snapshot. The diff must continue exactly where
// the snapshot left off; anything else means the client missed an update and
// needs a fresh snapshot.
func (s *Snapshot) Apply(d Diff) error {
	if d.FromVersion != s.Version {
		return fmt.Errorf("diff starts at version %d, snapshot is at %d", d.FromVersion, s.Version)
	}
	if d.Status != nil {
		s.State.Status = *d.Status
	}
	if d.Queue != nil {
		q := make([]QueueEntry, len(*d.Queue))
		copy(q, *d.Queue)
		s.State.Queue = q
	}
	if d.CurrentIndex != nil {
		s.State.CurrentIndex = *d.CurrentIndex
	}
	if d.ElapsedMs != nil {
		s.State.ElapsedMs = *d.ElapsedMs
	}
	if d.Volume != nil {
		s.State.Volume = *d.Volume
	}
	s.Version = d.ToVersion
	return nil
}

func queuesEqual(a, b []QueueEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
