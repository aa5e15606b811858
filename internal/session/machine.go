// Package session implements the playback state machine. Apply is a pure
// function from (state, command) to (state, events): it never blocks, never
// reads the clock, and never touches anything outside its arguments. All
// serialization and validation against external systems happens in the
// sequencer before a command gets here.
package session

import (
	"digitalis/internal/models"
)

const (
	MinVolume = 0
	MaxVolume = 100
)

// Result is the outcome of applying one command. Changed is false for
// idempotent no-ops (Pause while already paused, a tick while not playing);
// the sequencer only bumps the state version when Changed is true.
type Result struct {
	State   models.PlaybackState
	Events  []models.Event
	Changed bool
}

// Apply runs one command against the state. On rejection the returned error
// is a *models.RejectedError and the input state is returned unchanged.
func Apply(st models.PlaybackState, cmd models.Command) (Result, error) {
	switch cmd.Type {
	case models.CmdPlay:
		return applyPlay(st)
	case models.CmdPause:
		return applyPause(st)
	case models.CmdStop:
		return applyStop(st)
	case models.CmdSeek:
		return applySeek(st, cmd.PositionMs)
	case models.CmdSetVolume:
		return applySetVolume(st, cmd.Volume)
	case models.CmdEnqueue:
		return applyEnqueue(st, cmd)
	case models.CmdRemove:
		return applyRemove(st, cmd.Index)
	case models.CmdReorder:
		return applyReorder(st, cmd.From, cmd.To)
	case models.CmdSkip:
		return applySkip(st, cmd.Direction)
	case models.CmdTransportTick:
		return applyTick(st, cmd.PositionMs)
	default:
		return unchanged(st), models.Reject("unknown command %q", cmd.Type)
	}
}

func unchanged(st models.PlaybackState) Result {
	return Result{State: st}
}

func changed(st models.PlaybackState, events ...models.Event) Result {
	return Result{State: st, Events: events, Changed: true}
}

func trackEvent(t models.EventType, e models.QueueEntry) models.Event {
	return models.Event{Type: t, TrackID: e.TrackID, EntryID: e.EntryID}
}

func applyPlay(st models.PlaybackState) (Result, error) {
	switch st.Status {
	case models.StatusPlaying:
		return unchanged(st), nil
	case models.StatusPaused:
		next := st.Clone()
		next.Status = models.StatusPlaying
		cur := next.Current()
		return changed(next, models.Event{
			Type: models.EventResumed, TrackID: cur.TrackID, EntryID: cur.EntryID, PositionMs: next.ElapsedMs,
		}), nil
	default:
		if len(st.Queue) == 0 {
			return unchanged(st), models.Reject("empty queue")
		}
		next := st.Clone()
		next.Status = models.StatusPlaying
		next.CurrentIndex = 0
		next.ElapsedMs = 0
		return changed(next, trackEvent(models.EventTrackStarted, next.Queue[0])), nil
	}
}

func applyPause(st models.PlaybackState) (Result, error) {
	if st.Status != models.StatusPlaying {
		// Duplicate pauses from racing clients are no-ops, not errors.
		return unchanged(st), nil
	}
	next := st.Clone()
	next.Status = models.StatusPaused
	cur := next.Current()
	return changed(next, trackEvent(models.EventPaused, *cur)), nil
}

func applyStop(st models.PlaybackState) (Result, error) {
	if st.Status == models.StatusStopped && st.CurrentIndex == models.NoCurrent {
		return unchanged(st), nil
	}
	next := st.Clone()
	next.Status = models.StatusStopped
	next.CurrentIndex = models.NoCurrent
	next.ElapsedMs = 0
	return changed(next, models.Event{Type: models.EventStopped}), nil
}

func applySeek(st models.PlaybackState, posMs int64) (Result, error) {
	cur := st.Current()
	if cur == nil {
		return unchanged(st), models.Reject("no current track")
	}
	if posMs < 0 {
		posMs = 0
	}
	// Seeking at or past the end of a track with known duration is an
	// end-of-track advance; elapsed never exceeds duration.
	if cur.DurationMs > 0 && posMs >= cur.DurationMs {
		return advance(st), nil
	}
	if posMs == st.ElapsedMs {
		return unchanged(st), nil
	}
	next := st.Clone()
	next.ElapsedMs = posMs
	return changed(next, models.Event{
		Type: models.EventSeeked, TrackID: cur.TrackID, EntryID: cur.EntryID, PositionMs: posMs,
	}), nil
}

func applySetVolume(st models.PlaybackState, volume int) (Result, error) {
	if volume < MinVolume {
		volume = MinVolume
	}
	if volume > MaxVolume {
		volume = MaxVolume
	}
	if volume == st.Volume {
		return unchanged(st), nil
	}
	next := st.Clone()
	next.Volume = volume
	return changed(next, models.Event{Type: models.EventVolumeChanged, Volume: volume}), nil
}

func applyEnqueue(st models.PlaybackState, cmd models.Command) (Result, error) {
	if cmd.Track == nil {
		return unchanged(st), models.Reject("unknown track %d", cmd.TrackID)
	}
	at := len(st.Queue)
	if cmd.At != nil {
		at = *cmd.At
		if at < 0 || at > len(st.Queue) {
			return unchanged(st), models.Reject("invalid insertion point %d", at)
		}
	}
	next := st.Clone()
	entry := models.QueueEntry{
		EntryID:    nextEntryID(next.Queue),
		TrackID:    cmd.Track.ID,
		Title:      cmd.Track.Title,
		DurationMs: cmd.Track.DurationMs,
	}
	next.Queue = append(next.Queue, models.QueueEntry{})
	copy(next.Queue[at+1:], next.Queue[at:])
	next.Queue[at] = entry
	if next.CurrentIndex != models.NoCurrent && at <= next.CurrentIndex {
		next.CurrentIndex++
	}
	return changed(next, models.Event{Type: models.EventQueueChanged}), nil
}

func applyRemove(st models.PlaybackState, index int) (Result, error) {
	if index < 0 || index >= len(st.Queue) {
		return unchanged(st), models.Reject("invalid queue index %d", index)
	}
	next := st.Clone()
	removed := next.Queue[index]
	next.Queue = append(next.Queue[:index], next.Queue[index+1:]...)

	events := []models.Event{{Type: models.EventQueueChanged}}
	switch {
	case next.CurrentIndex == models.NoCurrent:
	case index < next.CurrentIndex:
		next.CurrentIndex--
	case index == next.CurrentIndex:
		// The current entry went away: retarget to the next surviving entry
		// at position zero, or stop if it was the last one.
		events = append(events, trackEvent(models.EventTrackEnded, removed))
		if next.CurrentIndex < len(next.Queue) {
			next.ElapsedMs = 0
			events = append(events, trackEvent(models.EventTrackStarted, next.Queue[next.CurrentIndex]))
		} else {
			next.Status = models.StatusStopped
			next.CurrentIndex = models.NoCurrent
			next.ElapsedMs = 0
			events = append(events, models.Event{Type: models.EventStopped})
		}
	}
	return changed(next, events...), nil
}

func applyReorder(st models.PlaybackState, from, to int) (Result, error) {
	if from < 0 || from >= len(st.Queue) || to < 0 || to >= len(st.Queue) {
		return unchanged(st), models.Reject("invalid queue index")
	}
	if from == to {
		return unchanged(st), nil
	}
	next := st.Clone()
	var currentEntry int64
	if cur := next.Current(); cur != nil {
		currentEntry = cur.EntryID
	}
	entry := next.Queue[from]
	next.Queue = append(next.Queue[:from], next.Queue[from+1:]...)
	next.Queue = append(next.Queue, models.QueueEntry{})
	copy(next.Queue[to+1:], next.Queue[to:])
	next.Queue[to] = entry
	// The current pointer follows its entry wherever it moved.
	if currentEntry != 0 {
		for i := range next.Queue {
			if next.Queue[i].EntryID == currentEntry {
				next.CurrentIndex = i
				break
			}
		}
	}
	return changed(next, models.Event{Type: models.EventQueueChanged}), nil
}

func applySkip(st models.PlaybackState, dir models.SkipDirection) (Result, error) {
	cur := st.Current()
	if cur == nil {
		return unchanged(st), models.Reject("no current track")
	}
	switch dir {
	case models.SkipForward:
		return advance(st), nil
	case models.SkipBackward:
		if st.CurrentIndex == 0 {
			// Clamped at the first entry: restart it.
			if st.ElapsedMs == 0 {
				return unchanged(st), nil
			}
			next := st.Clone()
			next.ElapsedMs = 0
			return changed(next), nil
		}
		next := st.Clone()
		next.CurrentIndex--
		next.ElapsedMs = 0
		return changed(next,
			trackEvent(models.EventTrackEnded, *cur),
			trackEvent(models.EventTrackStarted, next.Queue[next.CurrentIndex]),
		), nil
	default:
		return unchanged(st), models.Reject("unknown skip direction %q", dir)
	}
}

func applyTick(st models.PlaybackState, elapsedMs int64) (Result, error) {
	if st.Status != models.StatusPlaying {
		// Ticks race with pause/stop; a late tick is not an error.
		return unchanged(st), nil
	}
	cur := st.Current()
	if cur == nil {
		return unchanged(st), nil
	}
	if elapsedMs < 0 {
		elapsedMs = 0
	}
	if cur.DurationMs > 0 && elapsedMs >= cur.DurationMs {
		return advance(st), nil
	}
	if elapsedMs == st.ElapsedMs {
		return unchanged(st), nil
	}
	next := st.Clone()
	next.ElapsedMs = elapsedMs
	return changed(next), nil
}

// advance ends the current track and moves to the next queue entry, or stops
// when the queue is exhausted. Used by skip-forward, end-of-track ticks, and
// seeks past the end.
func advance(st models.PlaybackState) Result {
	cur := *st.Current()
	next := st.Clone()
	if next.CurrentIndex+1 < len(next.Queue) {
		next.CurrentIndex++
		next.ElapsedMs = 0
		return changed(next,
			trackEvent(models.EventTrackEnded, cur),
			trackEvent(models.EventTrackStarted, next.Queue[next.CurrentIndex]),
		)
	}
	next.Status = models.StatusStopped
	next.CurrentIndex = models.NoCurrent
	next.ElapsedMs = 0
	return changed(next,
		trackEvent(models.EventTrackEnded, cur),
		models.Event{Type: models.EventStopped},
	)
}

func nextEntryID(queue []models.QueueEntry) int64 {
	var max int64
	for _, e := range queue {
		if e.EntryID > max {
			max = e.EntryID
		}
	}
	return max + 1
}
