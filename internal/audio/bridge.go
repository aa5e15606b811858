package audio

import (
	"context"
	"log"
	"sync"

	"digitalis/internal/models"
)

// Submitter admits commands into the sequencer. Satisfied by
// *sequencer.Sequencer.
type Submitter interface {
	Submit(ctx context.Context, cmd models.Command) (uint64, error)
}

// Catalog resolves track IDs for loading.
type Catalog interface {
	Resolve(id int64) (*models.Track, error)
}

// Bridge connects the session to a backend in both directions: session
// events drive Load/Play/Pause/Stop, and backend progress comes back as
// synthetic commands through the sequencer like any client command would.
// This keeps the single-serialization invariant; the backend never gets a
// private path into PlaybackState.
type Bridge struct {
	backend     Backend
	catalog     Catalog
	submit      Submitter
	transitions chan models.Transition

	startOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewBridge(backend Backend, catalog Catalog, submit Submitter) *Bridge {
	return &Bridge{
		backend:     backend,
		catalog:     catalog,
		submit:      submit,
		transitions: make(chan models.Transition, 128),
		done:        make(chan struct{}),
	}
}

// OnTransition is registered as a sequencer observer. It must not block the
// worker: if the bridge is this far behind, the transition is dropped and
// playback resyncs on the next one.
func (b *Bridge) OnTransition(t models.Transition) {
	select {
	case b.transitions <- t:
	default:
		log.Printf("audio bridge backlogged, dropping transition %d", t.Version)
	}
}

func (b *Bridge) Start(ctx context.Context) {
	b.startOnce.Do(func() {
		ctx, b.cancel = context.WithCancel(ctx)
		go b.run(ctx)
	})
}

func (b *Bridge) Stop() {
	if b.cancel != nil {
		b.cancel()
		<-b.done
	}
}

func (b *Bridge) run(ctx context.Context) {
	defer close(b.done)

	var handle *Handle
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-b.transitions:
			handle = b.applyTransition(ctx, handle, t)
		case ev, ok := <-b.backend.Events():
			if !ok {
				return
			}
			b.forwardEvent(ctx, ev)
		}
	}
}

func (b *Bridge) applyTransition(ctx context.Context, handle *Handle, t models.Transition) *Handle {
	for _, e := range t.Events {
		switch e.Type {
		case models.EventTrackStarted:
			track, err := b.catalog.Resolve(e.TrackID)
			if err != nil {
				log.Printf("audio bridge: resolving track %d: %v", e.TrackID, err)
				continue
			}
			h, err := b.backend.Load(ctx, track)
			if err != nil {
				log.Printf("audio bridge: loading track %d: %v", e.TrackID, err)
				continue
			}
			handle = h
			// A skip while paused changes the current track without starting
			// transport; the handle stays loaded for a later resume.
			if t.Next.Status != models.StatusPlaying {
				continue
			}
			if err := b.backend.Play(handle, 0); err != nil {
				log.Printf("audio bridge: play: %v", err)
			}
		case models.EventResumed:
			if handle == nil {
				continue
			}
			if err := b.backend.Play(handle, e.PositionMs); err != nil {
				log.Printf("audio bridge: resume: %v", err)
			}
		case models.EventSeeked:
			if handle == nil || t.Next.Status != models.StatusPlaying {
				continue
			}
			if err := b.backend.Play(handle, e.PositionMs); err != nil {
				log.Printf("audio bridge: seek: %v", err)
			}
		case models.EventPaused:
			if err := b.backend.Pause(); err != nil {
				log.Printf("audio bridge: pause: %v", err)
			}
		case models.EventStopped:
			if err := b.backend.Stop(); err != nil {
				log.Printf("audio bridge: stop: %v", err)
			}
			handle = nil
		}
	}
	return handle
}

// forwardEvent turns backend progress into commands: positionTick becomes
// TransportTick, trackEnded becomes an implicit skip-forward.
func (b *Bridge) forwardEvent(ctx context.Context, ev Event) {
	var cmd models.Command
	switch ev.Type {
	case EventPositionTick:
		cmd = models.Command{Type: models.CmdTransportTick, PositionMs: ev.ElapsedMs}
	case EventTrackEnded:
		cmd = models.Command{Type: models.CmdSkip, Direction: models.SkipForward}
	default:
		return
	}
	if _, err := b.submit.Submit(ctx, cmd); err != nil {
		if _, rejected := models.IsRejected(err); rejected {
			// A tick racing a stop loses; nothing to do.
			return
		}
		log.Printf("audio bridge: submitting %s: %v", cmd.Type, err)
	}
}
