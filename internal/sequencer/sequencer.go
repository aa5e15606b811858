// Package sequencer is the single serialization point for the playback
// session. Every mutation, client commands and the audio backend's synthetic
// ticks alike, is admitted here, assigned a sequence number, and applied to
// the state machine one at a time by a dedicated worker.
package sequencer

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"digitalis/internal/models"
	"digitalis/internal/session"
)

// Catalog is the read-only track lookup the sequencer validates Enqueue
// commands against before admission.
type Catalog interface {
	Resolve(id int64) (*models.Track, error)
}

// Observer receives every applied transition, in version order, on the
// worker goroutine. Observers must not block; hand off to a channel for
// anything slow.
type Observer func(models.Transition)

const (
	DefaultQueueSize = 64
	DefaultRateLimit = 100 // client commands per second
	DefaultRateBurst = 25
)

type Sequencer struct {
	catalog   Catalog
	queueSize int
	limiter   *rate.Limiter
	observers []Observer

	submissions chan submission
	accepting   atomic.Bool

	mu      sync.RWMutex
	state   models.PlaybackState
	version uint64

	startOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

type submission struct {
	cmd   models.Command
	reply chan result
}

type result struct {
	seq uint64
	err error
}

type Option func(*Sequencer)

// WithQueueSize bounds the submission buffer; commands beyond it are
// rejected with models.ErrOverloaded instead of queued.
func WithQueueSize(n int) Option {
	return func(s *Sequencer) { s.queueSize = n }
}

// WithRateLimit caps client command admission. Internal commands (transport
// ticks) are never rate limited.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(s *Sequencer) { s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// WithObserver registers a transition observer. Must be called before Start.
func WithObserver(o Observer) Option {
	return func(s *Sequencer) { s.observers = append(s.observers, o) }
}

func New(catalog Catalog, opts ...Option) *Sequencer {
	s := &Sequencer{
		catalog:   catalog,
		queueSize: DefaultQueueSize,
		limiter:   rate.NewLimiter(DefaultRateLimit, DefaultRateBurst),
		state:     models.NewPlaybackState(),
		done:      make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	s.submissions = make(chan submission, s.queueSize)
	return s
}

func (s *Sequencer) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		ctx, s.cancel = context.WithCancel(ctx)
		s.accepting.Store(true)
		go s.run(ctx)
	})
}

// Stop refuses new submissions, lets the worker drain everything already
// admitted, then returns. PlaybackState is never left mid-transition.
func (s *Sequencer) Stop() {
	if s.cancel != nil {
		s.accepting.Store(false)
		s.cancel()
		<-s.done
	}
}

// Snapshot returns the current state and version.
func (s *Sequencer) Snapshot() models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.Snapshot{Version: s.version, State: s.state.Clone()}
}

// Submit admits one command and blocks until the worker has applied or
// rejected it. The returned sequence number acknowledges admission order.
func (s *Sequencer) Submit(ctx context.Context, cmd models.Command) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if !s.accepting.Load() {
		return 0, models.ErrShuttingDown
	}
	if !cmd.Internal() && !s.limiter.Allow() {
		return 0, models.ErrOverloaded
	}
	if err := s.admit(&cmd); err != nil {
		return 0, err
	}

	sub := submission{cmd: cmd, reply: make(chan result, 1)}
	select {
	case s.submissions <- sub:
	default:
		return 0, models.ErrOverloaded
	}

	select {
	case res := <-sub.reply:
		return res.seq, res.err
	case <-s.done:
		// The drain may still have applied it.
		select {
		case res := <-sub.reply:
			return res.seq, res.err
		default:
			return 0, models.ErrShuttingDown
		}
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// admit validates what the state machine cannot: references into the
// catalog and argument ranges. Rejection here never reaches the worker.
func (s *Sequencer) admit(cmd *models.Command) error {
	// Transport ticks are generated by the audio backend; one arriving from
	// a client would let it corrupt the position the backend owns.
	if !cmd.Internal() && cmd.Type == models.CmdTransportTick {
		return models.Reject("%s is not a client command", cmd.Type)
	}
	switch cmd.Type {
	case models.CmdEnqueue:
		track, err := s.catalog.Resolve(cmd.TrackID)
		if err != nil {
			return models.Reject("unknown track %d", cmd.TrackID)
		}
		cmd.Track = track
	case models.CmdSetVolume:
		if cmd.Volume < session.MinVolume || cmd.Volume > session.MaxVolume {
			return models.Reject("volume %d out of range", cmd.Volume)
		}
	case models.CmdSkip:
		if cmd.Direction != models.SkipForward && cmd.Direction != models.SkipBackward {
			return models.Reject("unknown skip direction %q", cmd.Direction)
		}
	}
	return nil
}

func (s *Sequencer) run(ctx context.Context) {
	defer close(s.done)
	var seq uint64
	for {
		select {
		case sub := <-s.submissions:
			seq++
			s.process(seq, sub)
		case <-ctx.Done():
			// Drain: finish what was admitted before the shutdown.
			for {
				select {
				case sub := <-s.submissions:
					seq++
					s.process(seq, sub)
				default:
					return
				}
			}
		}
	}
}

func (s *Sequencer) process(seq uint64, sub submission) {
	cmd := sub.cmd
	cmd.Seq = seq

	res, err := session.Apply(s.state, cmd)
	if err != nil {
		sub.reply <- result{seq: seq, err: err}
		return
	}
	if res.Changed {
		prev := s.state
		s.mu.Lock()
		s.state = res.State
		s.version++
		version := s.version
		s.mu.Unlock()

		t := models.Transition{
			Seq:     seq,
			Version: version,
			Prev:    prev,
			Next:    res.State,
			Events:  res.Events,
			Command: cmd,
		}
		for _, o := range s.observers {
			o(t)
		}
		if !cmd.Internal() {
			log.Printf("applied %s from %s (seq %d, version %d)", cmd.Type, cmd.ClientID, seq, version)
		}
	}
	sub.reply <- result{seq: seq}
}
