package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"digitalis/internal/catalog"
)

const DefaultScanTimeout = 5 * time.Minute

// Scheduler reruns the library scan: once at startup, then daily at 3 AM,
// plus whenever a manual rescan is requested over the API.
type Scheduler struct {
	scanner     *catalog.Scanner
	scanTimeout time.Duration
	trigger     chan chan error

	startOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

type Option func(*Scheduler)

func WithScanTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		s.scanTimeout = d
	}
}

func New(scanner *catalog.Scanner, opts ...Option) *Scheduler {
	sch := &Scheduler{
		scanner:     scanner,
		scanTimeout: DefaultScanTimeout,
		trigger:     make(chan chan error, 1),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(sch)
	}
	return sch
}

// Start runs the scheduler: immediate scan on startup, then daily at 3 AM local time.
func (sch *Scheduler) Start(ctx context.Context) {
	sch.startOnce.Do(func() {
		ctx, sch.cancel = context.WithCancel(ctx)
		go sch.run(ctx)
	})
}

func (sch *Scheduler) Stop() {
	if sch.cancel != nil {
		sch.cancel()
		<-sch.done
	}
}

// TriggerScan requests an immediate rescan and waits for it to finish.
func (sch *Scheduler) TriggerScan(ctx context.Context) error {
	reply := make(chan error, 1)
	select {
	case sch.trigger <- reply:
	case <-ctx.Done():
		return ctx.Err()
	case <-sch.done:
		return context.Canceled
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-sch.done:
		return context.Canceled
	}
}

func (sch *Scheduler) run(ctx context.Context) {
	defer close(sch.done)

	if err := sch.scan(ctx); err != nil {
		log.Printf("scheduler: initial scan failed: %v", err)
	}

	ticker := time.NewTicker(durationUntil3AM(time.Now()))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case reply := <-sch.trigger:
			reply <- sch.scan(ctx)
		case <-ticker.C:
			if err := sch.scan(ctx); err != nil {
				log.Printf("scheduler: nightly scan failed: %v", err)
			}
			// Recalculate to handle DST transitions
			ticker.Reset(durationUntil3AM(time.Now()))
		}
	}
}

func (sch *Scheduler) scan(ctx context.Context) error {
	scanCtx, cancel := context.WithTimeout(ctx, sch.scanTimeout)
	defer cancel()

	start := time.Now()
	stats, err := sch.scanner.Scan(scanCtx)
	if err != nil {
		return err
	}
	log.Printf("scheduler: scan completed - %d indexed, %d pruned (took %v)",
		stats.Indexed, stats.Pruned, time.Since(start).Round(time.Millisecond))
	return nil
}

// durationUntil3AM uses local time so the job runs at 3 AM in the server's timezone.
func durationUntil3AM(now time.Time) time.Duration {
	next3AM := time.Date(now.Year(), now.Month(), now.Day(), 3, 0, 0, 0, now.Location())

	if !now.Before(next3AM) {
		next3AM = next3AM.Add(24 * time.Hour)
	}

	return next3AM.Sub(now)
}
