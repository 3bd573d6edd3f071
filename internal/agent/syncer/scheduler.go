package syncer

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/herdworks/fieldsync/internal/agent/connectivity"
)

// Scheduler wires the reconciler to its two triggers: a connectivity
// transition to online (debounced, so a flaky reconnect doesn't race) and a
// recurring timer that catches records queued by a mid-session write failure
// rather than a full offline period. Overlapping triggers collapse into the
// reconciler's single-flight guard.
type Scheduler struct {
	reconciler *Reconciler
	monitor    *connectivity.Monitor
	debounce   time.Duration
	interval   time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewScheduler(reconciler *Reconciler, monitor *connectivity.Monitor, debounce, interval time.Duration) *Scheduler {
	return &Scheduler{
		reconciler: reconciler,
		monitor:    monitor,
		debounce:   debounce,
		interval:   interval,
		stopCh:     make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	// The monitor notifies all listeners before this trigger acts: the
	// debounce timer starts at notification time, the run starts after it.
	s.monitor.Subscribe(func(t connectivity.Transition) {
		if t.Mode != connectivity.Online {
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			select {
			case <-time.After(s.debounce):
				s.run(ctx, "reconnect")
			case <-s.stopCh:
			case <-ctx.Done():
			}
		}()
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if s.monitor.Mode() != connectivity.Online {
					continue
				}
				s.run(ctx, "interval")
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context, trigger string) {
	result, err := s.reconciler.Run(ctx)
	switch {
	case errors.Is(err, ErrAlreadyInFlight):
		// collapsed into the running reconciliation
	case errors.Is(err, ErrStaleRun):
		log.Printf("syncer: %s-triggered run went stale, batch kept pending", trigger)
	case err != nil:
		log.Printf("syncer: %s-triggered run failed: %v", trigger, err)
	case result.Submitted > 0:
		log.Printf("syncer: %s-triggered run synced %d/%d records (%d rejected)",
			trigger, result.Accepted, result.Submitted, result.Rejected)
	}
}
