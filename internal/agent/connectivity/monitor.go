// Package connectivity tracks whether the device can currently reach the
// fieldsync server. Reachability is probed, not assumed: the platform signal
// that started a probe may lie, so callers that hit a real request failure
// report it back and the monitor flips to offline.
package connectivity

import (
	"context"
	"log"
	"sync"
	"time"
)

type Mode string

const (
	Online  Mode = "online"
	Offline Mode = "offline"
)

// Transition is delivered to subscribers exactly once per genuine mode flip.
// Counter increases monotonically; an operation started under an older
// counter must treat its eventual result as stale.
type Transition struct {
	Mode    Mode
	Counter uint64
}

// Prober checks server reachability. A nil error means reachable.
type Prober interface {
	Probe(ctx context.Context) error
}

type ProberFunc func(ctx context.Context) error

func (f ProberFunc) Probe(ctx context.Context) error { return f(ctx) }

type Monitor struct {
	prober   Prober
	interval time.Duration

	mu      sync.Mutex
	mode    Mode
	counter uint64
	subs    []func(Transition)

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewMonitor(prober Prober, interval time.Duration) *Monitor {
	return &Monitor{
		prober:   prober,
		interval: interval,
		mode:     Offline, // pessimistic until the first probe says otherwise
		stopCh:   make(chan struct{}),
	}
}

// Mode returns the current connectivity mode.
func (m *Monitor) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// Counter returns the current transition counter.
func (m *Monitor) Counter() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counter
}

// Snapshot returns mode and counter consistently, for operations that need
// to detect staleness across their own lifetime.
func (m *Monitor) Snapshot() (Mode, uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode, m.counter
}

// Subscribe registers a listener invoked once per genuine transition, in
// registration order, before any automatic work triggered by the transition
// runs. Repeated probe results in the same mode do not re-notify.
func (m *Monitor) Subscribe(fn func(Transition)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

// ReportFailure is the soft-failure path: a caller acted on an "online"
// reading and the real request failed at the transport. The monitor flips to
// offline instead of waiting for the next probe.
func (m *Monitor) ReportFailure() {
	m.setMode(Offline)
}

// Start runs one probe synchronously to establish the initial mode, then
// keeps probing in the background until Stop.
func (m *Monitor) Start(ctx context.Context) {
	m.probeOnce(ctx)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.probeOnce(ctx)
			case <-m.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()
}

func (m *Monitor) probeOnce(ctx context.Context) {
	if err := m.prober.Probe(ctx); err != nil {
		m.setMode(Offline)
		return
	}
	m.setMode(Online)
}

func (m *Monitor) setMode(mode Mode) {
	m.mu.Lock()
	if m.mode == mode {
		m.mu.Unlock()
		return
	}
	m.mode = mode
	m.counter++
	t := Transition{Mode: mode, Counter: m.counter}
	subs := make([]func(Transition), len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	log.Printf("connectivity: %s (transition %d)", mode, t.Counter)
	for _, fn := range subs {
		fn(t)
	}
}
