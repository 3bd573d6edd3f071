package connectivity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProber returns the next scripted result on every probe.
type scriptedProber struct {
	mu      sync.Mutex
	results []error
}

func (p *scriptedProber) Probe(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.results) == 0 {
		return nil
	}
	err := p.results[0]
	p.results = p.results[1:]
	return err
}

var errUnreachable = errors.New("unreachable")

func TestMonitor_GenuineTransitionsOnly(t *testing.T) {
	m := NewMonitor(&scriptedProber{}, time.Hour)

	var got []Transition
	m.Subscribe(func(tr Transition) { got = append(got, tr) })

	ctx := context.Background()

	// offline -> online: one notification
	m.probeOnce(ctx)
	require.Len(t, got, 1)
	assert.Equal(t, Online, got[0].Mode)
	assert.Equal(t, uint64(1), got[0].Counter)

	// repeated online probes must not re-notify
	m.probeOnce(ctx)
	m.probeOnce(ctx)
	assert.Len(t, got, 1)
	assert.Equal(t, Online, m.Mode())
}

func TestMonitor_CounterAdvancesPerFlip(t *testing.T) {
	p := &scriptedProber{results: []error{nil, errUnreachable, nil}}
	m := NewMonitor(p, time.Hour)

	var counters []uint64
	m.Subscribe(func(tr Transition) { counters = append(counters, tr.Counter) })

	ctx := context.Background()
	m.probeOnce(ctx) // online
	m.probeOnce(ctx) // offline
	m.probeOnce(ctx) // online again

	assert.Equal(t, []uint64{1, 2, 3}, counters)
	assert.Equal(t, uint64(3), m.Counter())
}

// A false "online" reading that fails on the first real request reverts to
// offline via ReportFailure, not a fatal error.
func TestMonitor_ReportFailure(t *testing.T) {
	m := NewMonitor(&scriptedProber{}, time.Hour)
	m.probeOnce(context.Background())
	require.Equal(t, Online, m.Mode())

	m.ReportFailure()

	assert.Equal(t, Offline, m.Mode())
	assert.Equal(t, uint64(2), m.Counter())

	// Already offline: reporting again is a no-op.
	m.ReportFailure()
	assert.Equal(t, uint64(2), m.Counter())
}

func TestMonitor_ListenersNotifiedInOrder(t *testing.T) {
	m := NewMonitor(&scriptedProber{}, time.Hour)

	var order []string
	m.Subscribe(func(Transition) { order = append(order, "first") })
	m.Subscribe(func(Transition) { order = append(order, "second") })

	m.probeOnce(context.Background())

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestMonitor_StartStop(t *testing.T) {
	p := &scriptedProber{}
	m := NewMonitor(p, 10*time.Millisecond)

	ctx := context.Background()
	m.Start(ctx)
	assert.Equal(t, Online, m.Mode(), "initial probe runs synchronously")

	m.Stop()
	// Stop is idempotent
	m.Stop()
}
