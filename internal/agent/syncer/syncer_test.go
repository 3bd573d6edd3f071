package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/herdworks/fieldsync/internal/agent/api"
	"github.com/herdworks/fieldsync/internal/agent/connectivity"
	"github.com/herdworks/fieldsync/internal/agent/store"
	"github.com/herdworks/fieldsync/internal/database"
	"github.com/herdworks/fieldsync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMonitor hands out scripted (mode, counter) snapshots in order; the last
// snapshot repeats once the script runs out.
type fakeMonitor struct {
	snapshots []connectivity.Transition
	calls     int
	failures  int
}

func (m *fakeMonitor) Snapshot() (connectivity.Mode, uint64) {
	i := m.calls
	if i >= len(m.snapshots) {
		i = len(m.snapshots) - 1
	}
	m.calls++
	return m.snapshots[i].Mode, m.snapshots[i].Counter
}

func (m *fakeMonitor) ReportFailure() { m.failures++ }

func online(counter uint64) connectivity.Transition {
	return connectivity.Transition{Mode: connectivity.Online, Counter: counter}
}

// fakeSubmitter records submitted batches and replays scripted responses.
type fakeSubmitter struct {
	batches [][]models.QueuedRecord
	respond func(records []models.QueuedRecord) (*models.ReconcileResponse, error)
}

func (s *fakeSubmitter) SubmitBatch(ctx context.Context, records []models.QueuedRecord) (*models.ReconcileResponse, error) {
	s.batches = append(s.batches, records)
	return s.respond(records)
}

func acceptAll(records []models.QueuedRecord) (*models.ReconcileResponse, error) {
	resp := &models.ReconcileResponse{}
	for _, rec := range records {
		resp.AcceptedClientIDs = append(resp.AcceptedClientIDs, rec.ClientID)
	}
	return resp, nil
}

func newTestQueue(t *testing.T) *store.Queue {
	t.Helper()
	db, err := database.NewSQLite(t.TempDir())
	require.NoError(t, err, "Failed to open test database")
	t.Cleanup(func() { db.Close() })
	require.NoError(t, store.Migrate(db))
	return store.NewQueue(db)
}

func enqueueN(t *testing.T, q *store.Queue, n int) []string {
	t.Helper()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		payload, _ := json.Marshal(models.AttendancePayload{
			AnimalID:       uuid.New().String(),
			AttendanceDate: "2024-05-01",
		})
		ids[i] = uuid.New().String()
		require.NoError(t, q.Enqueue(context.Background(), models.QueuedRecord{
			ClientID:   ids[i],
			RecordType: models.RecordAttendance,
			Payload:    payload,
			CapturedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	return ids
}

func TestReconciler_DrainsQueueWhenAccepted(t *testing.T) {
	q := newTestQueue(t)
	ids := enqueueN(t, q, 3)

	submitter := &fakeSubmitter{respond: acceptAll}
	r := NewReconciler(q, submitter, &fakeMonitor{snapshots: []connectivity.Transition{online(1)}})

	result, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Submitted: 3, Accepted: 3}, result)

	// One batch, capture order preserved.
	require.Len(t, submitter.batches, 1)
	require.Len(t, submitter.batches[0], 3)
	assert.Equal(t, ids[0], submitter.batches[0][0].ClientID)

	size, err := q.Size(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, size, "accepted records must be pruned")
}

func TestReconciler_OfflineIsNoOp(t *testing.T) {
	q := newTestQueue(t)
	enqueueN(t, q, 2)

	submitter := &fakeSubmitter{respond: acceptAll}
	r := NewReconciler(q, submitter, &fakeMonitor{snapshots: []connectivity.Transition{
		{Mode: connectivity.Offline, Counter: 2},
	}})

	result, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{}, result)
	assert.Empty(t, submitter.batches, "no batch must be submitted while offline")
}

func TestReconciler_EmptyQueueIsNoOp(t *testing.T) {
	q := newTestQueue(t)
	submitter := &fakeSubmitter{respond: acceptAll}
	r := NewReconciler(q, submitter, &fakeMonitor{snapshots: []connectivity.Transition{online(1)}})

	result, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{}, result)
	assert.Empty(t, submitter.batches)
}

// A transport failure has no confirmed outcome: every record goes back to
// pending and the monitor hears about the failure.
func TestReconciler_TransportFailureLosesNothing(t *testing.T) {
	q := newTestQueue(t)
	enqueueN(t, q, 3)

	monitor := &fakeMonitor{snapshots: []connectivity.Transition{online(1)}}
	submitter := &fakeSubmitter{respond: func([]models.QueuedRecord) (*models.ReconcileResponse, error) {
		return nil, fmt.Errorf("request failed: %w", api.ErrTransient)
	}}
	r := NewReconciler(q, submitter, monitor)

	_, err := r.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrTransient)
	assert.Equal(t, 1, monitor.failures)

	pending, err := q.PeekPending(context.Background())
	require.NoError(t, err)
	assert.Len(t, pending, 3, "all records must be pending again after a transport failure")
}

func TestReconciler_NonTransientFailureDoesNotFlipMonitor(t *testing.T) {
	q := newTestQueue(t)
	enqueueN(t, q, 1)

	monitor := &fakeMonitor{snapshots: []connectivity.Transition{online(1)}}
	submitter := &fakeSubmitter{respond: func([]models.QueuedRecord) (*models.ReconcileResponse, error) {
		return nil, api.ErrUnauthorized
	}}
	r := NewReconciler(q, submitter, monitor)

	_, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, monitor.failures, "auth failures are not connectivity failures")

	pending, err := q.PeekPending(context.Background())
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

// The counter advanced between submit and response: the response belongs to a
// connectivity epoch that is over, so it must be discarded without pruning.
func TestReconciler_StaleRunDiscardsResponse(t *testing.T) {
	q := newTestQueue(t)
	enqueueN(t, q, 2)

	monitor := &fakeMonitor{snapshots: []connectivity.Transition{online(1), online(3)}}
	submitter := &fakeSubmitter{respond: acceptAll}
	r := NewReconciler(q, submitter, monitor)

	_, err := r.Run(context.Background())
	assert.ErrorIs(t, err, ErrStaleRun)

	pending, err := q.PeekPending(context.Background())
	require.NoError(t, err)
	assert.Len(t, pending, 2, "a stale run must not prune the queue")
}

func TestReconciler_MixedResponse(t *testing.T) {
	q := newTestQueue(t)
	ids := enqueueN(t, q, 3)
	ctx := context.Background()

	submitter := &fakeSubmitter{respond: func(records []models.QueuedRecord) (*models.ReconcileResponse, error) {
		// Accept the first, reject the second, leave the third unacknowledged.
		return &models.ReconcileResponse{
			AcceptedClientIDs: []string{ids[0]},
			Rejected: []models.RejectedRecord{
				{ClientID: ids[1], Reason: "unknown animal"},
			},
		}, nil
	}}
	r := NewReconciler(q, submitter, &fakeMonitor{snapshots: []connectivity.Transition{online(1)}})

	result, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Submitted: 3, Accepted: 1, Rejected: 1}, result)

	// Accepted record is gone, rejected is kept with its reason, the
	// unacknowledged one is pending for the next run.
	pending, err := q.PeekPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, ids[2], pending[0].ClientID)

	failed, err := q.PeekFailed(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, ids[1], failed[0].ClientID)
	assert.Equal(t, "unknown animal", failed[0].FailReason)
}

func TestReconciler_SingleFlight(t *testing.T) {
	q := newTestQueue(t)
	enqueueN(t, q, 1)

	started := make(chan struct{})
	release := make(chan struct{})
	submitter := &fakeSubmitter{respond: func(records []models.QueuedRecord) (*models.ReconcileResponse, error) {
		close(started)
		<-release
		return acceptAll(records)
	}}
	r := NewReconciler(q, submitter, &fakeMonitor{snapshots: []connectivity.Transition{online(1)}})

	firstDone := make(chan error, 1)
	go func() {
		_, err := r.Run(context.Background())
		firstDone <- err
	}()

	// Wait until the first run holds the guard, then try to overlap it.
	<-started
	_, err := r.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyInFlight)

	close(release)
	require.NoError(t, <-firstDone)

	// The guard is released; the next run sees an empty queue.
	result, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{}, result)
}

// Full offline round trip: records captured while offline are submitted in
// capture order after reconnect, and a rejected replay leaves siblings alone.
func TestReconciler_OfflineCaptureThenReconnect(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	monitor := &fakeMonitor{snapshots: []connectivity.Transition{
		{Mode: connectivity.Offline, Counter: 2},
		online(3),
		online(3),
	}}
	submitter := &fakeSubmitter{respond: acceptAll}
	r := NewReconciler(q, submitter, monitor)

	ids := enqueueN(t, q, 2)

	// Still offline: nothing moves.
	result, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{}, result)

	// Back online: the whole backlog drains in one run.
	result, err = r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Submitted: 2, Accepted: 2}, result)
	require.Len(t, submitter.batches, 1)
	assert.Equal(t, ids[0], submitter.batches[0][0].ClientID)

	size, err := q.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, size)
}

func TestScheduler_ReconnectTriggersRun(t *testing.T) {
	q := newTestQueue(t)
	enqueueN(t, q, 1)

	monitor := connectivity.NewMonitor(connectivity.ProberFunc(func(ctx context.Context) error {
		return nil
	}), time.Hour)

	submitted := make(chan struct{}, 1)
	submitter := &fakeSubmitter{respond: func(records []models.QueuedRecord) (*models.ReconcileResponse, error) {
		select {
		case submitted <- struct{}{}:
		default:
		}
		return acceptAll(records)
	}}
	r := NewReconciler(q, submitter, monitor)
	s := NewScheduler(r, monitor, 10*time.Millisecond, time.Hour)

	ctx := context.Background()
	s.Start(ctx)
	defer s.Stop()

	// Start flips the monitor online, which schedules a debounced run.
	monitor.Start(ctx)
	defer monitor.Stop()

	select {
	case <-submitted:
	case <-time.After(2 * time.Second):
		t.Fatal("reconnect trigger never ran the reconciler")
	}
}
