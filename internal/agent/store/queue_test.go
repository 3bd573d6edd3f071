package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/herdworks/fieldsync/internal/database"
	"github.com/herdworks/fieldsync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.NewSQLite(t.TempDir())
	require.NoError(t, err, "Failed to open test database")
	t.Cleanup(func() { db.Close() })
	require.NoError(t, Migrate(db))
	return db
}

func testRecord(clientID string, capturedAt time.Time) models.QueuedRecord {
	payload, _ := json.Marshal(models.AttendancePayload{
		AnimalID:       uuid.New().String(),
		AttendanceDate: capturedAt.Format("2006-01-02"),
	})
	return models.QueuedRecord{
		ClientID:   clientID,
		RecordType: models.RecordAttendance,
		Payload:    payload,
		CapturedAt: capturedAt,
	}
}

func TestQueue_EnqueueIdempotent(t *testing.T) {
	q := NewQueue(openTestDB(t))
	ctx := context.Background()

	rec := testRecord(uuid.New().String(), time.Now().UTC())

	require.NoError(t, q.Enqueue(ctx, rec))
	size, err := q.Size(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, size)

	// Second enqueue with the same clientId is a no-op, not a duplicate.
	require.NoError(t, q.Enqueue(ctx, rec))
	size, err = q.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, size, "queue size must be unchanged after the second enqueue")
}

func TestQueue_PeekPendingFIFO(t *testing.T) {
	q := NewQueue(openTestDB(t))
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	// Enqueue out of capture order on purpose.
	second := testRecord("rec-2", base.Add(1*time.Minute))
	first := testRecord("rec-1", base)
	third := testRecord("rec-3", base.Add(2*time.Minute))

	require.NoError(t, q.Enqueue(ctx, second))
	require.NoError(t, q.Enqueue(ctx, third))
	require.NoError(t, q.Enqueue(ctx, first))

	pending, err := q.PeekPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 3)

	assert.Equal(t, "rec-1", pending[0].ClientID)
	assert.Equal(t, "rec-2", pending[1].ClientID)
	assert.Equal(t, "rec-3", pending[2].ClientID)
}

func TestQueue_StateMachine(t *testing.T) {
	q := NewQueue(openTestDB(t))
	ctx := context.Background()

	rec := testRecord(uuid.New().String(), time.Now().UTC())
	require.NoError(t, q.Enqueue(ctx, rec))

	// pending -> in-flight: record leaves the pending view
	require.NoError(t, q.MarkInFlight(ctx, []string{rec.ClientID}))
	pending, err := q.PeekPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// in-flight -> pending on revert: nothing lost
	require.NoError(t, q.Revert(ctx, []string{rec.ClientID}))
	pending, err = q.PeekPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, models.StatusPending, pending[0].SyncStatus)

	// pending -> in-flight -> synced: row is gone
	require.NoError(t, q.MarkInFlight(ctx, []string{rec.ClientID}))
	require.NoError(t, q.MarkSynced(ctx, rec.ClientID))
	size, err := q.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, size)
}

func TestQueue_RevertOnlyTouchesInFlight(t *testing.T) {
	q := NewQueue(openTestDB(t))
	ctx := context.Background()

	inFlight := testRecord("in-flight", time.Now().UTC())
	stillPending := testRecord("still-pending", time.Now().UTC())
	require.NoError(t, q.Enqueue(ctx, inFlight))
	require.NoError(t, q.Enqueue(ctx, stillPending))
	require.NoError(t, q.MarkInFlight(ctx, []string{inFlight.ClientID}))

	// Reverting both ids must not corrupt the already-pending record.
	require.NoError(t, q.Revert(ctx, []string{inFlight.ClientID, stillPending.ClientID}))

	pending, err := q.PeekPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestQueue_FailedKeptForInspection(t *testing.T) {
	q := NewQueue(openTestDB(t))
	ctx := context.Background()

	rec := testRecord(uuid.New().String(), time.Now().UTC())
	require.NoError(t, q.Enqueue(ctx, rec))
	require.NoError(t, q.MarkInFlight(ctx, []string{rec.ClientID}))
	require.NoError(t, q.MarkFailed(ctx, rec.ClientID, "unknown animal"))

	// Rejected records leave the pending view but stay in the queue.
	pending, err := q.PeekPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	failed, err := q.PeekFailed(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "unknown animal", failed[0].FailReason)

	size, err := q.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, size)

	// Operator corrects and requeues.
	require.NoError(t, q.Requeue(ctx, rec.ClientID))
	pending, err = q.PeekPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Empty(t, pending[0].FailReason)

	// Requeue on a non-failed record is an error.
	assert.Error(t, q.Requeue(ctx, rec.ClientID))
}

// Records survive a process restart: reopen the same database file and the
// queue is intact.
func TestQueue_DurableAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	db, err := database.NewSQLite(dir)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	rec := testRecord(uuid.New().String(), time.Now().UTC())
	require.NoError(t, NewQueue(db).Enqueue(ctx, rec))
	require.NoError(t, db.Close())

	db2, err := database.NewSQLite(dir)
	require.NoError(t, err)
	defer db2.Close()
	require.NoError(t, Migrate(db2))

	pending, err := NewQueue(db2).PeekPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, rec.ClientID, pending[0].ClientID)
}
