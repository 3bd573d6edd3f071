package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/herdworks/fieldsync/internal/models"
)

// Queue is the durable offline write queue. Records move
// pending -> in-flight -> synced (deleted) or failed; failed records stay
// visible until an operator corrects and requeues them. Enqueue does not
// return before the insert is committed, so a record the caller was told was
// queued survives any process death.
type Queue struct {
	db *sql.DB
}

func NewQueue(db *sql.DB) *Queue {
	return &Queue{db: db}
}

// Enqueue appends a record. Idempotent on client_id: re-enqueueing a record
// that is already queued is a no-op, which protects against a retried
// capture action double-queuing.
func (q *Queue) Enqueue(ctx context.Context, rec models.QueuedRecord) error {
	query := `INSERT OR IGNORE INTO queued_records
	          (client_id, record_type, payload, captured_at, sync_status, fail_reason, enqueued_at)
	          VALUES (?, ?, ?, ?, 'pending', '', ?)`

	_, err := q.db.ExecContext(ctx, query,
		rec.ClientID,
		string(rec.RecordType),
		string(rec.Payload),
		rec.CapturedAt.UnixNano(),
		time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue record: %w", err)
	}
	return nil
}

// PeekPending returns pending records oldest capture first. Replay is FIFO
// because later writes may depend on earlier state, e.g. "already checked in
// today".
func (q *Queue) PeekPending(ctx context.Context) ([]models.QueuedRecord, error) {
	return q.peekByStatus(ctx, models.StatusPending)
}

// PeekFailed returns rejected records kept for operator inspection.
func (q *Queue) PeekFailed(ctx context.Context) ([]models.QueuedRecord, error) {
	return q.peekByStatus(ctx, models.StatusFailed)
}

func (q *Queue) peekByStatus(ctx context.Context, status models.SyncStatus) ([]models.QueuedRecord, error) {
	query := `SELECT client_id, record_type, payload, captured_at, sync_status, fail_reason
	          FROM queued_records
	          WHERE sync_status = ?
	          ORDER BY captured_at ASC`

	rows, err := q.db.QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to query queue: %w", err)
	}
	defer rows.Close()

	var records []models.QueuedRecord
	for rows.Next() {
		var rec models.QueuedRecord
		var payload string
		var capturedAt int64
		err := rows.Scan(&rec.ClientID, &rec.RecordType, &payload, &capturedAt, &rec.SyncStatus, &rec.FailReason)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queued record: %w", err)
		}
		rec.Payload = []byte(payload)
		rec.CapturedAt = time.Unix(0, capturedAt).UTC()
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating queue: %w", err)
	}

	return records, nil
}

// MarkInFlight moves a batch from pending to in-flight before submission.
func (q *Queue) MarkInFlight(ctx context.Context, clientIDs []string) error {
	return q.setStatus(ctx, clientIDs, models.StatusPending, models.StatusInFlight)
}

// Revert returns in-flight records to pending after a transport failure or a
// stale run; nothing is lost on an unconfirmed outcome.
func (q *Queue) Revert(ctx context.Context, clientIDs []string) error {
	return q.setStatus(ctx, clientIDs, models.StatusInFlight, models.StatusPending)
}

func (q *Queue) setStatus(ctx context.Context, clientIDs []string, from, to models.SyncStatus) error {
	if len(clientIDs) == 0 {
		return nil
	}

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`UPDATE queued_records SET sync_status = ? WHERE client_id = ? AND sync_status = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare status update: %w", err)
	}
	defer stmt.Close()

	for _, id := range clientIDs {
		if _, err := stmt.ExecContext(ctx, string(to), id, string(from)); err != nil {
			return fmt.Errorf("failed to update record %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit status update: %w", err)
	}
	return nil
}

// MarkSynced removes a confirmed record. Only a server acknowledgement gets
// a record this far; the row is gone and the clientId is never reused.
func (q *Queue) MarkSynced(ctx context.Context, clientID string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM queued_records WHERE client_id = ?`, clientID)
	if err != nil {
		return fmt.Errorf("failed to remove synced record: %w", err)
	}
	return nil
}

// MarkFailed records a server rejection. The row is kept with the reason so
// an operator can inspect and correct it; it is not retried automatically.
func (q *Queue) MarkFailed(ctx context.Context, clientID, reason string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE queued_records SET sync_status = ?, fail_reason = ? WHERE client_id = ?`,
		string(models.StatusFailed), reason, clientID)
	if err != nil {
		return fmt.Errorf("failed to mark record failed: %w", err)
	}
	return nil
}

// Requeue returns a corrected failed record to pending.
func (q *Queue) Requeue(ctx context.Context, clientID string) error {
	result, err := q.db.ExecContext(ctx,
		`UPDATE queued_records SET sync_status = ?, fail_reason = '' WHERE client_id = ? AND sync_status = ?`,
		string(models.StatusPending), clientID, string(models.StatusFailed))
	if err != nil {
		return fmt.Errorf("failed to requeue record: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("record %s is not failed", clientID)
	}
	return nil
}

// Size counts every record still in the queue, whatever its status.
func (q *Queue) Size(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM queued_records`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count queue: %w", err)
	}
	return n, nil
}

// PendingCount backs the offline indicator ("N records pending sync").
func (q *Queue) PendingCount(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM queued_records WHERE sync_status = ?`,
		string(models.StatusPending)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending records: %w", err)
	}
	return n, nil
}
