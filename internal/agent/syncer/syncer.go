// Package syncer drains the offline queue to the reconciliation endpoint.
// One run submits one batch; at most one run is ever in flight, and a run
// that outlives a connectivity transition discards its response instead of
// applying it.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/herdworks/fieldsync/internal/agent/api"
	"github.com/herdworks/fieldsync/internal/agent/connectivity"
	"github.com/herdworks/fieldsync/internal/agent/store"
	"github.com/herdworks/fieldsync/internal/models"
)

var (
	// ErrAlreadyInFlight means another reconciliation is running. The
	// scheduler treats it as a no-op, not a failure.
	ErrAlreadyInFlight = errors.New("reconciliation already in flight")

	// ErrStaleRun means connectivity flipped while the batch was in flight;
	// the response was discarded and the batch reverted to pending.
	ErrStaleRun = errors.New("stale reconciliation run discarded")
)

// Result summarizes one reconciliation run.
type Result struct {
	Submitted int
	Accepted  int
	Rejected  int
}

// ConnectivitySource is the slice of the connectivity monitor the reconciler
// needs: a consistent mode+counter snapshot and the soft-failure report.
type ConnectivitySource interface {
	Snapshot() (connectivity.Mode, uint64)
	ReportFailure()
}

// Submitter posts one batch to the server.
type Submitter interface {
	SubmitBatch(ctx context.Context, records []models.QueuedRecord) (*models.ReconcileResponse, error)
}

type Reconciler struct {
	queue   *store.Queue
	client  Submitter
	monitor ConnectivitySource

	// single-flight guard; buffered so TryLock-style acquire is a channel op
	running chan struct{}
}

func NewReconciler(queue *store.Queue, client Submitter, monitor ConnectivitySource) *Reconciler {
	r := &Reconciler{
		queue:   queue,
		client:  client,
		monitor: monitor,
		running: make(chan struct{}, 1),
	}
	return r
}

// Run drains the pending queue in one batch. Offline or empty-queue runs
// return a zero Result with no error.
func (r *Reconciler) Run(ctx context.Context) (Result, error) {
	select {
	case r.running <- struct{}{}:
		defer func() { <-r.running }()
	default:
		return Result{}, ErrAlreadyInFlight
	}

	mode, startCounter := r.monitor.Snapshot()
	if mode != connectivity.Online {
		return Result{}, nil
	}

	pending, err := r.queue.PeekPending(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read queue: %w", err)
	}
	if len(pending) == 0 {
		return Result{}, nil
	}

	clientIDs := make([]string, len(pending))
	for i, rec := range pending {
		clientIDs[i] = rec.ClientID
	}

	if err := r.queue.MarkInFlight(ctx, clientIDs); err != nil {
		return Result{}, fmt.Errorf("failed to mark batch in flight: %w", err)
	}

	resp, err := r.client.SubmitBatch(ctx, pending)
	if err != nil {
		// No confirmed outcome: everything goes back to pending, nothing is
		// lost and nothing is marked synced.
		if revertErr := r.queue.Revert(ctx, clientIDs); revertErr != nil {
			log.Printf("syncer: failed to revert batch: %v", revertErr)
		}
		if errors.Is(err, api.ErrTransient) {
			r.monitor.ReportFailure()
		}
		return Result{}, fmt.Errorf("batch submit failed: %w", err)
	}

	// The response may have raced a connectivity flip. A stale run must not
	// prune the queue: check the counter before applying anything.
	if _, counter := r.monitor.Snapshot(); counter != startCounter {
		if revertErr := r.queue.Revert(ctx, clientIDs); revertErr != nil {
			log.Printf("syncer: failed to revert stale batch: %v", revertErr)
		}
		return Result{}, ErrStaleRun
	}

	return r.apply(ctx, clientIDs, resp)
}

func (r *Reconciler) apply(ctx context.Context, clientIDs []string, resp *models.ReconcileResponse) (Result, error) {
	result := Result{Submitted: len(clientIDs)}

	acknowledged := make(map[string]bool, len(clientIDs))

	for _, id := range resp.AcceptedClientIDs {
		if err := r.queue.MarkSynced(ctx, id); err != nil {
			return result, fmt.Errorf("failed to prune accepted record: %w", err)
		}
		acknowledged[id] = true
		result.Accepted++
	}

	for _, rejected := range resp.Rejected {
		if err := r.queue.MarkFailed(ctx, rejected.ClientID, rejected.Reason); err != nil {
			return result, fmt.Errorf("failed to mark rejected record: %w", err)
		}
		acknowledged[rejected.ClientID] = true
		result.Rejected++
		log.Printf("syncer: record %s rejected by server: %s", rejected.ClientID, rejected.Reason)
	}

	// Partial failure: anything the server didn't acknowledge goes back to
	// pending for the next run.
	var unacked []string
	for _, id := range clientIDs {
		if !acknowledged[id] {
			unacked = append(unacked, id)
		}
	}
	if len(unacked) > 0 {
		if err := r.queue.Revert(ctx, unacked); err != nil {
			return result, fmt.Errorf("failed to revert unacknowledged records: %w", err)
		}
		log.Printf("syncer: %d records unacknowledged, kept pending", len(unacked))
	}

	return result, nil
}
