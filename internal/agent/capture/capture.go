// Package capture is the agent's write path. A capture goes straight to the
// server when the device is online and into the durable queue when it is not;
// either way the caller gets an answer immediately.
package capture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/herdworks/fieldsync/internal/agent/api"
	"github.com/herdworks/fieldsync/internal/agent/connectivity"
	"github.com/herdworks/fieldsync/internal/agent/store"
	"github.com/herdworks/fieldsync/internal/models"
)

var (
	// ErrInvalidCode means the scanned code fails basic shape checks before
	// any lookup is attempted.
	ErrInvalidCode = errors.New("invalid tag or barcode")

	ErrMissingAnimal = errors.New("animal id is required")
	ErrInvalidDate   = errors.New("date must be YYYY-MM-DD")
)

// Ear tags and barcodes are short alphanumeric codes, optionally dashed.
var codePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]{1,31}$`)

const dateLayout = "2006-01-02"

// Herd is the slice of the server client the capture path uses.
type Herd interface {
	Lookup(ctx context.Context, code string) (*models.Animal, error)
	ListActive(ctx context.Context) ([]*models.Animal, error)
	PostRecord(ctx context.Context, recordType models.RecordType, payload interface{}) error
}

// Connectivity is the slice of the monitor the capture path uses.
type Connectivity interface {
	Mode() connectivity.Mode
	ReportFailure()
}

// Outcome tells the caller what happened to a capture: written live, or
// queued for the next reconciliation.
type Outcome struct {
	ClientID string
	Queued   bool
}

type Service struct {
	client  Herd
	queue   *store.Queue
	cache   *store.Cache
	monitor Connectivity
}

func NewService(client Herd, queue *store.Queue, cache *store.Cache, monitor Connectivity) *Service {
	return &Service{
		client:  client,
		queue:   queue,
		cache:   cache,
		monitor: monitor,
	}
}

// ResolveAnimal turns a scanned code into an animal. Online it asks the
// server and refreshes the cache with the answer; offline, or when the live
// lookup fails at the transport, it falls back to the last-known cache. A
// cache miss returns store.ErrCacheMiss and queues nothing.
func (s *Service) ResolveAnimal(ctx context.Context, code string) (*models.Animal, error) {
	if !codePattern.MatchString(code) {
		return nil, ErrInvalidCode
	}

	if s.monitor.Mode() == connectivity.Online {
		animal, err := s.client.Lookup(ctx, code)
		switch {
		case err == nil:
			if cacheErr := s.cache.RefreshFromHerd(ctx, []*models.Animal{animal}); cacheErr != nil {
				log.Printf("capture: failed to refresh cache for %s: %v", animal.TagNumber, cacheErr)
			}
			return animal, nil
		case errors.Is(err, api.ErrNotFound):
			// The server is authoritative: a live miss is a real miss, not a
			// reason to trust a stale cache entry.
			return nil, err
		case errors.Is(err, api.ErrTransient):
			s.monitor.ReportFailure()
			// fall through to the cache
		default:
			return nil, err
		}
	}

	entry, err := s.cache.FindByAltKey(ctx, code)
	if err != nil {
		return nil, err
	}
	return &entry.Snapshot, nil
}

// RefreshHerd pulls the full active herd into the cache. Callers run it
// opportunistically after reconnect; a transport failure flips the monitor
// and is returned as-is.
func (s *Service) RefreshHerd(ctx context.Context) error {
	animals, err := s.client.ListActive(ctx)
	if err != nil {
		if errors.Is(err, api.ErrTransient) {
			s.monitor.ReportFailure()
		}
		return fmt.Errorf("failed to fetch herd: %w", err)
	}
	return s.cache.RefreshFromHerd(ctx, animals)
}

func (s *Service) CaptureAttendance(ctx context.Context, p models.AttendancePayload) (*Outcome, error) {
	if p.AnimalID == "" {
		return nil, ErrMissingAnimal
	}
	if err := validDate(p.AttendanceDate); err != nil {
		return nil, err
	}
	return s.capture(ctx, models.RecordAttendance, p)
}

func (s *Service) CaptureMedical(ctx context.Context, p models.MedicalPayload) (*Outcome, error) {
	if p.AnimalID == "" {
		return nil, ErrMissingAnimal
	}
	if err := validDate(p.EventDate); err != nil {
		return nil, err
	}
	return s.capture(ctx, models.RecordMedical, p)
}

func (s *Service) CaptureBreeding(ctx context.Context, p models.BreedingPayload) (*Outcome, error) {
	if p.DamID == "" {
		return nil, ErrMissingAnimal
	}
	if err := validDate(p.BreedingDate); err != nil {
		return nil, err
	}
	return s.capture(ctx, models.RecordBreeding, p)
}

// capture is the shared online-first write. A rejection from the server (a
// same-day duplicate, say) is returned to the caller, never queued; only a
// lost or failed transport turns a live write into a queued one.
func (s *Service) capture(ctx context.Context, recordType models.RecordType, payload interface{}) (*Outcome, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	record := models.QueuedRecord{
		ClientID:   uuid.New().String(),
		RecordType: recordType,
		Payload:    raw,
		CapturedAt: time.Now().UTC(),
	}

	if s.monitor.Mode() == connectivity.Online {
		err := s.client.PostRecord(ctx, recordType, payload)
		if err == nil {
			return &Outcome{ClientID: record.ClientID}, nil
		}

		var rejected *api.RejectedError
		if errors.As(err, &rejected) {
			return nil, err
		}
		if !errors.Is(err, api.ErrTransient) {
			return nil, err
		}
		s.monitor.ReportFailure()
	}

	if err := s.queue.Enqueue(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to queue record: %w", err)
	}
	return &Outcome{ClientID: record.ClientID, Queued: true}, nil
}

func validDate(value string) error {
	if _, err := time.Parse(dateLayout, value); err != nil {
		return ErrInvalidDate
	}
	return nil
}
