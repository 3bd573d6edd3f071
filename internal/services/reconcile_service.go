package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/herdworks/fieldsync/internal/models"
	"github.com/herdworks/fieldsync/internal/repositories"
)

const dateLayout = "2006-01-02"

// ReconcileService applies a batch of device-queued records. Each record is
// processed independently, in batch order: a record whose dedup key already
// has a row is reported accepted without inserting a second row, so a device
// can replay the same batch any number of times. A record that fails
// validation is rejected with a reason and does not affect its siblings.
type ReconcileService struct {
	animalRepo     repositories.AnimalRepository
	attendanceRepo repositories.AttendanceRepository
	medicalRepo    repositories.MedicalRepository
	breedingRepo   repositories.BreedingRepository
}

func NewReconcileService(
	animalRepo repositories.AnimalRepository,
	attendanceRepo repositories.AttendanceRepository,
	medicalRepo repositories.MedicalRepository,
	breedingRepo repositories.BreedingRepository,
) *ReconcileService {
	return &ReconcileService{
		animalRepo:     animalRepo,
		attendanceRepo: attendanceRepo,
		medicalRepo:    medicalRepo,
		breedingRepo:   breedingRepo,
	}
}

// Reconcile processes records one at a time. A record that hits an internal
// error is neither accepted nor rejected; the device keeps it pending and
// retries on a later run.
func (s *ReconcileService) Reconcile(ctx context.Context, accountID uuid.UUID, req models.ReconcileRequest) (*models.ReconcileResponse, error) {
	resp := &models.ReconcileResponse{
		AcceptedClientIDs: []string{},
	}

	for _, record := range req.Records {
		if record.ClientID == "" {
			resp.Rejected = append(resp.Rejected, models.RejectedRecord{
				ClientID: record.ClientID,
				Reason:   "missing client_id",
			})
			continue
		}

		var err error
		var reason string

		switch record.RecordType {
		case models.RecordAttendance:
			reason, err = s.applyAttendance(ctx, accountID, record)
		case models.RecordMedical:
			reason, err = s.applyMedical(ctx, accountID, record)
		case models.RecordBreeding:
			reason, err = s.applyBreeding(ctx, accountID, record)
		default:
			reason = fmt.Sprintf("unknown record type %q", record.RecordType)
		}

		if err != nil {
			// Internal failure: leave the record unacknowledged so the
			// device reverts it to pending and retries.
			log.Printf("reconcile: record %s not applied: %v", record.ClientID, err)
			continue
		}
		if reason != "" {
			resp.Rejected = append(resp.Rejected, models.RejectedRecord{
				ClientID: record.ClientID,
				Reason:   reason,
			})
			continue
		}

		resp.AcceptedClientIDs = append(resp.AcceptedClientIDs, record.ClientID)
	}

	return resp, nil
}

// applyAttendance returns a non-empty reason when the record is invalid, or
// an error when the outcome is unknown and the record must stay pending.
func (s *ReconcileService) applyAttendance(ctx context.Context, accountID uuid.UUID, record models.QueuedRecord) (string, error) {
	var payload models.AttendancePayload
	if err := json.Unmarshal(record.Payload, &payload); err != nil {
		return "malformed attendance payload", nil
	}

	animalID, err := uuid.Parse(payload.AnimalID)
	if err != nil {
		return "invalid animal_id", nil
	}
	date, err := time.Parse(dateLayout, payload.AttendanceDate)
	if err != nil {
		return "invalid attendance_date", nil
	}

	if _, err := s.animalRepo.GetByID(ctx, animalID); err != nil {
		if err == repositories.ErrNotFound {
			return "unknown animal", nil
		}
		return "", fmt.Errorf("failed to resolve animal: %w", err)
	}

	exists, err := s.attendanceRepo.ExistsForDate(ctx, animalID, date)
	if err != nil {
		return "", err
	}
	if exists {
		// Already satisfied, possibly by another device or a prior replay.
		return "", nil
	}

	att := &models.Attendance{
		AnimalID:       animalID,
		AccountID:      accountID,
		AttendanceDate: date,
		Notes:          payload.Notes,
		RecordedAt:     record.CapturedAt,
	}
	if err := s.attendanceRepo.Insert(ctx, att); err != nil {
		return "", err
	}
	return "", nil
}

func (s *ReconcileService) applyMedical(ctx context.Context, accountID uuid.UUID, record models.QueuedRecord) (string, error) {
	var payload models.MedicalPayload
	if err := json.Unmarshal(record.Payload, &payload); err != nil {
		return "malformed medical payload", nil
	}

	animalID, err := uuid.Parse(payload.AnimalID)
	if err != nil {
		return "invalid animal_id", nil
	}
	eventDate, err := time.Parse(dateLayout, payload.EventDate)
	if err != nil {
		return "invalid event_date", nil
	}
	switch payload.EventType {
	case models.MedicalVaccination, models.MedicalTreatment, models.MedicalCheckup, models.MedicalDeworming:
	default:
		return fmt.Sprintf("invalid event_type %q", payload.EventType), nil
	}

	if _, err := s.animalRepo.GetByID(ctx, animalID); err != nil {
		if err == repositories.ErrNotFound {
			return "unknown animal", nil
		}
		return "", fmt.Errorf("failed to resolve animal: %w", err)
	}

	exists, err := s.medicalRepo.ExistsForKey(ctx, animalID, payload.EventType, eventDate)
	if err != nil {
		return "", err
	}
	if exists {
		return "", nil
	}

	event := &models.MedicalEvent{
		AnimalID:    animalID,
		AccountID:   accountID,
		EventType:   payload.EventType,
		Description: payload.Description,
		Medication:  payload.Medication,
		Dosage:      payload.Dosage,
		EventDate:   eventDate,
	}
	if payload.NextDueDate != "" {
		due, err := time.Parse(dateLayout, payload.NextDueDate)
		if err != nil {
			return "invalid next_due_date", nil
		}
		event.NextDueDate = &due
	}

	if err := s.medicalRepo.Insert(ctx, event); err != nil {
		return "", err
	}
	return "", nil
}

func (s *ReconcileService) applyBreeding(ctx context.Context, accountID uuid.UUID, record models.QueuedRecord) (string, error) {
	var payload models.BreedingPayload
	if err := json.Unmarshal(record.Payload, &payload); err != nil {
		return "malformed breeding payload", nil
	}

	damID, err := uuid.Parse(payload.DamID)
	if err != nil {
		return "invalid dam_id", nil
	}
	sireID, err := uuid.Parse(payload.SireID)
	if err != nil {
		return "invalid sire_id", nil
	}
	breedingDate, err := time.Parse(dateLayout, payload.BreedingDate)
	if err != nil {
		return "invalid breeding_date", nil
	}

	if _, err := s.animalRepo.GetByID(ctx, damID); err != nil {
		if err == repositories.ErrNotFound {
			return "unknown dam", nil
		}
		return "", fmt.Errorf("failed to resolve dam: %w", err)
	}

	exists, err := s.breedingRepo.ExistsForKey(ctx, damID, breedingDate)
	if err != nil {
		return "", err
	}
	if exists {
		return "", nil
	}

	rec := &models.BreedingRecord{
		DamID:        damID,
		SireID:       sireID,
		AccountID:    accountID,
		BreedingDate: breedingDate,
		Outcome:      payload.Outcome,
		Notes:        payload.Notes,
	}
	if payload.ExpectedDueDate != "" {
		due, err := time.Parse(dateLayout, payload.ExpectedDueDate)
		if err != nil {
			return "invalid expected_due_date", nil
		}
		rec.ExpectedDueDate = &due
	}

	if err := s.breedingRepo.Insert(ctx, rec); err != nil {
		return "", err
	}
	return "", nil
}
