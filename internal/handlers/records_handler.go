package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/herdworks/fieldsync/internal/models"
	"github.com/herdworks/fieldsync/internal/repositories"
)

const dateLayout = "2006-01-02"

// RecordsHandler serves the online direct-write paths. These are the same
// writes the reconcile endpoint applies from queues, minus the batching: a
// direct attendance write for an already-recorded day is a 409 the capture
// UI shows immediately, where a replayed queue record would just be
// acknowledged.
type RecordsHandler struct {
	attendanceRepo repositories.AttendanceRepository
	medicalRepo    repositories.MedicalRepository
	breedingRepo   repositories.BreedingRepository
}

func NewRecordsHandler(
	attendanceRepo repositories.AttendanceRepository,
	medicalRepo repositories.MedicalRepository,
	breedingRepo repositories.BreedingRepository,
) *RecordsHandler {
	return &RecordsHandler{
		attendanceRepo: attendanceRepo,
		medicalRepo:    medicalRepo,
		breedingRepo:   breedingRepo,
	}
}

func (h *RecordsHandler) ListAttendance(w http.ResponseWriter, r *http.Request) {
	dateStr := r.URL.Query().Get("date")
	if dateStr == "" {
		dateStr = time.Now().Format(dateLayout)
	}
	date, err := time.Parse(dateLayout, dateStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date")
		return
	}

	records, err := h.attendanceRepo.ListByDate(r.Context(), date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list attendance")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"attendance": records})
}

func (h *RecordsHandler) CreateAttendance(w http.ResponseWriter, r *http.Request) {
	var payload models.AttendancePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	animalID, err := uuid.Parse(payload.AnimalID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid animal_id")
		return
	}

	date := time.Now()
	if payload.AttendanceDate != "" {
		date, err = time.Parse(dateLayout, payload.AttendanceDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid attendance_date")
			return
		}
	}

	exists, err := h.attendanceRepo.ExistsForDate(r.Context(), animalID, date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check attendance")
		return
	}
	if exists {
		writeError(w, http.StatusConflict, "attendance already recorded for this date")
		return
	}

	att := &models.Attendance{
		AnimalID:       animalID,
		AccountID:      accountIDFrom(r.Context()),
		AttendanceDate: date,
		Notes:          payload.Notes,
		RecordedAt:     time.Now(),
	}
	if err := h.attendanceRepo.Insert(r.Context(), att); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to record attendance")
		return
	}

	writeJSON(w, http.StatusCreated, att)
}

func (h *RecordsHandler) ListMedical(w http.ResponseWriter, r *http.Request) {
	animalID, err := uuid.Parse(r.URL.Query().Get("animal_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid animal_id")
		return
	}

	events, err := h.medicalRepo.ListByAnimal(r.Context(), animalID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list medical events")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"medical_events": events})
}

func (h *RecordsHandler) CreateMedical(w http.ResponseWriter, r *http.Request) {
	var payload models.MedicalPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	animalID, err := uuid.Parse(payload.AnimalID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid animal_id")
		return
	}
	eventDate, err := time.Parse(dateLayout, payload.EventDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event_date")
		return
	}
	switch payload.EventType {
	case models.MedicalVaccination, models.MedicalTreatment, models.MedicalCheckup, models.MedicalDeworming:
	default:
		writeError(w, http.StatusBadRequest, "invalid event_type")
		return
	}

	exists, err := h.medicalRepo.ExistsForKey(r.Context(), animalID, payload.EventType, eventDate)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check medical event")
		return
	}
	if exists {
		writeError(w, http.StatusConflict, "medical event already recorded")
		return
	}

	event := &models.MedicalEvent{
		AnimalID:    animalID,
		AccountID:   accountIDFrom(r.Context()),
		EventType:   payload.EventType,
		Description: payload.Description,
		Medication:  payload.Medication,
		Dosage:      payload.Dosage,
		EventDate:   eventDate,
	}
	if payload.NextDueDate != "" {
		due, err := time.Parse(dateLayout, payload.NextDueDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid next_due_date")
			return
		}
		event.NextDueDate = &due
	}

	if err := h.medicalRepo.Insert(r.Context(), event); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to record medical event")
		return
	}

	writeJSON(w, http.StatusCreated, event)
}

func (h *RecordsHandler) ListBreeding(w http.ResponseWriter, r *http.Request) {
	damID, err := uuid.Parse(r.URL.Query().Get("dam_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid dam_id")
		return
	}

	records, err := h.breedingRepo.ListByDam(r.Context(), damID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list breeding records")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"breeding_records": records})
}

func (h *RecordsHandler) CreateBreeding(w http.ResponseWriter, r *http.Request) {
	var payload models.BreedingPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	damID, err := uuid.Parse(payload.DamID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid dam_id")
		return
	}
	sireID, err := uuid.Parse(payload.SireID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid sire_id")
		return
	}
	breedingDate, err := time.Parse(dateLayout, payload.BreedingDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid breeding_date")
		return
	}

	exists, err := h.breedingRepo.ExistsForKey(r.Context(), damID, breedingDate)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check breeding record")
		return
	}
	if exists {
		writeError(w, http.StatusConflict, "breeding record already exists")
		return
	}

	rec := &models.BreedingRecord{
		DamID:        damID,
		SireID:       sireID,
		AccountID:    accountIDFrom(r.Context()),
		BreedingDate: breedingDate,
		Outcome:      payload.Outcome,
		Notes:        payload.Notes,
	}
	if payload.ExpectedDueDate != "" {
		due, err := time.Parse(dateLayout, payload.ExpectedDueDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid expected_due_date")
			return
		}
		rec.ExpectedDueDate = &due
	}

	if err := h.breedingRepo.Insert(r.Context(), rec); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to record breeding")
		return
	}

	writeJSON(w, http.StatusCreated, rec)
}
