package capture

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/herdworks/fieldsync/internal/agent/api"
	"github.com/herdworks/fieldsync/internal/agent/store"
	"github.com/herdworks/fieldsync/internal/models"
)

// Handler exposes the capture path to the device UI on the agent's local
// port. The UI talks to these routes instead of the server directly, so a
// capture succeeds whether the device is online or not.
func Handler(svc *Service, queue *store.Queue) http.Handler {
	h := &captureHandler{svc: svc, queue: queue}

	r := chi.NewRouter()
	r.Get("/resolve/{code}", h.resolve)
	r.Post("/attendance", h.captureAttendance)
	r.Post("/medical", h.captureMedical)
	r.Post("/breeding", h.captureBreeding)
	r.Get("/queue", h.queueStatus)
	r.Post("/queue/{clientID}/requeue", h.requeue)
	return r
}

type captureHandler struct {
	svc   *Service
	queue *store.Queue
}

func (h *captureHandler) resolve(w http.ResponseWriter, r *http.Request) {
	animal, err := h.svc.ResolveAnimal(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeCaptureError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, animal)
}

func (h *captureHandler) captureAttendance(w http.ResponseWriter, r *http.Request) {
	var p models.AttendancePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}
	h.writeOutcome(w, r, func() (*Outcome, error) {
		return h.svc.CaptureAttendance(r.Context(), p)
	})
}

func (h *captureHandler) captureMedical(w http.ResponseWriter, r *http.Request) {
	var p models.MedicalPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}
	h.writeOutcome(w, r, func() (*Outcome, error) {
		return h.svc.CaptureMedical(r.Context(), p)
	})
}

func (h *captureHandler) captureBreeding(w http.ResponseWriter, r *http.Request) {
	var p models.BreedingPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}
	h.writeOutcome(w, r, func() (*Outcome, error) {
		return h.svc.CaptureBreeding(r.Context(), p)
	})
}

// Live writes answer 201; queued ones answer 202 so the UI can tell the user
// the record is safe but not yet on the server.
func (h *captureHandler) writeOutcome(w http.ResponseWriter, r *http.Request, capture func() (*Outcome, error)) {
	outcome, err := capture()
	if err != nil {
		writeCaptureError(w, err)
		return
	}
	status := http.StatusCreated
	if outcome.Queued {
		status = http.StatusAccepted
	}
	writeJSON(w, status, outcome)
}

func (h *captureHandler) queueStatus(w http.ResponseWriter, r *http.Request) {
	pending, err := h.queue.PendingCount(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to read queue"))
		return
	}
	failed, err := h.queue.PeekFailed(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to read queue"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"pending": pending,
		"failed":  failed,
	})
}

func (h *captureHandler) requeue(w http.ResponseWriter, r *http.Request) {
	if err := h.queue.Requeue(r.Context(), chi.URLParam(r, "clientID")); err != nil {
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeCaptureError(w http.ResponseWriter, err error) {
	var rejected *api.RejectedError
	switch {
	case errors.Is(err, ErrInvalidCode), errors.Is(err, ErrMissingAnimal), errors.Is(err, ErrInvalidDate):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, store.ErrCacheMiss), errors.Is(err, api.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody(err.Error()))
	case errors.Is(err, api.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, errorBody("not authorized against the server"))
	case errors.As(err, &rejected):
		writeJSON(w, rejected.Status, errorBody(rejected.Reason))
	default:
		writeJSON(w, http.StatusBadGateway, errorBody(err.Error()))
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}
