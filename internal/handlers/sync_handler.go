package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/herdworks/fieldsync/internal/models"
	"github.com/herdworks/fieldsync/internal/services"
)

// SyncHandler is the reconciliation endpoint devices drain their offline
// queues against.
type SyncHandler struct {
	reconcile *services.ReconcileService
}

func NewSyncHandler(reconcile *services.ReconcileService) *SyncHandler {
	return &SyncHandler{reconcile: reconcile}
}

func (h *SyncHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req models.ReconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.reconcile.Reconcile(r.Context(), accountIDFrom(r.Context()), req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "reconcile failed")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
