package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/herdworks/fieldsync/internal/models"
	"github.com/herdworks/fieldsync/internal/repositories"
)

type AnimalHandler struct {
	repo repositories.AnimalRepository
}

func NewAnimalHandler(repo repositories.AnimalRepository) *AnimalHandler {
	return &AnimalHandler{repo: repo}
}

// List returns the active herd. With ?barcode= it resolves a single animal
// instead; a miss is a normal 404, not a fault.
func (h *AnimalHandler) List(w http.ResponseWriter, r *http.Request) {
	if barcode := r.URL.Query().Get("barcode"); barcode != "" {
		animal, err := h.repo.GetByBarcode(r.Context(), barcode)
		if err == repositories.ErrNotFound {
			writeError(w, http.StatusNotFound, "animal not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to look up animal")
			return
		}
		writeJSON(w, http.StatusOK, animal)
		return
	}

	animals, err := h.repo.ListActive(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list animals")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"animals": animals})
}

// Lookup resolves a scanned code against the ear tag first, then the
// barcode, so either printed code on the collar works.
func (h *AnimalHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	animal, err := h.repo.GetByTag(r.Context(), code)
	if err == repositories.ErrNotFound {
		animal, err = h.repo.GetByBarcode(r.Context(), code)
	}
	if err == repositories.ErrNotFound {
		writeError(w, http.StatusNotFound, "animal not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to look up animal")
		return
	}

	writeJSON(w, http.StatusOK, animal)
}

func (h *AnimalHandler) Create(w http.ResponseWriter, r *http.Request) {
	var animal models.Animal
	if err := json.NewDecoder(r.Body).Decode(&animal); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if animal.TagNumber == "" {
		writeError(w, http.StatusBadRequest, "tag_number is required")
		return
	}

	if err := h.repo.Create(r.Context(), &animal); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create animal")
		return
	}

	writeJSON(w, http.StatusCreated, animal)
}

func (h *AnimalHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid animal id")
		return
	}

	var animal models.Animal
	if err := json.NewDecoder(r.Body).Decode(&animal); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	animal.ID = id

	err = h.repo.Update(r.Context(), &animal)
	if err == repositories.ErrNotFound {
		writeError(w, http.StatusNotFound, "animal not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update animal")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *AnimalHandler) Retire(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid animal id")
		return
	}

	err = h.repo.Retire(r.Context(), id)
	if err == repositories.ErrNotFound {
		writeError(w, http.StatusNotFound, "animal not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to retire animal")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
