package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/scanin/scanin/internal/database"
	"github.com/scanin/scanin/internal/web/middleware"
)

// PolicyHandler exposes the scan policy as a key/value settings API.
type PolicyHandler struct {
	store database.PolicyStore
}

// NewPolicyHandler creates a new policy handler
func NewPolicyHandler(store database.PolicyStore) *PolicyHandler {
	return &PolicyHandler{store: store}
}

// Get returns the current policy values.
func (h *PolicyHandler) Get(w http.ResponseWriter, r *http.Request) {
	policy, err := h.store.Get(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load policy")
		return
	}
	respondJSON(w, http.StatusOK, policy.Values())
}

// Update applies one or more policy values. Every value is parsed and
// validated before anything is written; one bad key rejects the whole patch.
func (h *PolicyHandler) Update(w http.ResponseWriter, r *http.Request) {
	var values map[string]string
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if len(values) == 0 {
		respondError(w, http.StatusBadRequest, "no policy values provided")
		return
	}

	policy, err := h.store.Get(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load policy")
		return
	}

	for key, value := range values {
		if err := policy.Set(key, value); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if err := h.store.Put(r.Context(), policy); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to store policy")
		return
	}

	log.Printf("policy updated by %s: %d keys", sanitizeForLog(middleware.AdminFromContext(r.Context())), len(values))
	respondJSON(w, http.StatusOK, policy.Values())
}
