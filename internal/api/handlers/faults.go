package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/brokerledger/reconciliation-backend/internal/api/response"
	"github.com/brokerledger/reconciliation-backend/internal/apperrors"
	"github.com/brokerledger/reconciliation-backend/internal/service"
	"github.com/brokerledger/reconciliation-backend/internal/validation"
)

// FaultHandler handles HTTP requests for the reconciliation fault queue.
type FaultHandler struct {
	matcherService *service.MatcherService
}

// NewFaultHandler creates a new FaultHandler with the provided service dependency.
func NewFaultHandler(matcherService *service.MatcherService) *FaultHandler {
	return &FaultHandler{
		matcherService: matcherService,
	}
}

// Faults handles GET requests to list a user's reconciliation faults.
// Resolved faults are excluded unless includeResolved=true.
//
// Endpoint: GET /api/faults?userId={uuid}&includeResolved=true
// Response: 200 OK with array of ReconciliationFault
// Error: 400 Bad Request if userId is missing or invalid
// Error: 500 Internal Server Error if retrieval fails
func (h *FaultHandler) Faults(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if err := validation.ValidateUUID(userID); err != nil {
		response.RespondError(w, http.StatusBadRequest, apperrors.ErrMissingUserID.Error(), err.Error())
		return
	}

	includeResolved := r.URL.Query().Get("includeResolved") == "true"

	faults, err := h.matcherService.GetFaults(userID, includeResolved)
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRetrieveFaults.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, faults)
}

// Resolve handles POST requests to mark a fault as handled by an operator.
//
// Endpoint: POST /api/faults/{uuid}/resolve
// Response: 204 No Content on success
// Error: 400 Bad Request if fault ID is invalid (validated by middleware)
// Error: 404 Not Found if fault not found
// Error: 500 Internal Server Error if the update fails
func (h *FaultHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	faultID := chi.URLParam(r, "uuid")

	if err := h.matcherService.ResolveFault(r.Context(), faultID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			response.RespondError(w, http.StatusNotFound, "fault not found", err.Error())
			return
		}
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRetrieveFaults.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusNoContent, nil)
}
