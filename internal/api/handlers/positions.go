package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/brokerledger/reconciliation-backend/internal/api/response"
	"github.com/brokerledger/reconciliation-backend/internal/apperrors"
	"github.com/brokerledger/reconciliation-backend/internal/model"
	"github.com/brokerledger/reconciliation-backend/internal/service"
	"github.com/brokerledger/reconciliation-backend/internal/validation"
)

// PositionHandler handles HTTP requests for reconstructed positions and their
// lot-match audit trail.
type PositionHandler struct {
	matcherService *service.MatcherService
}

// NewPositionHandler creates a new PositionHandler with the provided service dependency.
func NewPositionHandler(matcherService *service.MatcherService) *PositionHandler {
	return &PositionHandler{
		matcherService: matcherService,
	}
}

// Positions handles GET requests to list a user's positions.
//
// Endpoint: GET /api/positions?userId={uuid}&status=&assetType=&symbol=
// Response: 200 OK with array of Position
// Error: 400 Bad Request if userId is missing or invalid
// Error: 500 Internal Server Error if retrieval fails
func (h *PositionHandler) Positions(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if err := validation.ValidateUUID(userID); err != nil {
		response.RespondError(w, http.StatusBadRequest, apperrors.ErrMissingUserID.Error(), err.Error())
		return
	}

	filter := model.PositionFilter{
		UserID:    userID,
		Status:    model.PositionStatus(r.URL.Query().Get("status")),
		AssetType: model.AssetType(r.URL.Query().Get("assetType")),
		Symbol:    r.URL.Query().Get("symbol"),
	}

	positions, err := h.matcherService.GetPositions(filter)
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRetrievePositions.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, positions)
}

// GetPosition handles GET requests to retrieve a single position by ID.
//
// Endpoint: GET /api/positions/{uuid}
// Response: 200 OK with Position
// Error: 400 Bad Request if position ID is invalid (validated by middleware)
// Error: 404 Not Found if position not found
// Error: 500 Internal Server Error if retrieval fails
func (h *PositionHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	positionID := chi.URLParam(r, "uuid")

	position, err := h.matcherService.GetPosition(positionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrPositionNotFound) {
			response.RespondError(w, http.StatusNotFound, apperrors.ErrPositionNotFound.Error(), err.Error())
			return
		}
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRetrievePositions.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, position)
}

// Matches handles GET requests to retrieve a position's FIFO match records.
//
// Endpoint: GET /api/positions/{uuid}/matches
// Response: 200 OK with array of PositionMatch
// Error: 400 Bad Request if position ID is invalid (validated by middleware)
// Error: 404 Not Found if position not found
// Error: 500 Internal Server Error if retrieval fails
func (h *PositionHandler) Matches(w http.ResponseWriter, r *http.Request) {
	positionID := chi.URLParam(r, "uuid")

	matches, err := h.matcherService.GetMatches(positionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrPositionNotFound) {
			response.RespondError(w, http.StatusNotFound, apperrors.ErrPositionNotFound.Error(), err.Error())
			return
		}
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRetrieveMatches.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, matches)
}
