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

// StrategyHandler handles HTTP requests for detected option strategies.
type StrategyHandler struct {
	strategyService *service.StrategyService
}

// NewStrategyHandler creates a new StrategyHandler with the provided service dependency.
func NewStrategyHandler(strategyService *service.StrategyService) *StrategyHandler {
	return &StrategyHandler{
		strategyService: strategyService,
	}
}

// Strategies handles GET requests to list a user's detected strategies.
//
// Endpoint: GET /api/strategies?userId={uuid}&status=&underlying=
// Response: 200 OK with array of Strategy
// Error: 400 Bad Request if userId is missing or invalid
// Error: 500 Internal Server Error if retrieval fails
func (h *StrategyHandler) Strategies(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if err := validation.ValidateUUID(userID); err != nil {
		response.RespondError(w, http.StatusBadRequest, apperrors.ErrMissingUserID.Error(), err.Error())
		return
	}

	filter := model.StrategyFilter{
		UserID:           userID,
		Status:           model.StrategyStatus(r.URL.Query().Get("status")),
		UnderlyingSymbol: r.URL.Query().Get("underlying"),
	}

	strategies, err := h.strategyService.GetStrategies(filter)
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRetrieveStrategies.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, strategies)
}

// GetStrategy handles GET requests to retrieve a single strategy by ID.
//
// Endpoint: GET /api/strategies/{uuid}
// Response: 200 OK with Strategy
// Error: 400 Bad Request if strategy ID is invalid (validated by middleware)
// Error: 404 Not Found if strategy not found
// Error: 500 Internal Server Error if retrieval fails
func (h *StrategyHandler) GetStrategy(w http.ResponseWriter, r *http.Request) {
	strategyID := chi.URLParam(r, "uuid")

	strategy, err := h.strategyService.GetStrategy(strategyID)
	if err != nil {
		if errors.Is(err, apperrors.ErrStrategyNotFound) {
			response.RespondError(w, http.StatusNotFound, apperrors.ErrStrategyNotFound.Error(), err.Error())
			return
		}
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRetrieveStrategies.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, strategy)
}

// RecomputeAll handles POST requests to refresh every strategy's aggregates
// for a user from live position state. Intended as a maintenance/repair
// operation after manual data fixes.
//
// Endpoint: POST /api/maintenance/recompute-strategies?userId={uuid}
// Response: 200 OK with the number of strategies recomputed
// Error: 400 Bad Request if userId is missing or invalid
// Error: 500 Internal Server Error if the sweep fails
func (h *StrategyHandler) RecomputeAll(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if err := validation.ValidateUUID(userID); err != nil {
		response.RespondError(w, http.StatusBadRequest, apperrors.ErrMissingUserID.Error(), err.Error())
		return
	}

	recomputed, err := h.strategyService.RecomputeAllStrategies(r.Context(), userID)
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRecomputeStrategy.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, map[string]int{"recomputed": recomputed})
}
