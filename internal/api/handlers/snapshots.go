package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/brokerledger/reconciliation-backend/internal/api/request"
	"github.com/brokerledger/reconciliation-backend/internal/api/response"
	"github.com/brokerledger/reconciliation-backend/internal/apperrors"
	"github.com/brokerledger/reconciliation-backend/internal/service"
	"github.com/brokerledger/reconciliation-backend/internal/validation"
)

// SnapshotHandler handles HTTP requests for portfolio valuation snapshots.
type SnapshotHandler struct {
	snapshotService *service.SnapshotService
}

// NewSnapshotHandler creates a new SnapshotHandler with the provided service dependency.
func NewSnapshotHandler(snapshotService *service.SnapshotService) *SnapshotHandler {
	return &SnapshotHandler{
		snapshotService: snapshotService,
	}
}

// Snapshots handles GET requests to retrieve stored snapshots for a date range.
//
// Endpoint: GET /api/snapshots?userId={uuid}&start=YYYY-MM-DD&end=YYYY-MM-DD
// Response: 200 OK with array of PortfolioSnapshot
// Error: 400 Bad Request if userId or the range is invalid
// Error: 500 Internal Server Error if retrieval fails
func (h *SnapshotHandler) Snapshots(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if err := validation.ValidateUUID(userID); err != nil {
		response.RespondError(w, http.StatusBadRequest, apperrors.ErrMissingUserID.Error(), err.Error())
		return
	}

	start, end, err := validation.ValidateDateRange(r.URL.Query().Get("start"), r.URL.Query().Get("end"))
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, apperrors.ErrInvalidDateRange.Error(), err.Error())
		return
	}

	snapshots, err := h.snapshotService.GetSnapshotRange(userID, start, end)
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRetrieveSnapshots.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, snapshots)
}

// Generate handles POST requests to compute and store a snapshot for a user
// on a date. Re-running for the same date overwrites the stored row.
//
// Endpoint: POST /api/snapshots/generate
// Request Body: GenerateSnapshotRequest (userId, optional date)
// Response: 201 Created with PortfolioSnapshot
// Error: 400 Bad Request if validation fails or request body is invalid
// Error: 500 Internal Server Error if generation fails
func (h *SnapshotHandler) Generate(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.GenerateSnapshotRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateGenerateSnapshot(req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	date := time.Now().UTC().Truncate(24 * time.Hour)
	if req.Date != "" {
		date, _ = time.Parse("2006-01-02", req.Date)
	}

	snapshot, err := h.snapshotService.GenerateSnapshot(r.Context(), req.UserID, date)
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToGenerateSnapshot.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusCreated, snapshot)
}

// GetSnapshot handles GET requests to retrieve the snapshot for a single date.
//
// Endpoint: GET /api/snapshots/{date}?userId={uuid}
// Response: 200 OK with PortfolioSnapshot
// Error: 400 Bad Request if userId or the date is invalid
// Error: 404 Not Found if no snapshot exists for that date
// Error: 500 Internal Server Error if retrieval fails
func (h *SnapshotHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if err := validation.ValidateUUID(userID); err != nil {
		response.RespondError(w, http.StatusBadRequest, apperrors.ErrMissingUserID.Error(), err.Error())
		return
	}

	date, err := time.Parse("2006-01-02", chi.URLParam(r, "date"))
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, apperrors.ErrInvalidDate.Error(), err.Error())
		return
	}

	snapshot, err := h.snapshotService.GetSnapshot(userID, date)
	if err != nil {
		if errors.Is(err, apperrors.ErrSnapshotNotFound) {
			response.RespondError(w, http.StatusNotFound, apperrors.ErrSnapshotNotFound.Error(), err.Error())
			return
		}
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRetrieveSnapshots.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, snapshot)
}
