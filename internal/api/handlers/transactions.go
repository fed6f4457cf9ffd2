package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/brokerledger/reconciliation-backend/internal/api/request"
	"github.com/brokerledger/reconciliation-backend/internal/api/response"
	"github.com/brokerledger/reconciliation-backend/internal/apperrors"
	"github.com/brokerledger/reconciliation-backend/internal/model"
	"github.com/brokerledger/reconciliation-backend/internal/service"
	"github.com/brokerledger/reconciliation-backend/internal/validation"
)

// TransactionHandler handles HTTP requests for ledger ingestion. It serves as
// the HTTP layer adapter, parsing requests and delegating the reconciliation
// pipeline to the transactionService.
type TransactionHandler struct {
	transactionService *service.TransactionService
}

// NewTransactionHandler creates a new TransactionHandler with the provided service dependency.
func NewTransactionHandler(transactionService *service.TransactionService) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
	}
}

// Ingest handles POST requests to import a batch of broker fills and run the
// reconciliation pipeline (lot matching, then strategy detection).
//
// Endpoint: POST /api/transactions
// Request Body: IngestTransactionsRequest (userId, transactions)
// Response: 201 Created with IngestReport (accepted counts plus any faults)
// Error: 400 Bad Request if validation fails or request body is invalid
// Error: 500 Internal Server Error if persistence or matching fails
func (h *TransactionHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.IngestTransactionsRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateIngestTransactions(req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	transactions := make([]model.Transaction, len(req.Transactions))
	for i, entry := range req.Transactions {
		transactions[i] = toTransaction(entry)
	}

	report, err := h.transactionService.IngestTransactions(r.Context(), req.UserID, transactions)
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToImportTransactions.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusCreated, report)
}

// IngestCash handles POST requests to import a batch of cash ledger postings.
//
// Endpoint: POST /api/cash-transactions
// Request Body: IngestCashTransactionsRequest (userId, transactions)
// Response: 201 Created with the accepted count
// Error: 400 Bad Request if validation fails or request body is invalid
// Error: 500 Internal Server Error if persistence fails
func (h *TransactionHandler) IngestCash(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.IngestCashTransactionsRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateIngestCashTransactions(req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	cashTransactions := make([]model.CashTransaction, len(req.Transactions))
	for i, entry := range req.Transactions {
		activityDate, _ := validation.ParseDate(entry.ActivityDate)
		cashTransactions[i] = model.CashTransaction{
			ID:              entry.ID,
			TransactionCode: entry.TransactionCode,
			Amount:          entry.Amount,
			ActivityDate:    activityDate,
		}
	}

	accepted, err := h.transactionService.IngestCashTransactions(r.Context(), req.UserID, cashTransactions)
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToImportTransactions.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusCreated, map[string]int{"accepted": accepted})
}

// TransactionsPerPosition handles GET requests to retrieve the ledger rows
// behind a position.
//
// Endpoint: GET /api/positions/{uuid}/transactions
// Response: 200 OK with array of Transaction
// Error: 400 Bad Request if position ID is invalid (validated by middleware)
// Error: 500 Internal Server Error if retrieval fails
func (h *TransactionHandler) TransactionsPerPosition(w http.ResponseWriter, r *http.Request) {
	positionID := chi.URLParam(r, "uuid")

	transactions, err := h.transactionService.GetTransactionsByPosition(positionID)
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRetrievePositions.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, transactions)
}

// toTransaction maps a validated ingest entry onto the ledger model. Parse
// errors are impossible here; validation has already checked every date.
func toTransaction(entry request.TransactionEntry) model.Transaction {
	activityDate, _ := validation.ParseDate(entry.ActivityDate)

	t := model.Transaction{
		ID:               entry.ID,
		Symbol:           entry.Symbol,
		UnderlyingSymbol: entry.UnderlyingSymbol,
		AssetType:        model.AssetType(entry.AssetType),
		TransCode:        entry.TransCode,
		Quantity:         entry.Quantity,
		Price:            entry.Price,
		Amount:           entry.Amount,
		Fees:             entry.Fees,
		IsOpening:        entry.IsOpening,
		IsLong:           entry.IsLong,
		ActivityDate:     activityDate,
	}
	if t.UnderlyingSymbol == "" {
		t.UnderlyingSymbol = t.Symbol
	}

	if entry.StrikePrice != nil {
		t.StrikePrice = *entry.StrikePrice
	}
	if entry.ExpirationDate != nil {
		expiration, _ := time.Parse("2006-01-02", *entry.ExpirationDate)
		t.ExpirationDate = expiration
	}
	if entry.OptionType != nil {
		t.OptionType = model.OptionType(*entry.OptionType)
	}
	if entry.ContractMonth != nil {
		t.ContractMonth = *entry.ContractMonth
	}

	return t
}
