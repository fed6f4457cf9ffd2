package validation

import (
	"errors"
	"testing"

	"github.com/brokerledger/reconciliation-backend/internal/api/request"
	"github.com/brokerledger/reconciliation-backend/internal/model"
)

func validEntry() request.TransactionEntry {
	return request.TransactionEntry{
		Symbol:       "AAPL",
		AssetType:    string(model.AssetStock),
		TransCode:    model.CodeBuyToOpen,
		Quantity:     10,
		Price:        150,
		Amount:       -1500,
		IsOpening:    true,
		IsLong:       true,
		ActivityDate: "2024-01-02",
	}
}

// TestValidateIngestTransactions tests batch validation.
//
// WHY: Validation is the only gate between arbitrary client JSON and the
// append-only ledger; anything it lets through is replayed forever.
func TestValidateIngestTransactions(t *testing.T) {
	userID := "550e8400-e29b-41d4-a716-446655440000"

	t.Run("accepts a valid stock batch", func(t *testing.T) {
		req := request.IngestTransactionsRequest{
			UserID:       userID,
			Transactions: []request.TransactionEntry{validEntry()},
		}
		if err := ValidateIngestTransactions(req); err != nil {
			t.Errorf("Expected no error, got %v", err)
		}
	})

	t.Run("rejects a bad user id", func(t *testing.T) {
		req := request.IngestTransactionsRequest{
			UserID:       "not-a-uuid",
			Transactions: []request.TransactionEntry{validEntry()},
		}
		if err := ValidateIngestTransactions(req); !errors.Is(err, ErrInvalidUUID) {
			t.Errorf("Expected ErrInvalidUUID, got %v", err)
		}
	})

	t.Run("rejects an empty batch", func(t *testing.T) {
		req := request.IngestTransactionsRequest{UserID: userID}
		if err := ValidateIngestTransactions(req); !errors.Is(err, ErrEmptySlice) {
			t.Errorf("Expected ErrEmptySlice, got %v", err)
		}
	})

	t.Run("rejects invalid asset type and trans code", func(t *testing.T) {
		entry := validEntry()
		entry.AssetType = "bond"
		entry.TransCode = "XYZ"

		req := request.IngestTransactionsRequest{
			UserID:       userID,
			Transactions: []request.TransactionEntry{entry},
		}

		err := ValidateIngestTransactions(req)
		var verr *Error
		if !errors.As(err, &verr) {
			t.Fatalf("Expected validation Error, got %v", err)
		}
		if _, ok := verr.Fields["transactions[0].assetType"]; !ok {
			t.Error("Expected assetType field error")
		}
		if _, ok := verr.Fields["transactions[0].transCode"]; !ok {
			t.Error("Expected transCode field error")
		}
	})

	t.Run("rejects margin codes on the instrument ledger", func(t *testing.T) {
		entry := validEntry()
		entry.TransCode = model.CodeFuturesMargin

		req := request.IngestTransactionsRequest{
			UserID:       userID,
			Transactions: []request.TransactionEntry{entry},
		}
		if err := ValidateIngestTransactions(req); err == nil {
			t.Error("Expected error for cash-only trans code")
		}
	})

	t.Run("requires option fields on option entries", func(t *testing.T) {
		entry := validEntry()
		entry.AssetType = string(model.AssetOption)

		req := request.IngestTransactionsRequest{
			UserID:       userID,
			Transactions: []request.TransactionEntry{entry},
		}

		err := ValidateIngestTransactions(req)
		var verr *Error
		if !errors.As(err, &verr) {
			t.Fatalf("Expected validation Error, got %v", err)
		}
		for _, field := range []string{
			"transactions[0].strikePrice",
			"transactions[0].expirationDate",
			"transactions[0].optionType",
		} {
			if _, ok := verr.Fields[field]; !ok {
				t.Errorf("Expected %s field error", field)
			}
		}
	})

	t.Run("requires contract month on futures entries", func(t *testing.T) {
		entry := validEntry()
		entry.AssetType = string(model.AssetFutures)

		req := request.IngestTransactionsRequest{
			UserID:       userID,
			Transactions: []request.TransactionEntry{entry},
		}

		err := ValidateIngestTransactions(req)
		var verr *Error
		if !errors.As(err, &verr) {
			t.Fatalf("Expected validation Error, got %v", err)
		}
		if _, ok := verr.Fields["transactions[0].contractMonth"]; !ok {
			t.Error("Expected contractMonth field error")
		}
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		entry := validEntry()
		entry.Quantity = 0

		req := request.IngestTransactionsRequest{
			UserID:       userID,
			Transactions: []request.TransactionEntry{entry},
		}
		if err := ValidateIngestTransactions(req); err == nil {
			t.Error("Expected error for zero quantity")
		}
	})

	t.Run("accepts RFC 3339 activity dates", func(t *testing.T) {
		entry := validEntry()
		entry.ActivityDate = "2024-01-02T14:30:00Z"

		req := request.IngestTransactionsRequest{
			UserID:       userID,
			Transactions: []request.TransactionEntry{entry},
		}
		if err := ValidateIngestTransactions(req); err != nil {
			t.Errorf("Expected no error, got %v", err)
		}
	})
}

// TestValidateIngestCashTransactions tests cash batch validation.
func TestValidateIngestCashTransactions(t *testing.T) {
	userID := "550e8400-e29b-41d4-a716-446655440000"

	t.Run("accepts a valid batch", func(t *testing.T) {
		req := request.IngestCashTransactionsRequest{
			UserID: userID,
			Transactions: []request.CashTransactionEntry{
				{TransactionCode: "ACH", Amount: 10000, ActivityDate: "2024-01-01"},
			},
		}
		if err := ValidateIngestCashTransactions(req); err != nil {
			t.Errorf("Expected no error, got %v", err)
		}
	})

	t.Run("rejects zero amounts", func(t *testing.T) {
		req := request.IngestCashTransactionsRequest{
			UserID: userID,
			Transactions: []request.CashTransactionEntry{
				{TransactionCode: "ACH", Amount: 0, ActivityDate: "2024-01-01"},
			},
		}
		if err := ValidateIngestCashTransactions(req); err == nil {
			t.Error("Expected error for zero amount")
		}
	})
}

// TestValidateDateRange tests range parsing for snapshot queries.
func TestValidateDateRange(t *testing.T) {
	t.Run("accepts an ordered range", func(t *testing.T) {
		start, end, err := ValidateDateRange("2024-01-01", "2024-01-31")
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if !start.Before(end) {
			t.Errorf("Expected start before end, got %v and %v", start, end)
		}
	})

	t.Run("rejects an inverted range", func(t *testing.T) {
		if _, _, err := ValidateDateRange("2024-02-01", "2024-01-01"); !errors.Is(err, ErrInvalidDateRange) {
			t.Errorf("Expected ErrInvalidDateRange, got %v", err)
		}
	})
}
