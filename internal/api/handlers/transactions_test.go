package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/brokerledger/reconciliation-backend/internal/service"
	"github.com/brokerledger/reconciliation-backend/internal/testutil"
)

func ingestBody(t *testing.T, userID string) *bytes.Buffer {
	t.Helper()

	body := map[string]interface{}{
		"userId": userID,
		"transactions": []map[string]interface{}{
			{
				"symbol":       "AAPL",
				"assetType":    "stock",
				"transCode":    "BTO",
				"quantity":     10,
				"price":        150,
				"amount":       -1500,
				"isOpening":    true,
				"isLong":       true,
				"activityDate": "2024-01-02",
			},
			{
				"symbol":       "AAPL",
				"assetType":    "stock",
				"transCode":    "STC",
				"quantity":     10,
				"price":        160,
				"amount":       1600,
				"isOpening":    false,
				"isLong":       true,
				"activityDate": "2024-01-10",
			},
		},
	}

	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(body); err != nil {
		t.Fatalf("Failed to encode request body: %v", err)
	}
	return buf
}

func TestTransactionHandler_Ingest(t *testing.T) {
	t.Run("accepts a batch and returns the pipeline report", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := NewTransactionHandler(testutil.NewTestTransactionService(t, db))
		userID := testutil.MakeID()

		req := httptest.NewRequest(http.MethodPost, "/api/transactions", ingestBody(t, userID))
		w := httptest.NewRecorder()

		handler.Ingest(w, req)

		if w.Code != http.StatusCreated {
			t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
		}

		var report service.IngestReport
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&report)

		if report.Accepted != 2 {
			t.Errorf("Expected 2 accepted, got %d", report.Accepted)
		}
		if report.PositionsUpserted != 1 {
			t.Errorf("Expected 1 position, got %d", report.PositionsUpserted)
		}
		if report.MatchesEmitted != 1 {
			t.Errorf("Expected 1 match, got %d", report.MatchesEmitted)
		}

		testutil.AssertRowCount(t, db, `"transaction"`, 2)
		testutil.AssertRowCount(t, db, "position", 1)
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := NewTransactionHandler(testutil.NewTestTransactionService(t, db))

		req := httptest.NewRequest(http.MethodPost, "/api/transactions", bytes.NewBufferString("{"))
		w := httptest.NewRecorder()

		handler.Ingest(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", w.Code)
		}
	})

	t.Run("rejects a batch that fails validation", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := NewTransactionHandler(testutil.NewTestTransactionService(t, db))

		body := bytes.NewBufferString(`{"userId":"not-a-uuid","transactions":[]}`)
		req := httptest.NewRequest(http.MethodPost, "/api/transactions", body)
		w := httptest.NewRecorder()

		handler.Ingest(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", w.Code)
		}
		testutil.AssertRowCount(t, db, `"transaction"`, 0)
	})
}

func TestTransactionHandler_IngestCash(t *testing.T) {
	t.Run("accepts a cash batch", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := NewTransactionHandler(testutil.NewTestTransactionService(t, db))
		userID := testutil.MakeID()

		body := map[string]interface{}{
			"userId": userID,
			"transactions": []map[string]interface{}{
				{"transactionCode": "ACH", "amount": 10000, "activityDate": "2024-01-01"},
			},
		}
		buf := &bytes.Buffer{}
		//nolint:errcheck // Test setup
		json.NewEncoder(buf).Encode(body)

		req := httptest.NewRequest(http.MethodPost, "/api/cash-transactions", buf)
		w := httptest.NewRecorder()

		handler.IngestCash(w, req)

		if w.Code != http.StatusCreated {
			t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
		}
		testutil.AssertRowCount(t, db, "cash_transaction", 1)
	})
}
