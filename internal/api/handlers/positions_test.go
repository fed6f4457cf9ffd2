package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/brokerledger/reconciliation-backend/internal/model"
	"github.com/brokerledger/reconciliation-backend/internal/repository"
	"github.com/brokerledger/reconciliation-backend/internal/testutil"
)

func TestPositionHandler_Positions(t *testing.T) {
	t.Run("lists positions for a user", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		matcher := testutil.NewTestMatcherService(t, db)
		handler := NewPositionHandler(matcher)
		transactionRepo := repository.NewTransactionRepository(db)
		userID := testutil.MakeID()

		tx := testutil.NewTransaction("AAPL").ForUser(userID).Opening(10, 150).On("2024-01-02").Build()
		if err := transactionRepo.InsertTransactions(context.Background(), []model.Transaction{tx}); err != nil {
			t.Fatalf("InsertTransactions() returned unexpected error: %v", err)
		}
		if _, err := matcher.ProcessUser(context.Background(), userID); err != nil {
			t.Fatalf("ProcessUser() returned unexpected error: %v", err)
		}

		req := httptest.NewRequest(http.MethodGet, "/api/positions?userId="+userID, nil)
		w := httptest.NewRecorder()

		handler.Positions(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
		}

		var positions []model.Position
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&positions)

		if len(positions) != 1 {
			t.Fatalf("Expected 1 position, got %d", len(positions))
		}
		if positions[0].Symbol != "AAPL" {
			t.Errorf("Expected symbol AAPL, got %s", positions[0].Symbol)
		}
	})

	t.Run("rejects a missing user id", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := NewPositionHandler(testutil.NewTestMatcherService(t, db))

		req := httptest.NewRequest(http.MethodGet, "/api/positions", nil)
		w := httptest.NewRecorder()

		handler.Positions(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", w.Code)
		}
	})

	t.Run("filters by status", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		matcher := testutil.NewTestMatcherService(t, db)
		handler := NewPositionHandler(matcher)
		transactionRepo := repository.NewTransactionRepository(db)
		userID := testutil.MakeID()

		batch := []model.Transaction{
			testutil.NewTransaction("AAPL").ForUser(userID).Opening(10, 150).On("2024-01-02").Build(),
			testutil.NewTransaction("MSFT").ForUser(userID).Opening(5, 400).On("2024-01-02").Build(),
			testutil.NewTransaction("MSFT").ForUser(userID).Closing(5, 410).On("2024-01-10").Build(),
		}
		if err := transactionRepo.InsertTransactions(context.Background(), batch); err != nil {
			t.Fatalf("InsertTransactions() returned unexpected error: %v", err)
		}
		if _, err := matcher.ProcessUser(context.Background(), userID); err != nil {
			t.Fatalf("ProcessUser() returned unexpected error: %v", err)
		}

		req := httptest.NewRequest(http.MethodGet, "/api/positions?userId="+userID+"&status=open", nil)
		w := httptest.NewRecorder()

		handler.Positions(w, req)

		var positions []model.Position
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&positions)

		if len(positions) != 1 {
			t.Fatalf("Expected 1 open position, got %d", len(positions))
		}
		if positions[0].Symbol != "AAPL" {
			t.Errorf("Expected the open AAPL position, got %s", positions[0].Symbol)
		}
	})
}
