package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/brokerledger/reconciliation-backend/internal/model"
)

// CashRepository provides data access methods for the cash ledger table.
type CashRepository struct {
	db *sql.DB
}

// NewCashRepository creates a new CashRepository with the provided database connection.
func NewCashRepository(db *sql.DB) *CashRepository {
	return &CashRepository{db: db}
}

// InsertCashTransactions persists a batch of cash ledger entries atomically.
func (r *CashRepository) InsertCashTransactions(ctx context.Context, entries []model.CashTransaction) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insertQuery := `
		INSERT INTO cash_transaction (id, user_id, transaction_code, amount, activity_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	for _, entry := range entries {
		_, err := tx.ExecContext(ctx, insertQuery,
			entry.ID,
			entry.UserID,
			entry.TransactionCode,
			entry.Amount,
			entry.ActivityDate.Format("2006-01-02"),
			entry.CreatedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("failed to insert cash transaction %s: %w", entry.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cash transaction batch: %w", err)
	}

	return nil
}

// NetCashFlow sums all cash ledger entries for a user on or before the given
// date, excluding the provided transaction codes. Margin postings are excluded
// by the snapshotter because they are not owner's equity movements.
func (r *CashRepository) NetCashFlow(userID string, through time.Time, excludedCodes []string) (float64, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM cash_transaction
		WHERE user_id = ?
		AND activity_date <= ?
	`
	args := []any{userID, through.Format("2006-01-02")}

	if len(excludedCodes) > 0 {
		placeholders := make([]string, len(excludedCodes))
		for i := range placeholders {
			placeholders[i] = "?"
		}
		query += ` AND transaction_code NOT IN (` + strings.Join(placeholders, ",") + `)`
		for _, code := range excludedCodes {
			args = append(args, code)
		}
	}

	var total float64
	if err := r.db.QueryRow(query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to query cash_transaction table: %w", err)
	}

	return total, nil
}
