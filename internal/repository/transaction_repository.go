package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/brokerledger/reconciliation-backend/internal/model"
)

// TransactionRepository provides data access methods for the append-only
// transaction ledger. Rows are never updated except to stamp position_id and
// strategy_id once matched, and never deleted outside a full data wipe.
type TransactionRepository struct {
	db *sql.DB
}

// NewTransactionRepository creates a new TransactionRepository with the provided database connection.
func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const transactionColumns = `
	id, user_id, symbol, underlying_symbol, asset_type, strike_price,
	expiration_date, option_type, contract_month, trans_code, quantity, price,
	amount, fees, is_opening, is_long, activity_date, position_id, strategy_id,
	created_at`

// InsertTransactions persists a batch of imported transactions atomically.
// The ledger is append-only; duplicates on id fail the whole batch.
func (r *TransactionRepository) InsertTransactions(ctx context.Context, transactions []model.Transaction) error {
	if len(transactions) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insertQuery := `
		INSERT INTO "transaction" (` + transactionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, t := range transactions {
		var expiration any
		if !t.ExpirationDate.IsZero() {
			expiration = t.ExpirationDate.Format("2006-01-02")
		}

		_, err := tx.ExecContext(ctx, insertQuery,
			t.ID,
			t.UserID,
			t.Symbol,
			t.UnderlyingSymbol,
			string(t.AssetType),
			t.StrikePrice,
			expiration,
			nullString(string(t.OptionType)),
			nullString(t.ContractMonth),
			t.TransCode,
			t.Quantity,
			t.Price,
			t.Amount,
			t.Fees,
			t.IsOpening,
			t.IsLong,
			t.ActivityDate.Format("2006-01-02"),
			nullString(t.PositionID),
			nullString(t.StrategyID),
			t.CreatedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("failed to insert transaction %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction batch: %w", err)
	}

	return nil
}

// GetTransactionsByUser retrieves all ledger transactions for a user, sorted
// by activity date ascending with ties broken by insertion order. This is the
// canonical replay order for FIFO matching.
func (r *TransactionRepository) GetTransactionsByUser(userID string) ([]model.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM "transaction"
		WHERE user_id = ?
		ORDER BY activity_date ASC, created_at ASC, id ASC
	`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction table: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// GetUserIDs returns the distinct users present in the ledger. Used by the
// nightly snapshot job to enumerate its work.
func (r *TransactionRepository) GetUserIDs() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT user_id FROM "transaction" ORDER BY user_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction table: %w", err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		userIDs = append(userIDs, userID)
	}

	return userIDs, rows.Err()
}

// GetTransactionsByPosition retrieves the ledger rows stamped with the given position ID.
func (r *TransactionRepository) GetTransactionsByPosition(positionID string) ([]model.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM "transaction"
		WHERE position_id = ?
		ORDER BY activity_date ASC, created_at ASC, id ASC
	`

	rows, err := r.db.Query(query, positionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction table: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// StampPositionID records the matched position on a set of ledger rows.
// This is the only mutation the engine performs on the ledger besides
// StampStrategyID.
func (r *TransactionRepository) StampPositionID(ctx context.Context, transactionIDs []string, positionID string) error {
	return r.stamp(ctx, "position_id", transactionIDs, positionID)
}

// StampStrategyID records the detected strategy on a set of ledger rows.
func (r *TransactionRepository) StampStrategyID(ctx context.Context, transactionIDs []string, strategyID string) error {
	return r.stamp(ctx, "strategy_id", transactionIDs, strategyID)
}

func (r *TransactionRepository) stamp(ctx context.Context, column string, transactionIDs []string, value string) error {
	if len(transactionIDs) == 0 {
		return nil
	}

	placeholders := make([]string, len(transactionIDs))
	for i := range placeholders {
		placeholders[i] = "?"
	}

	// column is one of the two constants above, never user input
	query := `UPDATE "transaction" SET ` + column + ` = ? WHERE id IN (` + strings.Join(placeholders, ",") + `)`

	args := make([]any, 0, len(transactionIDs)+1)
	args = append(args, value)
	for _, id := range transactionIDs {
		args = append(args, id)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to stamp %s: %w", column, err)
	}

	return nil
}

func scanTransactions(rows *sql.Rows) ([]model.Transaction, error) {
	transactions := []model.Transaction{}

	for rows.Next() {
		var t model.Transaction
		var activityDateStr, createdAtStr string
		var expirationStr, optionTypeStr, contractMonthStr, positionIDStr, strategyIDStr sql.NullString

		err := rows.Scan(
			&t.ID,
			&t.UserID,
			&t.Symbol,
			&t.UnderlyingSymbol,
			&t.AssetType,
			&t.StrikePrice,
			&expirationStr,
			&optionTypeStr,
			&contractMonthStr,
			&t.TransCode,
			&t.Quantity,
			&t.Price,
			&t.Amount,
			&t.Fees,
			&t.IsOpening,
			&t.IsLong,
			&activityDateStr,
			&positionIDStr,
			&strategyIDStr,
			&createdAtStr,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction table results: %w", err)
		}

		t.ActivityDate, err = ParseTime(activityDateStr)
		if err != nil || t.ActivityDate.IsZero() {
			return nil, fmt.Errorf("failed to parse activity date: %w", err)
		}

		t.CreatedAt, err = ParseTime(createdAtStr)
		if err != nil || t.CreatedAt.IsZero() {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}

		if expirationStr.Valid && expirationStr.String != "" {
			t.ExpirationDate, err = ParseTime(expirationStr.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse expiration date: %w", err)
			}
		}

		if optionTypeStr.Valid {
			t.OptionType = model.OptionType(optionTypeStr.String)
		}
		if contractMonthStr.Valid {
			t.ContractMonth = contractMonthStr.String
		}
		if positionIDStr.Valid {
			t.PositionID = positionIDStr.String
		}
		if strategyIDStr.Valid {
			t.StrategyID = strategyIDStr.String
		}

		transactions = append(transactions, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction table: %w", err)
	}

	return transactions, nil
}

// nullString converts an empty string to a SQL NULL.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
