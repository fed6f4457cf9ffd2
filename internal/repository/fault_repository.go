package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/brokerledger/reconciliation-backend/internal/model"
)

// FaultRepository provides data access methods for the reconciliation_fault
// table, the operator queue for data-integrity faults.
type FaultRepository struct {
	db *sql.DB
}

// NewFaultRepository creates a new FaultRepository with the provided database connection.
func NewFaultRepository(db *sql.DB) *FaultRepository {
	return &FaultRepository{db: db}
}

// UpsertFault records a fault, keyed by the offending transaction so that
// replaying the same ledger never duplicates queue entries.
func (r *FaultRepository) UpsertFault(ctx context.Context, f *model.ReconciliationFault) error {
	query := `
		INSERT INTO reconciliation_fault (
			id, user_id, transaction_id, instrument_key, shortfall, message,
			resolved, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (transaction_id) DO UPDATE SET
			shortfall = excluded.shortfall,
			message = excluded.message
	`

	_, err := r.db.ExecContext(ctx, query,
		f.ID,
		f.UserID,
		f.TransactionID,
		f.InstrumentKey,
		f.Shortfall,
		f.Message,
		f.Resolved,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert reconciliation fault: %w", err)
	}

	return nil
}

// GetFaults retrieves faults for a user, unresolved first, newest within each group.
func (r *FaultRepository) GetFaults(userID string, includeResolved bool) ([]model.ReconciliationFault, error) {
	query := `
		SELECT id, user_id, transaction_id, instrument_key, shortfall, message,
		       resolved, created_at
		FROM reconciliation_fault
		WHERE user_id = ?
	`
	args := []any{userID}

	if !includeResolved {
		query += ` AND resolved = FALSE`
	}

	query += ` ORDER BY resolved ASC, created_at DESC`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reconciliation_fault table: %w", err)
	}
	defer rows.Close()

	faults := []model.ReconciliationFault{}
	for rows.Next() {
		var f model.ReconciliationFault
		var createdAtStr string

		err := rows.Scan(
			&f.ID,
			&f.UserID,
			&f.TransactionID,
			&f.InstrumentKey,
			&f.Shortfall,
			&f.Message,
			&f.Resolved,
			&createdAtStr,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reconciliation_fault table results: %w", err)
		}

		f.CreatedAt, err = ParseTime(createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}

		faults = append(faults, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reconciliation_fault table: %w", err)
	}

	return faults, nil
}

// ResolveFault marks a fault as handled by an operator.
func (r *FaultRepository) ResolveFault(ctx context.Context, faultID string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE reconciliation_fault SET resolved = TRUE WHERE id = ?`, faultID)
	if err != nil {
		return fmt.Errorf("failed to resolve reconciliation fault: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to resolve reconciliation fault: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}
