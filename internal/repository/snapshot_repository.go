package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/brokerledger/reconciliation-backend/internal/apperrors"
	"github.com/brokerledger/reconciliation-backend/internal/model"
)

// SnapshotRepository provides data access methods for the portfolio_snapshot
// table. Rows are keyed by (user_id, snapshot_date); writing the same date
// twice replaces the stored row so last-write-wins is the natural outcome.
type SnapshotRepository struct {
	db *sql.DB
}

// NewSnapshotRepository creates a new SnapshotRepository with the provided database connection.
func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

const snapshotColumns = `
	id, user_id, snapshot_date, portfolio_value, net_cash_flow,
	total_market_value, total_realized_pl, total_unrealized_pl, breakdown,
	stale_symbols, calculated_at`

// UpsertSnapshot inserts or replaces the snapshot for (user, date).
func (r *SnapshotRepository) UpsertSnapshot(ctx context.Context, s *model.PortfolioSnapshot) error {
	breakdown, err := json.Marshal(s.Breakdown)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot breakdown: %w", err)
	}

	var staleSymbols any
	if len(s.StaleSymbols) > 0 {
		data, err := json.Marshal(s.StaleSymbols)
		if err != nil {
			return fmt.Errorf("failed to marshal stale symbols: %w", err)
		}
		staleSymbols = string(data)
	}

	query := `
		INSERT INTO portfolio_snapshot (` + snapshotColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, snapshot_date) DO UPDATE SET
			portfolio_value = excluded.portfolio_value,
			net_cash_flow = excluded.net_cash_flow,
			total_market_value = excluded.total_market_value,
			total_realized_pl = excluded.total_realized_pl,
			total_unrealized_pl = excluded.total_unrealized_pl,
			breakdown = excluded.breakdown,
			stale_symbols = excluded.stale_symbols,
			calculated_at = excluded.calculated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		s.ID,
		s.UserID,
		s.SnapshotDate.Format("2006-01-02"),
		s.PortfolioValue,
		s.NetCashFlow,
		s.TotalMarketValue,
		s.TotalRealizedPL,
		s.TotalUnrealizedPL,
		string(breakdown),
		staleSymbols,
		s.CalculatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert portfolio snapshot: %w", err)
	}

	return nil
}

// GetSnapshot retrieves the snapshot for a user on a specific date.
func (r *SnapshotRepository) GetSnapshot(userID string, date time.Time) (model.PortfolioSnapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM portfolio_snapshot
		WHERE user_id = ? AND snapshot_date = ?
	`

	rows, err := r.db.Query(query, userID, date.Format("2006-01-02"))
	if err != nil {
		return model.PortfolioSnapshot{}, fmt.Errorf("failed to query portfolio_snapshot table: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return model.PortfolioSnapshot{}, fmt.Errorf("error iterating portfolio_snapshot table: %w", err)
		}
		return model.PortfolioSnapshot{}, apperrors.ErrSnapshotNotFound
	}

	return scanSnapshot(rows)
}

// GetSnapshotRange retrieves snapshots for a user within the inclusive date
// range, sorted by date ascending. Used for time-series charting.
func (r *SnapshotRepository) GetSnapshotRange(userID string, startDate, endDate time.Time) ([]model.PortfolioSnapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM portfolio_snapshot
		WHERE user_id = ?
		AND snapshot_date >= ?
		AND snapshot_date <= ?
		ORDER BY snapshot_date ASC
	`

	rows, err := r.db.Query(query, userID, startDate.Format("2006-01-02"), endDate.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolio_snapshot table: %w", err)
	}
	defer rows.Close()

	snapshots := []model.PortfolioSnapshot{}
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating portfolio_snapshot table: %w", err)
	}

	return snapshots, nil
}

func scanSnapshot(rows *sql.Rows) (model.PortfolioSnapshot, error) {
	var s model.PortfolioSnapshot
	var dateStr, calculatedAtStr, breakdownStr string
	var staleSymbolsStr sql.NullString

	err := rows.Scan(
		&s.ID,
		&s.UserID,
		&dateStr,
		&s.PortfolioValue,
		&s.NetCashFlow,
		&s.TotalMarketValue,
		&s.TotalRealizedPL,
		&s.TotalUnrealizedPL,
		&breakdownStr,
		&staleSymbolsStr,
		&calculatedAtStr,
	)
	if err != nil {
		return model.PortfolioSnapshot{}, fmt.Errorf("failed to scan portfolio_snapshot table results: %w", err)
	}

	s.SnapshotDate, err = ParseTime(dateStr)
	if err != nil || s.SnapshotDate.IsZero() {
		return model.PortfolioSnapshot{}, fmt.Errorf("failed to parse snapshot date: %w", err)
	}

	s.CalculatedAt, err = ParseTime(calculatedAtStr)
	if err != nil {
		return model.PortfolioSnapshot{}, fmt.Errorf("failed to parse calculated_at: %w", err)
	}

	if err := json.Unmarshal([]byte(breakdownStr), &s.Breakdown); err != nil {
		return model.PortfolioSnapshot{}, fmt.Errorf("failed to unmarshal snapshot breakdown: %w", err)
	}

	if staleSymbolsStr.Valid && staleSymbolsStr.String != "" {
		if err := json.Unmarshal([]byte(staleSymbolsStr.String), &s.StaleSymbols); err != nil {
			return model.PortfolioSnapshot{}, fmt.Errorf("failed to unmarshal stale symbols: %w", err)
		}
	}

	return s, nil
}
