package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/brokerledger/reconciliation-backend/internal/apperrors"
	"github.com/brokerledger/reconciliation-backend/internal/model"
)

// PositionRepository provides data access methods for the position and
// position_match tables. Matches are keyed by their (opening, closing)
// transaction pair so that re-matching the same ledger is idempotent.
type PositionRepository struct {
	db *sql.DB
}

// NewPositionRepository creates a new PositionRepository with the provided database connection.
func NewPositionRepository(db *sql.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

const positionColumns = `
	id, user_id, symbol, underlying_symbol, asset_type, strike_price,
	expiration_date, option_type, contract_month, side, opening_quantity,
	current_quantity, average_opening_price, total_cost_basis,
	total_closing_amount, realized_pl, unrealized_pl, status, strategy_id,
	needs_reconciliation, opening_transaction_ids, closing_transaction_ids,
	opened_at, closed_at, created_at, updated_at`

// UpsertPosition inserts or fully replaces a position row. The lot matcher
// recomputes position state from the ledger, so upsert-by-id keeps replays
// idempotent.
func (r *PositionRepository) UpsertPosition(ctx context.Context, p *model.Position) error {
	openingIDs, err := json.Marshal(p.OpeningTransactionIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal opening transaction ids: %w", err)
	}
	closingIDs, err := json.Marshal(p.ClosingTransactionIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal closing transaction ids: %w", err)
	}

	var expiration, closedAt any
	if !p.ExpirationDate.IsZero() {
		expiration = p.ExpirationDate.Format("2006-01-02")
	}
	if !p.ClosedAt.IsZero() {
		closedAt = p.ClosedAt.Format("2006-01-02")
	}

	now := time.Now().UTC().Format(time.RFC3339)

	query := `
		INSERT INTO position (` + positionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			side = excluded.side,
			opening_quantity = excluded.opening_quantity,
			current_quantity = excluded.current_quantity,
			average_opening_price = excluded.average_opening_price,
			total_cost_basis = excluded.total_cost_basis,
			total_closing_amount = excluded.total_closing_amount,
			realized_pl = excluded.realized_pl,
			unrealized_pl = excluded.unrealized_pl,
			status = excluded.status,
			strategy_id = excluded.strategy_id,
			needs_reconciliation = excluded.needs_reconciliation,
			opening_transaction_ids = excluded.opening_transaction_ids,
			closing_transaction_ids = excluded.closing_transaction_ids,
			opened_at = excluded.opened_at,
			closed_at = excluded.closed_at,
			updated_at = excluded.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		p.ID,
		p.UserID,
		p.Symbol,
		p.UnderlyingSymbol,
		string(p.AssetType),
		p.StrikePrice,
		expiration,
		nullString(string(p.OptionType)),
		nullString(p.ContractMonth),
		string(p.Side),
		p.OpeningQuantity,
		p.CurrentQuantity,
		p.AverageOpeningPrice,
		p.TotalCostBasis,
		p.TotalClosingAmount,
		p.RealizedPL,
		p.UnrealizedPL,
		string(p.Status),
		nullString(p.StrategyID),
		p.NeedsReconciliation,
		string(openingIDs),
		string(closingIDs),
		p.OpenedAt.Format("2006-01-02"),
		closedAt,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert position %s: %w", p.ID, err)
	}

	return nil
}

// GetPositions retrieves positions matching the filter, sorted by id so that
// downstream aggregation is deterministic.
func (r *PositionRepository) GetPositions(filter model.PositionFilter) ([]model.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM position
		WHERE user_id = ?
	`
	args := []any{filter.UserID}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.AssetType != "" {
		query += ` AND asset_type = ?`
		args = append(args, string(filter.AssetType))
	}
	if filter.Symbol != "" {
		query += ` AND symbol = ?`
		args = append(args, filter.Symbol)
	}

	query += ` ORDER BY id ASC`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query position table: %w", err)
	}
	defer rows.Close()

	positions := []model.Position{}
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating position table: %w", err)
	}

	return positions, nil
}

// GetPosition retrieves a single position by its ID.
func (r *PositionRepository) GetPosition(positionID string) (model.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM position
		WHERE id = ?
	`

	rows, err := r.db.Query(query, positionID)
	if err != nil {
		return model.Position{}, fmt.Errorf("failed to query position table: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return model.Position{}, fmt.Errorf("error iterating position table: %w", err)
		}
		return model.Position{}, apperrors.ErrPositionNotFound
	}

	return scanPosition(rows)
}

// GetPositionsByStrategy retrieves all position legs stamped with the given strategy ID, sorted by id.
func (r *PositionRepository) GetPositionsByStrategy(strategyID string) ([]model.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM position
		WHERE strategy_id = ?
		ORDER BY id ASC
	`

	rows, err := r.db.Query(query, strategyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query position table: %w", err)
	}
	defer rows.Close()

	positions := []model.Position{}
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating position table: %w", err)
	}

	return positions, nil
}

// StampStrategyID records the detected strategy on a set of position legs.
func (r *PositionRepository) StampStrategyID(ctx context.Context, positionIDs []string, strategyID string) error {
	if len(positionIDs) == 0 {
		return nil
	}

	placeholders := make([]string, len(positionIDs))
	for i := range placeholders {
		placeholders[i] = "?"
	}

	query := `UPDATE position SET strategy_id = ?, updated_at = ? WHERE id IN (` + strings.Join(placeholders, ",") + `)`

	args := make([]any, 0, len(positionIDs)+2)
	args = append(args, strategyID, time.Now().UTC().Format(time.RFC3339))
	for _, id := range positionIDs {
		args = append(args, id)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to stamp strategy id: %w", err)
	}

	return nil
}

// UpdateUnrealizedPL stores the latest mark-to-market valuation on a position
// so later snapshots can degrade to it when no live quote resolves.
func (r *PositionRepository) UpdateUnrealizedPL(ctx context.Context, positionID string, unrealizedPL float64) error {
	query := `UPDATE position SET unrealized_pl = ?, updated_at = ? WHERE id = ?`

	_, err := r.db.ExecContext(ctx, query, unrealizedPL, time.Now().UTC().Format(time.RFC3339), positionID)
	if err != nil {
		return fmt.Errorf("failed to update unrealized P&L for position %s: %w", positionID, err)
	}

	return nil
}

// UpsertMatch inserts a FIFO match row, or leaves the existing row untouched
// when the same (opening, closing) pair was already recorded. Matches are an
// immutable audit trail; the pair key is what makes re-matching produce zero
// new rows.
func (r *PositionRepository) UpsertMatch(ctx context.Context, m *model.PositionMatch) error {
	query := `
		INSERT INTO position_match (
			id, position_id, opening_transaction_id, closing_transaction_id,
			matched_quantity, opening_price, closing_price, realized_pl, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (opening_transaction_id, closing_transaction_id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query,
		m.ID,
		m.PositionID,
		m.OpeningTransactionID,
		m.ClosingTransactionID,
		m.MatchedQuantity,
		m.OpeningPrice,
		m.ClosingPrice,
		m.RealizedPL,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert position match: %w", err)
	}

	return nil
}

// GetMatchesByPosition retrieves the FIFO audit trail for a position, oldest first.
func (r *PositionRepository) GetMatchesByPosition(positionID string) ([]model.PositionMatch, error) {
	query := `
		SELECT id, position_id, opening_transaction_id, closing_transaction_id,
		       matched_quantity, opening_price, closing_price, realized_pl, created_at
		FROM position_match
		WHERE position_id = ?
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.Query(query, positionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query position_match table: %w", err)
	}
	defer rows.Close()

	matches := []model.PositionMatch{}
	for rows.Next() {
		var m model.PositionMatch
		var createdAtStr string

		err := rows.Scan(
			&m.ID,
			&m.PositionID,
			&m.OpeningTransactionID,
			&m.ClosingTransactionID,
			&m.MatchedQuantity,
			&m.OpeningPrice,
			&m.ClosingPrice,
			&m.RealizedPL,
			&createdAtStr,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position_match table results: %w", err)
		}

		m.CreatedAt, err = ParseTime(createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}

		matches = append(matches, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating position_match table: %w", err)
	}

	return matches, nil
}

// CountMatches returns the total number of match rows for a user's positions.
// Used by replay tests and maintenance tooling to verify idempotence.
func (r *PositionRepository) CountMatches(userID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM position_match pm
		JOIN position p ON pm.position_id = p.id
		WHERE p.user_id = ?
	`

	var count int
	if err := r.db.QueryRow(query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count position matches: %w", err)
	}

	return count, nil
}

func scanPosition(rows *sql.Rows) (model.Position, error) {
	var p model.Position
	var openedAtStr, createdAtStr, updatedAtStr string
	var expirationStr, optionTypeStr, contractMonthStr, strategyIDStr, closedAtStr sql.NullString
	var openingIDs, closingIDs string

	err := rows.Scan(
		&p.ID,
		&p.UserID,
		&p.Symbol,
		&p.UnderlyingSymbol,
		&p.AssetType,
		&p.StrikePrice,
		&expirationStr,
		&optionTypeStr,
		&contractMonthStr,
		&p.Side,
		&p.OpeningQuantity,
		&p.CurrentQuantity,
		&p.AverageOpeningPrice,
		&p.TotalCostBasis,
		&p.TotalClosingAmount,
		&p.RealizedPL,
		&p.UnrealizedPL,
		&p.Status,
		&strategyIDStr,
		&p.NeedsReconciliation,
		&openingIDs,
		&closingIDs,
		&openedAtStr,
		&closedAtStr,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return model.Position{}, fmt.Errorf("failed to scan position table results: %w", err)
	}

	p.OpenedAt, err = ParseTime(openedAtStr)
	if err != nil || p.OpenedAt.IsZero() {
		return model.Position{}, fmt.Errorf("failed to parse opened_at: %w", err)
	}

	p.CreatedAt, err = ParseTime(createdAtStr)
	if err != nil {
		return model.Position{}, fmt.Errorf("failed to parse created_at: %w", err)
	}

	p.UpdatedAt, err = ParseTime(updatedAtStr)
	if err != nil {
		return model.Position{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	if closedAtStr.Valid && closedAtStr.String != "" {
		p.ClosedAt, err = ParseTime(closedAtStr.String)
		if err != nil {
			return model.Position{}, fmt.Errorf("failed to parse closed_at: %w", err)
		}
	}

	if expirationStr.Valid && expirationStr.String != "" {
		p.ExpirationDate, err = ParseTime(expirationStr.String)
		if err != nil {
			return model.Position{}, fmt.Errorf("failed to parse expiration date: %w", err)
		}
	}

	if optionTypeStr.Valid {
		p.OptionType = model.OptionType(optionTypeStr.String)
	}
	if contractMonthStr.Valid {
		p.ContractMonth = contractMonthStr.String
	}
	if strategyIDStr.Valid {
		p.StrategyID = strategyIDStr.String
	}

	if err := json.Unmarshal([]byte(openingIDs), &p.OpeningTransactionIDs); err != nil {
		return model.Position{}, fmt.Errorf("failed to unmarshal opening transaction ids: %w", err)
	}
	if err := json.Unmarshal([]byte(closingIDs), &p.ClosingTransactionIDs); err != nil {
		return model.Position{}, fmt.Errorf("failed to unmarshal closing transaction ids: %w", err)
	}

	return p, nil
}
