package testutil

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite" // Test Package
)

// SetupTestDB creates an in-memory SQLite database for testing.
// The database is automatically cleaned up when the test completes.
//
// Example usage:
//
//	func TestSomething(t *testing.T) {
//	    db := testutil.SetupTestDB(t)
//	    // db is ready to use with schema created
//	}
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// In-memory database (destroyed when connection closes)
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to ping test database: %v", err)
	}

	// Configure SQLite for testing
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = MEMORY", // Faster for tests
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			t.Fatalf("Failed to set pragma: %v", err)
		}
	}

	// Create schema
	if err := createTestSchema(db); err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}

	// Cleanup when test ends
	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// createTestSchema creates all database tables for testing.
// Schema is synchronized with the goose migrations.
func createTestSchema(db *sql.DB) error {
	schema := `
		-- Append-only ledger of broker fills
		CREATE TABLE "transaction" (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			user_id VARCHAR(36) NOT NULL,
			symbol VARCHAR(32) NOT NULL,
			underlying_symbol VARCHAR(32) NOT NULL,
			asset_type VARCHAR(10) NOT NULL,
			strike_price REAL NOT NULL DEFAULT 0,
			expiration_date DATE,
			option_type VARCHAR(4),
			contract_month VARCHAR(10),
			trans_code VARCHAR(24) NOT NULL,
			quantity REAL NOT NULL,
			price REAL NOT NULL,
			amount REAL NOT NULL,
			fees REAL NOT NULL DEFAULT 0,
			is_opening BOOLEAN NOT NULL,
			is_long BOOLEAN NOT NULL,
			activity_date DATE NOT NULL,
			position_id VARCHAR(36),
			strategy_id VARCHAR(36),
			created_at TIMESTAMP NOT NULL
		);

		CREATE TABLE cash_transaction (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			user_id VARCHAR(36) NOT NULL,
			transaction_code VARCHAR(24) NOT NULL,
			amount REAL NOT NULL,
			activity_date DATE NOT NULL,
			created_at TIMESTAMP NOT NULL
		);

		CREATE TABLE position (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			user_id VARCHAR(36) NOT NULL,
			symbol VARCHAR(32) NOT NULL,
			underlying_symbol VARCHAR(32) NOT NULL,
			asset_type VARCHAR(10) NOT NULL,
			strike_price REAL NOT NULL DEFAULT 0,
			expiration_date DATE,
			option_type VARCHAR(4),
			contract_month VARCHAR(10),
			side VARCHAR(5) NOT NULL,
			opening_quantity REAL NOT NULL,
			current_quantity REAL NOT NULL,
			average_opening_price REAL NOT NULL,
			total_cost_basis REAL NOT NULL,
			total_closing_amount REAL NOT NULL DEFAULT 0,
			realized_pl REAL NOT NULL DEFAULT 0,
			unrealized_pl REAL NOT NULL DEFAULT 0,
			status VARCHAR(10) NOT NULL,
			strategy_id VARCHAR(36),
			needs_reconciliation BOOLEAN NOT NULL DEFAULT FALSE,
			opening_transaction_ids TEXT NOT NULL,
			closing_transaction_ids TEXT NOT NULL,
			opened_at DATE NOT NULL,
			closed_at DATE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);

		-- Immutable FIFO audit trail
		CREATE TABLE position_match (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			position_id VARCHAR(36) NOT NULL REFERENCES position(id) ON DELETE CASCADE,
			opening_transaction_id VARCHAR(36) NOT NULL,
			closing_transaction_id VARCHAR(36) NOT NULL,
			matched_quantity REAL NOT NULL,
			opening_price REAL NOT NULL,
			closing_price REAL NOT NULL,
			realized_pl REAL NOT NULL,
			created_at TIMESTAMP NOT NULL,
			UNIQUE (opening_transaction_id, closing_transaction_id)
		);

		CREATE TABLE strategy (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			user_id VARCHAR(36) NOT NULL,
			underlying_symbol VARCHAR(32) NOT NULL,
			strategy_type VARCHAR(20) NOT NULL,
			variant VARCHAR(20),
			legs TEXT NOT NULL,
			total_opening_cost REAL NOT NULL DEFAULT 0,
			total_closing_proceeds REAL NOT NULL DEFAULT 0,
			realized_pl REAL NOT NULL DEFAULT 0,
			unrealized_pl REAL NOT NULL DEFAULT 0,
			status VARCHAR(10) NOT NULL,
			max_risk REAL,
			max_profit REAL,
			breakeven_points TEXT,
			confidence REAL NOT NULL DEFAULT 1,
			opened_at DATE NOT NULL,
			closed_at DATE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);

		CREATE TABLE portfolio_snapshot (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			user_id VARCHAR(36) NOT NULL,
			snapshot_date DATE NOT NULL,
			portfolio_value REAL NOT NULL,
			net_cash_flow REAL NOT NULL,
			total_market_value REAL NOT NULL,
			total_realized_pl REAL NOT NULL,
			total_unrealized_pl REAL NOT NULL,
			breakdown TEXT NOT NULL,
			stale_symbols TEXT,
			calculated_at TIMESTAMP NOT NULL,
			UNIQUE (user_id, snapshot_date)
		);

		CREATE TABLE reconciliation_fault (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			user_id VARCHAR(36) NOT NULL,
			transaction_id VARCHAR(36) NOT NULL UNIQUE,
			instrument_key TEXT NOT NULL,
			shortfall REAL NOT NULL,
			message TEXT NOT NULL,
			resolved BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL
		);

		CREATE INDEX idx_transaction_user ON "transaction"(user_id, activity_date);
		CREATE INDEX idx_transaction_position ON "transaction"(position_id);
		CREATE INDEX idx_cash_transaction_user ON cash_transaction(user_id, activity_date);
		CREATE INDEX idx_position_user_status ON position(user_id, status);
		CREATE INDEX idx_position_strategy ON position(strategy_id);
		CREATE INDEX idx_position_match_position ON position_match(position_id);
		CREATE INDEX idx_strategy_user_status ON strategy(user_id, status);
		CREATE INDEX idx_fault_user ON reconciliation_fault(user_id, resolved);
	`

	_, err := db.Exec(schema)
	return err
}

// CleanDatabase truncates all tables in dependency order.
// Useful for reusing the same database across multiple tests.
func CleanDatabase(t *testing.T, db *sql.DB) {
	t.Helper()

	// Order matters: delete children before parents due to foreign keys
	tables := []string{
		"position_match",
		"reconciliation_fault",
		"portfolio_snapshot",
		"strategy",
		"position",
		"cash_transaction",
		`"transaction"`,
	}

	for _, table := range tables {
		query := "DELETE FROM " + table
		if _, err := db.Exec(query); err != nil {
			t.Fatalf("Failed to clean table %s: %v", table, err)
		}
	}
}

// CountRows returns the number of rows in a table.
// Useful for assertions in tests.
func CountRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()

	var count int
	query := "SELECT COUNT(*) FROM " + table
	err := db.QueryRow(query).Scan(&count)
	if err != nil {
		t.Fatalf("Failed to count rows in %s: %v", table, err)
	}

	return count
}

// AssertRowCount asserts that a table has the expected number of rows.
func AssertRowCount(t *testing.T, db *sql.DB, table string, expected int) {
	t.Helper()

	actual := CountRows(t, db, table)
	if actual != expected {
		t.Errorf("Expected %d rows in %s, got %d", expected, table, actual)
	}
}
