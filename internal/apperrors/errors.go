package apperrors

import "errors"

// Domain entity errors represent missing or invalid entities in the system.
// These errors indicate that a requested resource does not exist.
var (
	// ErrPositionNotFound indicates that a position with the given ID does not exist.
	ErrPositionNotFound = errors.New("position not found")

	// ErrStrategyNotFound indicates that a strategy with the given ID does not exist.
	ErrStrategyNotFound = errors.New("strategy not found")

	// ErrTransactionNotFound indicates that a transaction with the given ID does not exist.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrSnapshotNotFound indicates no snapshot exists for the requested user and date.
	ErrSnapshotNotFound = errors.New("portfolio snapshot not found")

	// ErrQuoteNotFound indicates that no live quote resolved for a symbol.
	// Expected and frequent (illiquid option, market closed); callers degrade
	// to the last stored valuation rather than failing.
	ErrQuoteNotFound = errors.New("quote not found")
)

// Business logic errors represent validation failures or constraint violations.
// These errors indicate that an operation cannot be completed due to business rules.
var (
	// ErrInvalidAssetType indicates an asset type outside stock/option/crypto/futures.
	ErrInvalidAssetType = errors.New("invalid asset type")

	// ErrInvalidDateRange indicates that the provided date range is invalid
	// (e.g., start date is after end date).
	ErrInvalidDateRange = errors.New("invalid date range")

	// ErrInvalidUUID indicates that a provided ID is not a valid UUID format.
	ErrInvalidUUID = errors.New("invalid UUID format")

	// ErrEmptyID indicates that a required ID parameter is empty or missing.
	ErrEmptyID = errors.New("ID cannot be empty")

	// ErrInvalidQuantity indicates a zero or negative transaction quantity.
	ErrInvalidQuantity = errors.New("quantity must be positive")

	// ErrMissingUserID indicates a request without the required user ID.
	ErrMissingUserID = errors.New("user ID is required")

	// ErrMissingSymbol indicates a transaction without an instrument symbol.
	ErrMissingSymbol = errors.New("symbol is required")

	// ErrMissingOptionFields indicates an option transaction without strike,
	// expiration, or option type.
	ErrMissingOptionFields = errors.New("option transactions require strike, expiration, and option type")

	// ErrInvalidDate indicates a date parameter that is missing or unparseable.
	ErrInvalidDate = errors.New("invalid date parameter")

	// ErrDuplicateEntry indicates that an entity with the same unique constraint already exists.
	ErrDuplicateEntry = errors.New("duplicate entry")
)

// Data integrity errors represent inconsistencies in the reconstructed state.
var (
	// ErrOverClose indicates that a closing transaction could not find
	// sufficient open quantity at its instrument key. Not auto-corrected;
	// surfaced to the reconciliation fault queue with the computed shortfall
	// while the position is left in its last-good state.
	ErrOverClose = errors.New("closing transaction exceeds open quantity")

	// ErrDataInconsistency indicates that the data is in an inconsistent state
	// (e.g., a position match references a transaction that doesn't exist).
	ErrDataInconsistency = errors.New("data inconsistency detected")

	// ErrMissingRequiredField indicates that a required field is missing or empty.
	ErrMissingRequiredField = errors.New("missing required field")
)

// Operation failure errors represent system-level failures when retrieving or
// processing data.
var (
	ErrFailedToRetrievePositions  = errors.New("failed to retrieve positions")
	ErrFailedToRetrieveStrategies = errors.New("failed to retrieve strategies")
	ErrFailedToRetrieveMatches    = errors.New("failed to retrieve position matches")
	ErrFailedToRetrieveSnapshots  = errors.New("failed to retrieve snapshots")
	ErrFailedToRetrieveFaults     = errors.New("failed to retrieve reconciliation faults")
	ErrFailedToImportTransactions = errors.New("failed to import transactions")
	ErrFailedToGenerateSnapshot   = errors.New("failed to generate portfolio snapshot")
	ErrFailedToRecomputeStrategy  = errors.New("failed to recompute strategy aggregates")
)
