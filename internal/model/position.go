package model

import "time"

// PositionSide indicates the direction of a position.
type PositionSide string

const (
	SideLong  PositionSide = "long"
	SideShort PositionSide = "short"
)

// PositionStatus is the lifecycle state of a position. A position leaves
// "open" only when its current quantity reaches zero; the terminal state is
// derived from the closing transaction's code.
type PositionStatus string

const (
	PositionOpen      PositionStatus = "open"
	PositionClosed    PositionStatus = "closed"
	PositionAssigned  PositionStatus = "assigned"
	PositionExercised PositionStatus = "exercised"
	PositionExpired   PositionStatus = "expired"
)

// Terminal returns true if the status represents a fully-closed position.
func (s PositionStatus) Terminal() bool {
	return s != PositionOpen && s != ""
}

// Valid returns true if the PositionStatus is one of the defined constants.
func (s PositionStatus) Valid() bool {
	switch s {
	case PositionOpen, PositionClosed, PositionAssigned, PositionExercised, PositionExpired:
		return true
	default:
		return false
	}
}

// Position is one resolvable lot-group for a single instrument key,
// reconstructed from the transaction ledger by FIFO matching.
//
// Invariant: CurrentQuantity = OpeningQuantity - sum of matched closing
// quantity, always >= 0. TotalCostBasis is signed: negative = debit paid,
// positive = credit received.
type Position struct {
	ID                    string         `json:"id"`
	UserID                string         `json:"userId"`
	Symbol                string         `json:"symbol"`
	UnderlyingSymbol      string         `json:"underlyingSymbol"`
	AssetType             AssetType      `json:"assetType"`
	StrikePrice           float64        `json:"strikePrice,omitempty"`
	ExpirationDate        time.Time      `json:"expirationDate,omitzero"`
	OptionType            OptionType     `json:"optionType,omitempty"`
	ContractMonth         string         `json:"contractMonth,omitempty"`
	Side                  PositionSide   `json:"side"`
	OpeningQuantity       float64        `json:"openingQuantity"`
	CurrentQuantity       float64        `json:"currentQuantity"`
	AverageOpeningPrice   float64        `json:"averageOpeningPrice"`
	TotalCostBasis        float64        `json:"totalCostBasis"`
	TotalClosingAmount    float64        `json:"totalClosingAmount"`
	RealizedPL            float64        `json:"realizedPl"`
	UnrealizedPL          float64        `json:"unrealizedPl"`
	Status                PositionStatus `json:"status"`
	StrategyID            string         `json:"strategyId,omitempty"`
	NeedsReconciliation   bool           `json:"needsReconciliation"`
	OpeningTransactionIDs []string       `json:"openingTransactionIds"`
	ClosingTransactionIDs []string       `json:"closingTransactionIds"`
	OpenedAt              time.Time      `json:"openedAt"`
	ClosedAt              time.Time      `json:"closedAt,omitzero"`
	CreatedAt             time.Time      `json:"createdAt,omitempty"`
	UpdatedAt             time.Time      `json:"updatedAt,omitempty"`
}

// InstrumentKey derives the matching key for this position.
func (p Position) InstrumentKey() InstrumentKey {
	key := InstrumentKey{
		UserID:        p.UserID,
		Symbol:        p.Symbol,
		AssetType:     p.AssetType,
		StrikePrice:   p.StrikePrice,
		OptionType:    p.OptionType,
		ContractMonth: p.ContractMonth,
	}
	if !p.ExpirationDate.IsZero() {
		key.ExpirationDate = p.ExpirationDate.Format("2006-01-02")
	}
	return key
}

// PositionFilter narrows position queries for the read API.
type PositionFilter struct {
	UserID    string
	Status    PositionStatus
	AssetType AssetType
	Symbol    string
}

// PositionMatch records one FIFO pairing of an opening transaction slice with
// a closing transaction slice. Matches are an immutable audit trail, keyed by
// the (opening, closing) transaction pair so re-matching never duplicates.
type PositionMatch struct {
	ID                   string    `json:"id"`
	PositionID           string    `json:"positionId"`
	OpeningTransactionID string    `json:"openingTransactionId"`
	ClosingTransactionID string    `json:"closingTransactionId"`
	MatchedQuantity      float64   `json:"matchedQuantity"`
	OpeningPrice         float64   `json:"openingPrice"`
	ClosingPrice         float64   `json:"closingPrice"`
	RealizedPL           float64   `json:"realizedPl"`
	CreatedAt            time.Time `json:"createdAt,omitempty"`
}

// ReconciliationFault is one entry of the operator queue: a closing
// transaction that could not find sufficient open quantity at its instrument
// key. The affected position is left in its last-good state and flagged.
type ReconciliationFault struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	TransactionID string    `json:"transactionId"`
	InstrumentKey string    `json:"instrumentKey"`
	Shortfall     float64   `json:"shortfall"`
	Message       string    `json:"message"`
	Resolved      bool      `json:"resolved"`
	CreatedAt     time.Time `json:"createdAt,omitempty"`
}
