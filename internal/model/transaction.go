package model

import (
	"fmt"
	"time"
)

// AssetType identifies the instrument class of a transaction or position.
type AssetType string

// Supported asset classes.
const (
	AssetStock   AssetType = "stock"
	AssetOption  AssetType = "option"
	AssetCrypto  AssetType = "crypto"
	AssetFutures AssetType = "futures"
)

// Valid returns true if the AssetType is one of the defined constants.
func (a AssetType) Valid() bool {
	switch a {
	case AssetStock, AssetOption, AssetCrypto, AssetFutures:
		return true
	default:
		return false
	}
}

// Multiplier returns the contract multiplier used to scale price into dollar
// terms. Standard equity options are 100 shares per contract; everything else
// trades 1:1 (futures fills arrive with the contract size already applied to
// price and amount by the import layer).
func (a AssetType) Multiplier() float64 {
	if a == AssetOption {
		return 100
	}
	return 1
}

// OptionType distinguishes calls from puts. Empty for non-option assets.
type OptionType string

const (
	OptionCall OptionType = "call"
	OptionPut  OptionType = "put"
)

// Transaction codes recorded by the import layer. Opening/closing intent and
// direction are carried separately in IsOpening/IsLong; the code is only
// consulted to derive terminal position status and to classify cash postings.
const (
	CodeBuyToOpen     = "BTO"
	CodeSellToOpen    = "STO"
	CodeSellToClose   = "STC"
	CodeBuyToClose    = "BTC"
	CodeExpiration    = "OEXP"
	CodeAssignment    = "OASGN"
	CodeExercise      = "OEXCS"
	CodeFuturesMargin = "FUTURES_MARGIN"
	CodeMarginRelease = "FUTURES_MARGIN_RELEASE"
)

// Transaction represents a single broker fill from the append-only ledger.
// Rows are immutable once imported; the reconciliation engine only stamps
// PositionID and StrategyID after matching.
type Transaction struct {
	ID               string     `json:"id"`
	UserID           string     `json:"userId"`
	Symbol           string     `json:"symbol"`
	UnderlyingSymbol string     `json:"underlyingSymbol"`
	AssetType        AssetType  `json:"assetType"`
	StrikePrice      float64    `json:"strikePrice,omitempty"`
	ExpirationDate   time.Time  `json:"expirationDate,omitzero"`
	OptionType       OptionType `json:"optionType,omitempty"`
	ContractMonth    string     `json:"contractMonth,omitempty"`
	TransCode        string     `json:"transCode"`
	Quantity         float64    `json:"quantity"`
	Price            float64    `json:"price"`
	Amount           float64    `json:"amount"` // positive = credit, negative = debit; fees embedded
	Fees             float64    `json:"fees"`
	IsOpening        bool       `json:"isOpening"`
	IsLong           bool       `json:"isLong"`
	ActivityDate     time.Time  `json:"activityDate"`
	PositionID       string     `json:"positionId,omitempty"`
	StrategyID       string     `json:"strategyId,omitempty"`
	CreatedAt        time.Time  `json:"createdAt,omitempty"`
}

// InstrumentKey is the grouping key for lot matching. Two transactions belong
// to the same position only if every discriminator is equal.
type InstrumentKey struct {
	UserID         string
	Symbol         string
	AssetType      AssetType
	StrikePrice    float64
	ExpirationDate string // YYYY-MM-DD, empty for non-options
	OptionType     OptionType
	ContractMonth  string
}

// InstrumentKey derives the matching key for this transaction.
func (t Transaction) InstrumentKey() InstrumentKey {
	key := InstrumentKey{
		UserID:        t.UserID,
		Symbol:        t.Symbol,
		AssetType:     t.AssetType,
		StrikePrice:   t.StrikePrice,
		OptionType:    t.OptionType,
		ContractMonth: t.ContractMonth,
	}
	if !t.ExpirationDate.IsZero() {
		key.ExpirationDate = t.ExpirationDate.Format("2006-01-02")
	}
	return key
}

// String renders the key for log lines and fault messages.
func (k InstrumentKey) String() string {
	if k.AssetType == AssetOption {
		return fmt.Sprintf("%s %s %.2f %s %s", k.Symbol, k.ExpirationDate, k.StrikePrice, k.OptionType, k.AssetType)
	}
	if k.ContractMonth != "" {
		return fmt.Sprintf("%s %s %s", k.Symbol, k.ContractMonth, k.AssetType)
	}
	return fmt.Sprintf("%s %s", k.Symbol, k.AssetType)
}

// CashTransaction is one entry of the independently-tracked cash ledger.
type CashTransaction struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	TransactionCode string    `json:"transactionCode"`
	Amount          float64   `json:"amount"`
	ActivityDate    time.Time `json:"activityDate"`
	CreatedAt       time.Time `json:"createdAt,omitempty"`
}
