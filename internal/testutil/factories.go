package testutil

import (
	"time"

	"github.com/brokerledger/reconciliation-backend/internal/model"
)

// TransactionBuilder provides a fluent interface for creating test ledger rows.
//
// Example usage:
//
//	// Long stock opening fill
//	tx := testutil.NewTransaction("AAPL").Opening(10, 150).Build()
//
//	// Short option closing fill
//	tx := testutil.NewOptionTransaction("AAPL", 150, "2024-06-21", model.OptionPut).
//	    Short().
//	    Closing(1, 2.50).
//	    Build()
type TransactionBuilder struct {
	tx model.Transaction
}

// NewTransaction creates a TransactionBuilder for a long stock fill with
// sensible defaults. Activity date defaults to 2024-01-02 and advances only
// when set explicitly.
func NewTransaction(symbol string) *TransactionBuilder {
	return &TransactionBuilder{
		tx: model.Transaction{
			ID:               MakeID(),
			UserID:           MakeID(),
			Symbol:           symbol,
			UnderlyingSymbol: symbol,
			AssetType:        model.AssetStock,
			IsLong:           true,
			ActivityDate:     time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			CreatedAt:        time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC),
		},
	}
}

// NewOptionTransaction creates a TransactionBuilder for a long option fill.
func NewOptionTransaction(underlying string, strike float64, expiration string, optionType model.OptionType) *TransactionBuilder {
	b := NewTransaction(underlying + " " + expiration + " " + string(optionType))
	b.tx.UnderlyingSymbol = underlying
	b.tx.AssetType = model.AssetOption
	b.tx.StrikePrice = strike
	b.tx.OptionType = optionType
	b.tx.ExpirationDate, _ = time.Parse("2006-01-02", expiration)
	return b
}

// NewCryptoTransaction creates a TransactionBuilder for a crypto fill.
func NewCryptoTransaction(symbol string) *TransactionBuilder {
	b := NewTransaction(symbol)
	b.tx.AssetType = model.AssetCrypto
	return b
}

// NewFuturesTransaction creates a TransactionBuilder for a futures fill.
func NewFuturesTransaction(symbol, contractMonth string) *TransactionBuilder {
	b := NewTransaction(symbol)
	b.tx.AssetType = model.AssetFutures
	b.tx.ContractMonth = contractMonth
	return b
}

// ForUser sets the owning user.
func (b *TransactionBuilder) ForUser(userID string) *TransactionBuilder {
	b.tx.UserID = userID
	return b
}

// Short marks the fill as opening/closing a short position.
func (b *TransactionBuilder) Short() *TransactionBuilder {
	b.tx.IsLong = false
	return b
}

// Opening marks the fill as an opening trade with the given quantity and
// price. Amount defaults to the signed convention: debit for long openings,
// credit for short openings.
func (b *TransactionBuilder) Opening(quantity, price float64) *TransactionBuilder {
	b.tx.IsOpening = true
	b.tx.Quantity = quantity
	b.tx.Price = price
	b.tx.TransCode = model.CodeBuyToOpen
	b.tx.Amount = -quantity * price * b.tx.AssetType.Multiplier()
	if !b.tx.IsLong {
		b.tx.TransCode = model.CodeSellToOpen
		b.tx.Amount = -b.tx.Amount
	}
	return b
}

// Closing marks the fill as a closing trade with the given quantity and price.
func (b *TransactionBuilder) Closing(quantity, price float64) *TransactionBuilder {
	b.tx.IsOpening = false
	b.tx.Quantity = quantity
	b.tx.Price = price
	b.tx.TransCode = model.CodeSellToClose
	b.tx.Amount = quantity * price * b.tx.AssetType.Multiplier()
	if !b.tx.IsLong {
		b.tx.TransCode = model.CodeBuyToClose
		b.tx.Amount = -b.tx.Amount
	}
	return b
}

// WithTransCode overrides the transaction code (OEXP, OASGN, OEXCS).
func (b *TransactionBuilder) WithTransCode(code string) *TransactionBuilder {
	b.tx.TransCode = code
	return b
}

// WithAmount overrides the signed cash amount.
func (b *TransactionBuilder) WithAmount(amount float64) *TransactionBuilder {
	b.tx.Amount = amount
	return b
}

// On sets the activity date from a YYYY-MM-DD string.
func (b *TransactionBuilder) On(date string) *TransactionBuilder {
	b.tx.ActivityDate, _ = time.Parse("2006-01-02", date)
	return b
}

// CreatedAfter orders this fill after another within the same activity date.
func (b *TransactionBuilder) CreatedAfter(other model.Transaction) *TransactionBuilder {
	b.tx.CreatedAt = other.CreatedAt.Add(time.Second)
	return b
}

// Build returns the assembled transaction.
func (b *TransactionBuilder) Build() model.Transaction {
	return b.tx
}

// NewCashTransaction creates a cash ledger entry for tests.
func NewCashTransaction(userID, code string, amount float64, date string) model.CashTransaction {
	activityDate, _ := time.Parse("2006-01-02", date)
	return model.CashTransaction{
		ID:              MakeID(),
		UserID:          userID,
		TransactionCode: code,
		Amount:          amount,
		ActivityDate:    activityDate,
		CreatedAt:       activityDate,
	}
}
