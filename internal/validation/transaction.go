package validation

import (
	"fmt"
	"strings"
	"time"

	"github.com/brokerledger/reconciliation-backend/internal/api/request"
	"github.com/brokerledger/reconciliation-backend/internal/model"
)

// ValidInstrumentTransCode contains the allowed trade codes. Futures margin
// codes are cash-ledger only and rejected here.
var ValidInstrumentTransCode = map[string]bool{
	model.CodeBuyToOpen: true, model.CodeSellToOpen: true,
	model.CodeSellToClose: true, model.CodeBuyToClose: true,
	model.CodeExpiration: true, model.CodeAssignment: true, model.CodeExercise: true,
}

// ValidateIngestTransactions validates a transaction ingest batch.
//
// Required per entry:
//   - symbol: non-empty
//   - assetType: one of stock, option, crypto, futures
//   - transCode: a trade code (BTO, STO, STC, BTC, OEXP, OASGN, OEXCS)
//   - quantity: must be positive
//   - activityDate: RFC 3339 or YYYY-MM-DD
//
// Option entries additionally require strikePrice, expirationDate, and
// optionType; futures entries require contractMonth.
//
// Returns a validation Error with field-specific error messages if validation fails.
func ValidateIngestTransactions(req request.IngestTransactionsRequest) error {
	if err := ValidateUUID(req.UserID); err != nil {
		return err
	}
	if len(req.Transactions) == 0 {
		return ErrEmptySlice
	}

	errors := make(map[string]string)
	for i, entry := range req.Transactions {
		validateEntry(errors, fmt.Sprintf("transactions[%d]", i), entry)
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}
	return nil
}

func validateEntry(errors map[string]string, prefix string, entry request.TransactionEntry) {
	if strings.TrimSpace(entry.Symbol) == "" {
		errors[prefix+".symbol"] = "symbol is required"
	}

	assetType := model.AssetType(entry.AssetType)
	if !assetType.Valid() {
		errors[prefix+".assetType"] = fmt.Sprintf("invalid assetType: %s", entry.AssetType)
	}

	if !ValidInstrumentTransCode[entry.TransCode] {
		errors[prefix+".transCode"] = fmt.Sprintf("invalid transCode: %s", entry.TransCode)
	}

	if entry.Quantity <= 0 {
		errors[prefix+".quantity"] = "quantity must be positive"
	}
	if entry.Price < 0 {
		errors[prefix+".price"] = "price cannot be negative"
	}

	if _, err := ParseDate(entry.ActivityDate); err != nil {
		errors[prefix+".activityDate"] = err.Error()
	}

	switch assetType {
	case model.AssetOption:
		if entry.StrikePrice == nil || *entry.StrikePrice <= 0 {
			errors[prefix+".strikePrice"] = "strikePrice is required for options"
		}
		if entry.ExpirationDate == nil {
			errors[prefix+".expirationDate"] = "expirationDate is required for options"
		} else if _, err := time.Parse("2006-01-02", *entry.ExpirationDate); err != nil {
			errors[prefix+".expirationDate"] = err.Error()
		}
		if entry.OptionType == nil {
			errors[prefix+".optionType"] = "optionType is required for options"
		} else if ot := model.OptionType(*entry.OptionType); ot != model.OptionCall && ot != model.OptionPut {
			errors[prefix+".optionType"] = fmt.Sprintf("invalid optionType: %s", *entry.OptionType)
		}
	case model.AssetFutures:
		if entry.ContractMonth == nil || strings.TrimSpace(*entry.ContractMonth) == "" {
			errors[prefix+".contractMonth"] = "contractMonth is required for futures"
		}
	}
}

// ValidateIngestCashTransactions validates a cash ledger ingest batch.
func ValidateIngestCashTransactions(req request.IngestCashTransactionsRequest) error {
	if err := ValidateUUID(req.UserID); err != nil {
		return err
	}
	if len(req.Transactions) == 0 {
		return ErrEmptySlice
	}

	errors := make(map[string]string)
	for i, entry := range req.Transactions {
		prefix := fmt.Sprintf("transactions[%d]", i)

		if strings.TrimSpace(entry.TransactionCode) == "" {
			errors[prefix+".transactionCode"] = "transactionCode is required"
		}
		if entry.Amount == 0 {
			errors[prefix+".amount"] = "amount cannot be zero"
		}
		if _, err := ParseDate(entry.ActivityDate); err != nil {
			errors[prefix+".activityDate"] = err.Error()
		}
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}
	return nil
}
