package request

// TransactionEntry is one broker fill inside an ingest batch. Option-only
// fields are pointers so missing and zero are distinguishable.
type TransactionEntry struct {
	ID               string   `json:"id,omitempty"`
	Symbol           string   `json:"symbol"`
	UnderlyingSymbol string   `json:"underlyingSymbol,omitempty"`
	AssetType        string   `json:"assetType"`
	StrikePrice      *float64 `json:"strikePrice,omitempty"`
	ExpirationDate   *string  `json:"expirationDate,omitempty"`
	OptionType       *string  `json:"optionType,omitempty"`
	ContractMonth    *string  `json:"contractMonth,omitempty"`
	TransCode        string   `json:"transCode"`
	Quantity         float64  `json:"quantity"`
	Price            float64  `json:"price"`
	Amount           float64  `json:"amount"`
	Fees             float64  `json:"fees"`
	IsOpening        bool     `json:"isOpening"`
	IsLong           bool     `json:"isLong"`
	ActivityDate     string   `json:"activityDate"`
}

type IngestTransactionsRequest struct {
	UserID       string             `json:"userId"`
	Transactions []TransactionEntry `json:"transactions"`
}

// CashTransactionEntry is one cash ledger posting inside an ingest batch.
type CashTransactionEntry struct {
	ID              string  `json:"id,omitempty"`
	TransactionCode string  `json:"transactionCode"`
	Amount          float64 `json:"amount"`
	ActivityDate    string  `json:"activityDate"`
}

type IngestCashTransactionsRequest struct {
	UserID       string                 `json:"userId"`
	Transactions []CashTransactionEntry `json:"transactions"`
}
