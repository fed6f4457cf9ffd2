package testutil

import (
	"context"
	"sync"

	"github.com/brokerledger/reconciliation-backend/internal/apperrors"
	"github.com/brokerledger/reconciliation-backend/internal/quote"
)

// MockQuoteProvider is an in-memory quote.Provider for testing. Symbols
// without a configured quote return ErrQuoteNotFound, which exercises the
// stale-valuation fallback.
type MockQuoteProvider struct {
	mu     sync.Mutex
	quotes map[string]quote.Quote
	calls  []string
}

// NewMockQuoteProvider creates an empty MockQuoteProvider.
func NewMockQuoteProvider() *MockQuoteProvider {
	return &MockQuoteProvider{
		quotes: make(map[string]quote.Quote),
	}
}

// SetQuote configures the quote returned for a symbol.
func (m *MockQuoteProvider) SetQuote(symbol string, last float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotes[symbol] = quote.Quote{Symbol: symbol, Last: last}
}

// FailSymbol removes any configured quote so lookups fail.
func (m *MockQuoteProvider) FailSymbol(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.quotes, symbol)
}

// GetQuote implements quote.Provider.
func (m *MockQuoteProvider) GetQuote(_ context.Context, symbol string) (quote.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, symbol)
	q, ok := m.quotes[symbol]
	if !ok {
		return quote.Quote{}, apperrors.ErrQuoteNotFound
	}
	return q, nil
}

// Calls returns the symbols requested so far.
func (m *MockQuoteProvider) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.calls...)
}
