// Package quote fetches live market quotes for portfolio valuation.
// Quote absence or provider errors are expected conditions (illiquid options,
// market closed) and are reported as errors for the caller to degrade on,
// never treated as fatal.
package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Provider resolves a live quote for a single symbol. Implementations must be
// safe for concurrent use; the snapshotter fetches symbols in parallel.
type Provider interface {
	GetQuote(ctx context.Context, symbol string) (Quote, error)
}

// Client provides methods for fetching quotes from a Yahoo-style quote API.
// It wraps an HTTP client and satisfies Provider.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new quote client for the given API base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// GetQuote fetches the current quote for a symbol.
//
// Returns an error if the HTTP request fails, the API reports an error, or no
// result is returned for the symbol. Callers fall back to the last stored
// valuation in those cases.
func (c *Client) GetQuote(ctx context.Context, symbol string) (Quote, error) {
	url := fmt.Sprintf("%s/v7/finance/quote?symbols=%s", c.baseURL, symbol)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Quote{}, err
	}

	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Quote{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Quote{}, fmt.Errorf("quote API returned status %d for %s", resp.StatusCode, symbol)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Quote{}, err
	}

	var response Response
	if err := json.Unmarshal(data, &response); err != nil {
		return Quote{}, err
	}

	if response.QuoteResponse.Error != nil {
		return Quote{}, fmt.Errorf("quote API error: %s", *response.QuoteResponse.Error)
	}

	if len(response.QuoteResponse.Result) == 0 {
		return Quote{}, fmt.Errorf("no quote returned for symbol %s", symbol)
	}

	result := response.QuoteResponse.Result[0]

	return Quote{
		Symbol:       result.Symbol,
		Bid:          result.Bid,
		Ask:          result.Ask,
		Last:         result.RegularPrice,
		Volume:       result.Volume,
		OpenInterest: result.OpenInterest,
	}, nil
}
