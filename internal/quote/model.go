package quote

// Response represents the raw JSON response structure from the quote API.
// This type maps directly to the Yahoo-style quote endpoint response format:
//   - QuoteResponse.Result: one element per requested symbol
//   - QuoteResponse.Error: optional error message from the API
type Response struct {
	QuoteResponse struct {
		Result []struct {
			Symbol       string  `json:"symbol"`
			Bid          float64 `json:"bid"`
			Ask          float64 `json:"ask"`
			RegularPrice float64 `json:"regularMarketPrice"`
			Volume       int64   `json:"regularMarketVolume"`
			OpenInterest int64   `json:"openInterest"`
		} `json:"result"`
		Error *string `json:"error"`
	} `json:"quoteResponse"`
}

// Quote is the application's internal representation of one live quote.
// OpenInterest is only populated for option symbols.
type Quote struct {
	Symbol       string  `json:"symbol"`
	Bid          float64 `json:"bid"`
	Ask          float64 `json:"ask"`
	Last         float64 `json:"last"`
	Volume       int64   `json:"volume"`
	OpenInterest int64   `json:"openInterest,omitempty"`
}

// Price returns the best available mark for valuation: the bid/ask midpoint
// when both sides are quoted, otherwise the last trade price.
func (q Quote) Price() float64 {
	if q.Bid > 0 && q.Ask > 0 {
		return (q.Bid + q.Ask) / 2
	}
	return q.Last
}
