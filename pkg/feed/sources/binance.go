package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

const (
	binanceBaseURL = "https://api.binance.com"
	binanceTimeout = 10 * time.Second
)

// BinanceSource fetches the current average trade price for a symbol from
// the Binance avgPrice endpoint.
type BinanceSource struct {
	*BaseSource
	apiURL string
	symbol string // exchange-specific symbol, e.g. "ADAUSDT"
	client *http.Client
}

// binanceAvgPrice is the /api/v3/avgPrice response.
type binanceAvgPrice struct {
	Mins  int    `json:"mins"`
	Price string `json:"price"`
}

// NewBinanceSource creates a Binance source.
//
// Config keys:
//
//	symbol:          "BASE/QUOTE" (required)
//	exchange_symbol: Binance ticker, defaults to BASE+QUOTE uppercased
//	api_url:         override for the API base URL
//	method:          "multiply" (default) or "divide"
func NewBinanceSource(name string, config map[string]interface{}) (Source, error) {
	pair, err := ParseSymbolFromConfig(config)
	if err != nil {
		return nil, err
	}
	method, err := ParseMethodFromConfig(config)
	if err != nil {
		return nil, err
	}

	symbol := getStringFromMap(config, "exchange_symbol")
	if symbol == "" {
		symbol = pair.Base + pair.Quote
	}

	apiURL := binanceBaseURL
	if u := getStringFromMap(config, "api_url"); u != "" {
		apiURL = u
	}

	return &BinanceSource{
		BaseSource: NewBaseSource(name, pair, method, GetLoggerFromConfig(config)),
		apiURL:     apiURL,
		symbol:     symbol,
		client:     &http.Client{Timeout: binanceTimeout},
	}, nil
}

// Quote fetches the rolling average price for the configured symbol.
func (s *BinanceSource) Quote(ctx context.Context) (Observation, error) {
	endpoint := fmt.Sprintf("%s/api/v3/avgPrice?symbol=%s", s.apiURL, url.QueryEscape(s.symbol))

	body, err := fetchBody(ctx, s.client, endpoint, nil)
	if err != nil {
		return Observation{}, fmt.Errorf("%s: %w", s.Name(), err)
	}

	var ticker binanceAvgPrice
	if err := json.Unmarshal(body, &ticker); err != nil {
		return Observation{}, fmt.Errorf("%s: %w: %v", s.Name(), ErrSourceDataInvalid, err)
	}
	if ticker.Price == "" {
		return Observation{}, fmt.Errorf("%s: %w: empty price for %s", s.Name(), ErrSourceDataInvalid, s.symbol)
	}

	value, err := decimal.NewFromString(ticker.Price)
	if err != nil {
		return Observation{}, fmt.Errorf("%s: %w: %q is not a number", s.Name(), ErrSourceDataInvalid, ticker.Price)
	}
	if value.LessThanOrEqual(decimal.Zero) {
		return Observation{}, fmt.Errorf("%s: %w: non-positive price %s", s.Name(), ErrSourceDataInvalid, value)
	}

	s.Logger().Debug("Fetched price", "source", s.Name(), "symbol", s.symbol, "price", value.String(), "window_mins", ticker.Mins)
	return s.Observe(value), nil
}
