package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

const (
	coingeckoBaseURL    = "https://api.coingecko.com/api/v3"
	coingeckoProBaseURL = "https://pro-api.coingecko.com/api/v3"
	coingeckoTimeout    = 10 * time.Second
)

// CoinGeckoSource looks up a price by CoinGecko token id and fiat id rather
// than by a trading-pair symbol.
type CoinGeckoSource struct {
	*BaseSource
	apiURL     string
	tokenID    string // e.g. "cardano"
	vsCurrency string // e.g. "usd"
	apiKey     string
	client     *http.Client
}

// NewCoinGeckoSource creates a CoinGecko source.
//
// Config keys:
//
//	symbol:      "BASE/QUOTE" (required)
//	token_id:    CoinGecko id of the base token (required)
//	vs_currency: fiat id, defaults to the quote side lowercased
//	api_key:     optional pro API key, switches to the pro endpoint
//	api_url:     override for the API base URL
//	method:      "multiply" (default) or "divide"
func NewCoinGeckoSource(name string, config map[string]interface{}) (Source, error) {
	pair, err := ParseSymbolFromConfig(config)
	if err != nil {
		return nil, err
	}
	method, err := ParseMethodFromConfig(config)
	if err != nil {
		return nil, err
	}

	tokenID := getStringFromMap(config, "token_id")
	if tokenID == "" {
		return nil, fmt.Errorf("%w: 'token_id' key required", ErrInvalidConfig)
	}

	vsCurrency := getStringFromMap(config, "vs_currency")
	if vsCurrency == "" {
		vsCurrency = strings.ToLower(pair.Quote)
	}

	apiKey := getStringFromMap(config, "api_key")
	apiURL := getStringFromMap(config, "api_url")
	if apiURL == "" {
		if apiKey != "" {
			apiURL = coingeckoProBaseURL
		} else {
			apiURL = coingeckoBaseURL
		}
	}

	return &CoinGeckoSource{
		BaseSource: NewBaseSource(name, pair, method, GetLoggerFromConfig(config)),
		apiURL:     apiURL,
		tokenID:    tokenID,
		vsCurrency: vsCurrency,
		apiKey:     apiKey,
		client:     &http.Client{Timeout: coingeckoTimeout},
	}, nil
}

// Quote fetches the simple price for the configured token id.
func (s *CoinGeckoSource) Quote(ctx context.Context) (Observation, error) {
	endpoint := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=%s&precision=full",
		s.apiURL, url.QueryEscape(s.tokenID), url.QueryEscape(s.vsCurrency))

	var headers map[string]string
	if s.apiKey != "" {
		headers = map[string]string{"x-cg-pro-api-key": s.apiKey}
	}

	body, err := fetchBody(ctx, s.client, endpoint, headers)
	if err != nil {
		return Observation{}, fmt.Errorf("%s: %w", s.Name(), err)
	}

	result := gjson.GetBytes(body, s.tokenID+"."+s.vsCurrency)
	if !result.Exists() {
		return Observation{}, fmt.Errorf("%s: %w: no price for %s/%s", s.Name(), ErrSourceDataInvalid, s.tokenID, s.vsCurrency)
	}

	value, err := decimal.NewFromString(result.String())
	if err != nil || value.LessThanOrEqual(decimal.Zero) {
		return Observation{}, fmt.Errorf("%s: %w: bad price %q", s.Name(), ErrSourceDataInvalid, result.String())
	}

	s.Logger().Debug("Fetched price", "source", s.Name(), "token_id", s.tokenID, "vs", s.vsCurrency, "price", value.String())
	return s.Observe(value), nil
}
