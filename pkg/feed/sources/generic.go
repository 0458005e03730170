package sources

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"context"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

const genericTimeout = 10 * time.Second

// GenericSource fetches a rate from an arbitrary HTTP JSON endpoint by
// walking a configured path of keys and indices into the response body.
type GenericSource struct {
	*BaseSource
	url      string
	jsonPath string
	headers  map[string]string
	client   *http.Client
}

// NewGenericSource creates a generic HTTP source.
//
// Config keys:
//
//	symbol:    "BASE/QUOTE" (required)
//	url:       full endpoint URL (required)
//	json_path: dotted path to the price value, keys and array indices
//	           applied in order (e.g. "data.rates.0.price") (required)
//	method:    "multiply" (default) or "divide"
//	headers:   optional request headers; "bearer_token" becomes Authorization
func NewGenericSource(name string, config map[string]interface{}) (Source, error) {
	pair, err := ParseSymbolFromConfig(config)
	if err != nil {
		return nil, err
	}
	method, err := ParseMethodFromConfig(config)
	if err != nil {
		return nil, err
	}

	url := getStringFromMap(config, "url")
	if url == "" {
		return nil, fmt.Errorf("%w: 'url' key required", ErrInvalidConfig)
	}
	jsonPath := parseJSONPath(config)
	if jsonPath == "" {
		return nil, fmt.Errorf("%w: 'json_path' key required", ErrInvalidConfig)
	}

	return &GenericSource{
		BaseSource: NewBaseSource(name, pair, method, GetLoggerFromConfig(config)),
		url:        url,
		jsonPath:   jsonPath,
		headers:    buildHeaders(config),
		client:     &http.Client{Timeout: genericTimeout},
	}, nil
}

// parseJSONPath accepts the path either as a dotted string or as a list of
// keys and indices.
func parseJSONPath(config map[string]interface{}) string {
	if s := getStringFromMap(config, "json_path"); s != "" {
		return s
	}
	raw, ok := config["json_path"].([]interface{})
	if !ok {
		return ""
	}
	parts := make([]string, 0, len(raw))
	for _, elem := range raw {
		switch v := elem.(type) {
		case string:
			parts = append(parts, v)
		case int:
			parts = append(parts, fmt.Sprintf("%d", v))
		case int64:
			parts = append(parts, fmt.Sprintf("%d", v))
		case float64:
			parts = append(parts, fmt.Sprintf("%d", int64(v)))
		}
	}
	return strings.Join(parts, ".")
}

// Quote fetches the endpoint and extracts the price at the configured path.
func (s *GenericSource) Quote(ctx context.Context) (Observation, error) {
	body, err := fetchBody(ctx, s.client, s.url, s.headers)
	if err != nil {
		return Observation{}, fmt.Errorf("%s: %w", s.Name(), err)
	}

	if !gjson.ValidBytes(body) {
		return Observation{}, fmt.Errorf("%s: %w: not valid JSON", s.Name(), ErrSourceDataInvalid)
	}

	result := gjson.GetBytes(body, s.jsonPath)
	if !result.Exists() {
		return Observation{}, fmt.Errorf("%s: %w: nothing at path %q", s.Name(), ErrSourceDataInvalid, s.jsonPath)
	}

	value, err := decimal.NewFromString(result.String())
	if err != nil {
		return Observation{}, fmt.Errorf("%s: %w: %q is not a number", s.Name(), ErrSourceDataInvalid, result.String())
	}
	if value.LessThanOrEqual(decimal.Zero) {
		return Observation{}, fmt.Errorf("%s: %w: non-positive price %s", s.Name(), ErrSourceDataInvalid, value)
	}

	s.Logger().Debug("Fetched price", "source", s.Name(), "pair", s.Pair().String(), "price", value.String())
	return s.Observe(value), nil
}
