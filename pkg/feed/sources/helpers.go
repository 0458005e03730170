package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/logging"
)

const maxResponseBytes = 1 << 20 // 1 MiB cap on API response bodies

// GetLoggerFromConfig extracts the logger passed through the config map.
// Returns a noop logger when none is configured so sources never hold nil.
func GetLoggerFromConfig(config map[string]interface{}) *logging.Logger {
	if raw, ok := config["logger"]; ok {
		if logger, ok := raw.(*logging.Logger); ok {
			return logger
		}
	}
	return logging.NewNoopLogger()
}

// GetChainFromConfig extracts the chain reader passed through the config map.
func GetChainFromConfig(config map[string]interface{}) (ChainReader, error) {
	raw, ok := config["chain"]
	if !ok {
		return nil, fmt.Errorf("%w: chain reader not provided", ErrInvalidConfig)
	}
	reader, ok := raw.(ChainReader)
	if !ok {
		return nil, fmt.Errorf("%w: chain entry is %T", ErrInvalidConfig, raw)
	}
	return reader, nil
}

// ParseSymbolFromConfig reads and parses the required "symbol" key.
func ParseSymbolFromConfig(config map[string]interface{}) (Pair, error) {
	symbol := getStringFromMap(config, "symbol")
	if symbol == "" {
		return Pair{}, fmt.Errorf("%w: 'symbol' key required", ErrInvalidConfig)
	}
	return ParsePair(symbol)
}

// ParseMethodFromConfig reads the optional "method" key, defaulting to multiply.
func ParseMethodFromConfig(config map[string]interface{}) (RateMethod, error) {
	return ParseRateMethod(getStringFromMap(config, "method"))
}

// fetchBody performs a GET request and classifies HTTP failures into the
// source error taxonomy.
func fetchBody(ctx context.Context, client *http.Client, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: HTTP %d", ErrSourceAuth, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: HTTP %d", ErrSourceUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrSourceUnavailable, err)
	}
	return body, nil
}

// buildHeaders assembles request headers from a source's config. A
// "bearer_token" entry becomes an Authorization header; everything else is
// passed through verbatim.
func buildHeaders(config map[string]interface{}) map[string]string {
	headers := make(map[string]string)
	raw, ok := config["headers"].(map[string]interface{})
	if !ok {
		return headers
	}
	for key, value := range raw {
		str, ok := value.(string)
		if !ok {
			continue
		}
		if key == "bearer_token" {
			headers["Authorization"] = "Bearer " + str
		} else {
			headers[key] = str
		}
	}
	return headers
}

func getStringFromMap(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func getBoolFromMap(m map[string]interface{}, key string) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return false
}

func getIntFromMap(m map[string]interface{}, key string, defaultVal int) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return defaultVal
	}
}

func getStringSliceFromMap(m map[string]interface{}, key string) []string {
	raw, ok := m[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
