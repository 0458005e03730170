package sources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/chain"
)

// RateMethod declares how a raw value folds into a combined rate.
type RateMethod string

const (
	RateMethodMultiply RateMethod = "multiply"
	RateMethodDivide   RateMethod = "divide"
)

// ParseRateMethod parses a rate method string, defaulting to multiply.
func ParseRateMethod(s string) (RateMethod, error) {
	switch strings.ToLower(s) {
	case "", "multiply":
		return RateMethodMultiply, nil
	case "divide":
		return RateMethodDivide, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidRateMethod, s)
	}
}

// Pair is an asset pair in BASE/QUOTE orientation.
type Pair struct {
	Base  string
	Quote string
}

func (p Pair) String() string {
	return p.Base + "/" + p.Quote
}

// ParsePair parses "BASE/QUOTE".
func ParsePair(symbol string) (Pair, error) {
	parts := strings.Split(symbol, "/")
	if len(parts) != 2 {
		return Pair{}, fmt.Errorf("%w: %s", ErrInvalidSymbolFormat, symbol)
	}
	base := strings.TrimSpace(parts[0])
	quote := strings.TrimSpace(parts[1])
	if base == "" || quote == "" {
		return Pair{}, fmt.Errorf("%w: %s", ErrInvalidSymbolFormat, symbol)
	}
	return Pair{Base: base, Quote: quote}, nil
}

// Observation is a single raw price reading. Immutable once produced.
type Observation struct {
	Pair       Pair
	Value      decimal.Decimal
	Source     string
	ObservedAt time.Time
}

// Source is the capability every price venue implements.
type Source interface {
	// Name returns the configured instance name, unique within a feed.
	Name() string

	// Pair returns the asset pair this source observes.
	Pair() Pair

	// Method declares how this source's value folds into the combined rate.
	// A divide source reports the pair inverted relative to the feed.
	Method() RateMethod

	// Quote produces one observation. Failures are classified as
	// ErrSourceUnavailable, ErrSourceDataInvalid, or ErrSourceAuth.
	Quote(ctx context.Context) (Observation, error)
}

// QuoteDependent marks sources whose value is defined in terms of the
// quote-currency rate resolved earlier in the same cycle. The updater calls
// SetQuoteRate after the quote group resolves and before the base group runs.
type QuoteDependent interface {
	SetQuoteRate(rate decimal.Decimal)
}

// ChainReader is the subset of chain access that on-chain sources need.
// *chain.Client satisfies it.
type ChainReader interface {
	UTxOsAt(ctx context.Context, address string) ([]chain.UTxO, error)
	UTxOsWithUnit(ctx context.Context, address, unit string) ([]chain.UTxO, error)
	DatumByHash(ctx context.Context, hash string) ([]byte, error)
}

// Factory creates a source instance from its configuration map.
type Factory func(name string, config map[string]interface{}) (Source, error)
