// Package calculator composes a base-currency rate and a quote-currency
// rate into the final published price.
package calculator

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/feed/sources"
)

// DefaultPrecisionMultiplier is the fixed-point scale applied before
// submission. Feeds whose true price is smaller than this can represent
// must raise it (e.g. to 1e12) in configuration; it is never adjusted
// automatically.
const DefaultPrecisionMultiplier int64 = 1_000_000

var (
	// ErrDivideByZeroQuote indicates a divide composition with a zero quote rate.
	ErrDivideByZeroQuote = errors.New("cannot divide by zero quote rate")
	// ErrInvalidPrecision indicates a non-positive precision multiplier.
	ErrInvalidPrecision = errors.New("precision multiplier must be positive")
)

// FinalRate is the composed, scaled price handed to the submission path.
type FinalRate struct {
	Pair                sources.Pair
	Value               decimal.Decimal // scaled by PrecisionMultiplier
	Raw                 decimal.Decimal // before scaling
	PrecisionMultiplier int64
	ComputedAt          time.Time
}

// ScaledInt returns the value truncated to the integer the on-chain
// fixed-point storage expects.
func (r FinalRate) ScaledInt() int64 {
	return r.Value.IntPart()
}

// Compute composes base and quote per method and scales the result.
// multiply yields base*quote, divide yields base/quote. Arithmetic is
// arbitrary-precision decimal throughout; binary floating point would
// accumulate rounding error across chained operations.
func Compute(pair sources.Pair, base, quote decimal.Decimal, method sources.RateMethod, precisionMultiplier int64) (FinalRate, error) {
	if precisionMultiplier <= 0 {
		return FinalRate{}, fmt.Errorf("%w: %d", ErrInvalidPrecision, precisionMultiplier)
	}

	var raw decimal.Decimal
	switch method {
	case sources.RateMethodDivide:
		if quote.IsZero() {
			return FinalRate{}, ErrDivideByZeroQuote
		}
		raw = base.Div(quote)
	default:
		raw = base.Mul(quote)
	}

	return FinalRate{
		Pair:                pair,
		Value:               raw.Mul(decimal.NewFromInt(precisionMultiplier)),
		Raw:                 raw,
		PrecisionMultiplier: precisionMultiplier,
		ComputedAt:          time.Now().UTC(),
	}, nil
}
