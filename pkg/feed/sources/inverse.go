package sources

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// InverseSource performs no I/O. It returns the multiplicative inverse of
// the quote-currency rate already resolved this cycle. At most one inverse
// source may exist per base-currency configuration; the quote group must
// resolve before it can compute.
type InverseSource struct {
	*BaseSource

	mu       sync.Mutex
	rate     decimal.Decimal
	resolved bool
}

// NewInverseSource creates an inverse source.
//
// Config keys:
//
//	symbol: "BASE/QUOTE" (required)
//	method: "multiply" (default) or "divide"
func NewInverseSource(name string, config map[string]interface{}) (Source, error) {
	pair, err := ParseSymbolFromConfig(config)
	if err != nil {
		return nil, err
	}
	method, err := ParseMethodFromConfig(config)
	if err != nil {
		return nil, err
	}
	return &InverseSource{
		BaseSource: NewBaseSource(name, pair, method, GetLoggerFromConfig(config)),
	}, nil
}

// SetQuoteRate supplies the resolved quote-currency rate for this cycle.
func (s *InverseSource) SetQuoteRate(rate decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rate = rate
	s.resolved = true
}

// Quote returns 1 / quoteRate.
func (s *InverseSource) Quote(_ context.Context) (Observation, error) {
	s.mu.Lock()
	rate := s.rate
	resolved := s.resolved
	s.resolved = false // one-shot per cycle
	s.mu.Unlock()

	if !resolved {
		return Observation{}, fmt.Errorf("%s: %w", s.Name(), ErrQuoteRateNotSet)
	}
	if rate.IsZero() {
		return Observation{}, fmt.Errorf("%s: %w: cannot invert zero rate", s.Name(), ErrSourceDataInvalid)
	}
	return s.Observe(decimal.NewFromInt(1).Div(rate)), nil
}
