package sources

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/logging"
)

// BaseSource provides the common identity fields for all price sources.
type BaseSource struct {
	name   string
	pair   Pair
	method RateMethod
	logger *logging.Logger
}

// NewBaseSource creates the shared base for a source implementation.
func NewBaseSource(name string, pair Pair, method RateMethod, logger *logging.Logger) *BaseSource {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &BaseSource{
		name:   name,
		pair:   pair,
		method: method,
		logger: logger,
	}
}

// Name returns the configured instance name.
func (b *BaseSource) Name() string {
	return b.name
}

// Pair returns the asset pair this source observes.
func (b *BaseSource) Pair() Pair {
	return b.pair
}

// Method returns the rate calculation method.
func (b *BaseSource) Method() RateMethod {
	return b.method
}

// Logger returns the logger.
func (b *BaseSource) Logger() *logging.Logger {
	return b.logger
}

// Observe stamps a value into an Observation attributed to this source.
func (b *BaseSource) Observe(value decimal.Decimal) Observation {
	return Observation{
		Pair:       b.pair,
		Value:      value,
		Source:     b.name,
		ObservedAt: time.Now().UTC(),
	}
}
