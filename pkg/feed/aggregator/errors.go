// Package aggregator combines observations from multiple price sources for
// one logical pair into a single resilient value.
package aggregator

import "errors"

var (
	// ErrInsufficientSources indicates fewer sources succeeded than the
	// configured minimum.
	ErrInsufficientSources = errors.New("insufficient successful sources")
	// ErrNoSources indicates a group was built without any sources.
	ErrNoSources = errors.New("group has no sources")
	// ErrInvalidPolicy indicates an unrecognized aggregation policy.
	ErrInvalidPolicy = errors.New("invalid aggregation policy")
	// ErrInvalidMinSources indicates a non-positive minimum source count.
	ErrInvalidMinSources = errors.New("min sources must be positive")
)
