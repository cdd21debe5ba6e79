// Package risk holds the pure metric functions that turn raw market and
// protocol data into collateral risk indicators. Nothing here performs I/O.
package risk

import "errors"

var (
	// ErrUpstreamData is returned when an input the metric needs was not
	// present in the upstream response.
	ErrUpstreamData = errors.New("upstream data missing")

	// ErrDivision is returned for a degenerate (zero) denominator.
	ErrDivision = errors.New("division by zero")

	// ErrFitConvergence is returned when the impact curve cannot be fitted.
	ErrFitConvergence = errors.New("curve fit did not converge")

	// ErrAlignment is returned when a raw series has no sample at 00:00 UTC.
	ErrAlignment = errors.New("no 00:00 UTC aligned sample")

	// ErrEmptySeries is returned when a computation needs at least one bar.
	ErrEmptySeries = errors.New("empty series")

	// ErrDomain is returned when an input is outside a function's domain.
	ErrDomain = errors.New("input outside domain")
)
