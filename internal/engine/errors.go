package engine

import "errors"

// Sentinel errors the control surface wraps with fmt.Errorf %w so callers
// can errors.Is against a stable category while still getting a specific
// message (spec.md §7's error conditions).
var (
	ErrConfig       = errors.New("engine: invalid configuration")
	ErrState        = errors.New("engine: invalid state for operation")
	ErrNoGraph      = errors.New("engine: audio graph runtime unavailable")
	ErrBandIndex    = errors.New("engine: band index out of range")
	ErrUnknownSink  = errors.New("engine: unknown sink serial")
	ErrDiscovery    = errors.New("engine: sink discovery did not settle in time")
)
