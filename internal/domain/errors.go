package domain

import "errors"

var (
	// ErrNotFound indicates an unknown trade or record id.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a duplicate open trade for the same market.
	ErrConflict = errors.New("open trade already exists for market")
	// ErrInvalidState indicates an operation on a trade that is not open.
	ErrInvalidState = errors.New("trade is not open")
	// ErrValidation indicates malformed caller input.
	ErrValidation = errors.New("invalid input")
	// ErrAlreadyFetching indicates a refresh was requested while one is in
	// flight; the request is a no-op.
	ErrAlreadyFetching = errors.New("refresh already in progress")
	// ErrAutoTradingDisabled indicates auto-scan was invoked while the
	// auto-trading flag is off.
	ErrAutoTradingDisabled = errors.New("auto trading is disabled")
	// ErrUpstreamFetch indicates the price feed was unreachable or returned
	// a malformed payload. Reads recover by serving the stale snapshot.
	ErrUpstreamFetch = errors.New("upstream fetch failed")
)
