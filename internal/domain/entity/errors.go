package entity

import "errors"

var (
	// ErrNetworkFailure covers transport errors and non-success API results
	ErrNetworkFailure = errors.New("network failure")
	// ErrStaleDataUnavailable is returned when rates are needed before any successful refresh
	ErrStaleDataUnavailable = errors.New("exchange rates not loaded")
	// ErrInvalidPair is returned when a code is absent from the rate table
	ErrInvalidPair = errors.New("invalid currency pair")
	// ErrMalformedAmount is returned when the sanitized amount is not a number
	ErrMalformedAmount = errors.New("malformed amount")
	// ErrComputation is returned when the conversion arithmetic fails
	ErrComputation = errors.New("conversion failed")
	// ErrNotFound is returned by stores for an absent key
	ErrNotFound = errors.New("key not found")
	// ErrInvalidPairKey is returned when a "FROM/TO" key cannot be parsed
	ErrInvalidPairKey = errors.New("invalid pair key")
)
