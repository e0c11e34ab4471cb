package model

import "errors"

// Errors
var (
	// ErrProviderUnavailable marks a failed analytics or trade source query.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrInvalidCursor is returned when a cursor would move backward.
	ErrInvalidCursor = errors.New("invalid cursor: would move backward")

	// ErrExecutionFailed marks an order the gateway rejected or failed to submit.
	ErrExecutionFailed = errors.New("execution failed")

	// ErrDuplicateTrade is returned when a source trade is already in the ledger.
	ErrDuplicateTrade = errors.New("source trade already recorded")

	// ErrCorruptState marks persisted state that cannot be decoded.
	ErrCorruptState = errors.New("persisted state corrupt")

	// ErrInvalidAddress is returned for strings that are not hex account addresses.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
)
