package models

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceUnreadable is returned when a video or image stream cannot be opened
	ErrSourceUnreadable = errors.New("source unreadable")

	// ErrNotConfigured marks an integration whose credentials are missing.
	// Callers treat it as a soft-disable, not a failure.
	ErrNotConfigured = errors.New("not configured")

	// ErrNotFound is returned when a stored record does not exist
	ErrNotFound = errors.New("not found")

	// ErrNoFrames is reported when a readable video yields no frames
	ErrNoFrames = errors.New("no frames extracted")
)

// ItemError is a failure of one batch item. It is recorded in the item's
// result and never aborts sibling items.
type ItemError struct {
	Index int
	Stage string // decode, encode, inference
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %d %s: %v", e.Index, e.Stage, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// ProviderError is a failed send through a notification or inference provider
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s returned status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s unavailable: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
