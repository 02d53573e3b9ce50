package model

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrInvalidDifficulty     = errors.New("invalid difficulty label")
	ErrMissingCharacteristic = errors.New("standard characteristic not found")
	ErrMissingDifficulty     = errors.New("difficulty not found")
	ErrFetch                 = errors.New("fetch failed")
)

// ItemErrorKind classifies a per-item failure.
type ItemErrorKind string

// Item error kinds.
const (
	KindInvalidDifficulty     ItemErrorKind = "invalid_difficulty"
	KindFetch                 ItemErrorKind = "fetch"
	KindMissingCharacteristic ItemErrorKind = "missing_characteristic"
	KindMissingDifficulty     ItemErrorKind = "missing_difficulty"
	KindUnknown               ItemErrorKind = "unknown"
)

// ItemError records why one item produced no row. It never aborts a run.
type ItemError struct {
	Index     int
	Reference string
	Kind      ItemErrorKind
	Err       error
}

// NewItemError classifies err and binds it to the item at index.
func NewItemError(index int, item RatedItem, err error) *ItemError {
	return &ItemError{
		Index:     index,
		Reference: item.Reference,
		Kind:      classify(err),
		Err:       err,
	}
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %d (%s): %s: %v", e.Index, e.Reference, e.Kind, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

func classify(err error) ItemErrorKind {
	switch {
	case errors.Is(err, ErrInvalidDifficulty):
		return KindInvalidDifficulty
	case errors.Is(err, ErrMissingCharacteristic):
		return KindMissingCharacteristic
	case errors.Is(err, ErrMissingDifficulty):
		return KindMissingDifficulty
	case errors.Is(err, ErrFetch):
		return KindFetch
	default:
		return KindUnknown
	}
}
