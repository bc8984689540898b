package store

import "errors"

var (
	ErrConflict         = errors.New("conflict")
	ErrNotFound         = errors.New("not found")
	ErrSlotsUnavailable = errors.New("slots no longer available")
)
