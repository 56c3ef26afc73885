package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrCalculationLocked indicates another calculation already holds the
	// per-quote lock.
	ErrCalculationLocked = errors.New("calculation already in progress")
	// ErrVersionConflict indicates two calculations raced for the same
	// version number.
	ErrVersionConflict = errors.New("version number conflict")
)
