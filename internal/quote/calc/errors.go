package calc

import "errors"

var (
	// ErrValidation marks input problems the caller must fix before retrying.
	ErrValidation = errors.New("invalid calculation input")
	// ErrReferenceData marks an incomplete reference set. Fatal: no default
	// is ever substituted for a financial rate.
	ErrReferenceData = errors.New("incomplete reference data")
	// ErrIntegrity marks a missing per-product result at aggregation time.
	// Partial totals are never produced.
	ErrIntegrity = errors.New("aggregation integrity violation")
)
