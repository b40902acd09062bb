package contracts

import (
	"errors"
	"fmt"
)

// Error kinds shared by all stages.
// Wrap with fmt.Errorf("...: %w", Err...) and test with errors.Is.
var (
	// ErrDataUnavailable means the provider returned nothing for the request
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrSchemaMismatch means required fields were missing from a payload
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrTransientFetch means the retry budget was spent on transient failures
	ErrTransientFetch = errors.New("transient fetch failure")
	// ErrModelUnavailable means no active model artifact is loaded
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrNoFeatureData means no feature-store row exists for the symbol
	ErrNoFeatureData = errors.New("no feature data")
	// ErrDatabaseWrite means a store write failed
	ErrDatabaseWrite = errors.New("database write failed")
	// ErrUnknownSymbol means the symbol is not in the stocks table
	ErrUnknownSymbol = errors.New("unknown symbol")
)

// EntityError records a failure of one entity inside a batch
type EntityError struct {
	Entity string
	Op     string
	Err    error
}

func (e *EntityError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Entity, e.Err)
}

func (e *EntityError) Unwrap() error {
	return e.Err
}

// ErrorKind maps an error to a short metric/log label
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrDataUnavailable):
		return "data_unavailable"
	case errors.Is(err, ErrSchemaMismatch):
		return "schema_mismatch"
	case errors.Is(err, ErrTransientFetch):
		return "transient_fetch"
	case errors.Is(err, ErrModelUnavailable):
		return "model_unavailable"
	case errors.Is(err, ErrNoFeatureData):
		return "no_feature_data"
	case errors.Is(err, ErrDatabaseWrite):
		return "database_write"
	case errors.Is(err, ErrUnknownSymbol):
		return "unknown_symbol"
	default:
		return "internal"
	}
}
