package index

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedUnit is returned when a fact unit cannot be decoded.
	ErrMalformedUnit = errors.New("malformed fact unit")

	// ErrSchemaViolation is returned when a fact unit does not satisfy the unit schema.
	ErrSchemaViolation = errors.New("fact unit violates schema")

	// ErrNoUnits is returned when ingestion is asked to run over nothing.
	ErrNoUnits = errors.New("no fact units")
)

// UnitError reports the fact unit whose ingestion failed. The first UnitError
// aborts the batch and is returned to the caller unchanged.
type UnitError struct {
	Path string
	Err  error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *UnitError) Unwrap() error {
	return e.Err
}
