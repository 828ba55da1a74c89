package workbook

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrValidation     = errors.New("row failed validation")
	ErrDeserialize    = errors.New("malformed workbook")
	ErrEmptyWorkbook  = errors.New("workbook has no tables")
	ErrInvalidSheetID = errors.New("invalid sheet name")
)

// ValidationError lists why a row was rejected. It matches ErrValidation with errors.Is.
type ValidationError struct {
	Table   string
	Unknown []string // keys that are not fields of the machine type
	Missing []string // required fields absent or blank
	Empty   bool     // the row carries no value at all
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Unknown) > 0 {
		parts = append(parts, "unknown fields: "+strings.Join(e.Unknown, ", "))
	}
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required fields: "+strings.Join(e.Missing, ", "))
	}
	if e.Empty {
		parts = append(parts, "row has no values")
	}
	return fmt.Sprintf("invalid row for %q: %s", e.Table, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
