package mrz

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownFormat is returned when the line count and widths of a
	// document match no MRZ format.
	ErrUnknownFormat = errors.New("unknown MRZ format")

	// ErrLineLength is returned when the lines of a document differ in length.
	ErrLineLength = errors.New("MRZ lines differ in length")

	// ErrInvalidCharacter is returned when a line contains characters outside
	// A-Z, 0-9 and '<'.
	ErrInvalidCharacter = errors.New("invalid MRZ character")
)

// ParseError wraps errors with the parsing step that failed.
type ParseError struct {
	// Op is the operation that failed (e.g., "Parse", "parseTD1").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("mrz: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("mrz: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is implements error matching against the underlying error.
func (e *ParseError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func newParseError(op string, err error, details string) *ParseError {
	return &ParseError{
		Op:      op,
		Err:     err,
		Details: details,
	}
}
