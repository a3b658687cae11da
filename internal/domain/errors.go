package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline data errors.
type ErrorKind string

const (
	// KindIO covers unreadable or missing sources. Fatal to a load.
	KindIO ErrorKind = "io"
	// KindFormat covers header/schema mismatches. Fatal to a load.
	KindFormat ErrorKind = "format"
	// KindParse covers field-level coercion failures. Row-scoped, recovered.
	KindParse ErrorKind = "parse"
	// KindValidation covers out-of-range or missing values. Row-scoped, recovered.
	KindValidation ErrorKind = "validation"
)

// DataError is the structured error for load and normalization failures.
// Row-scoped errors carry the 1-based source line and the offending column.
type DataError struct {
	Kind  ErrorKind
	Line  int
	Field string
	Msg   string
	Cause error
}

func (e *DataError) Error() string {
	s := string(e.Kind) + " error"
	if e.Line > 0 {
		s = fmt.Sprintf("%s at line %d", s, e.Line)
	}
	if e.Field != "" {
		s = fmt.Sprintf("%s (%s)", s, e.Field)
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}
	return s
}

func (e *DataError) Unwrap() error {
	return e.Cause
}

// Is matches any DataError of the same kind, so callers can write
// errors.Is(err, domain.ErrFormat) without caring about line or field.
func (e *DataError) Is(target error) bool {
	t, ok := target.(*DataError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Kind sentinels for errors.Is checks.
var (
	ErrIO         = &DataError{Kind: KindIO}
	ErrFormat     = &DataError{Kind: KindFormat}
	ErrParse      = &DataError{Kind: KindParse}
	ErrValidation = &DataError{Kind: KindValidation}
)

// NewIOError wraps a source access failure.
func NewIOError(msg string, cause error) *DataError {
	return &DataError{Kind: KindIO, Msg: msg, Cause: cause}
}

// NewFormatError reports a header or schema mismatch.
func NewFormatError(msg string, cause error) *DataError {
	return &DataError{Kind: KindFormat, Msg: msg, Cause: cause}
}

// NewParseError reports a field that could not be coerced to its type.
func NewParseError(line int, field, msg string, cause error) *DataError {
	return &DataError{Kind: KindParse, Line: line, Field: field, Msg: msg, Cause: cause}
}

// NewValidationError reports a value that parsed but violates a constraint.
func NewValidationError(line int, field, msg string) *DataError {
	return &DataError{Kind: KindValidation, Line: line, Field: field, Msg: msg}
}

// KindOf extracts the ErrorKind from err, or "" if err is not a DataError.
func KindOf(err error) ErrorKind {
	var de *DataError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// Fatal reports whether err should abort the whole load rather than a row.
func Fatal(err error) bool {
	switch KindOf(err) {
	case KindIO, KindFormat:
		return true
	default:
		return false
	}
}
