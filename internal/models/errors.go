package models

import "errors"

// ErrNotFound reports that the requested data genuinely does not exist:
// no cached file, no page for a race id, an empty result table.
var ErrNotFound = errors.New("not found")

// ParseError reports data that exists but could not be understood.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return "parse " + e.Source + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

// NewParseError wraps err with the source it came from.
func NewParseError(source string, err error) error {
	return &ParseError{Source: source, Err: err}
}

// IsParseError reports whether err is or wraps a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
